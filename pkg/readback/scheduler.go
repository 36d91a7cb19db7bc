package readback

import (
	"github.com/rs/zerolog"

	"github.com/video-system/go-frame-recorder/pkg/source"
)

// Scheduler issues one asynchronous readback per logical tick, subject
// to the queue's in-flight bound. It owns no frame data, only the
// admission decision.
type Scheduler struct {
	log   zerolog.Logger
	queue *Queue

	requested uint64
	dropped   uint64
}

// NewScheduler creates a scheduler feeding the given queue.
func NewScheduler(queue *Queue, log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log, queue: queue}
}

// RequestFrame requests an asynchronous transfer of the source's
// current frame and enqueues the handle. If the queue is already at
// capacity the frame is dropped from capture (the source keeps
// rendering regardless) and false is returned; sustained readback
// latency must never grow the queue.
func (s *Scheduler) RequestFrame(src source.Source, frame int64) bool {
	if s.queue.Len() >= s.queue.Capacity() {
		s.dropped++
		s.log.Warn().
			Int64("frame", frame).
			Int("in_flight", s.queue.Len()).
			Msg("too many readback requests, dropping frame")
		return false
	}

	t, err := src.RequestTransfer()
	if err != nil {
		s.dropped++
		s.log.Warn().
			Int64("frame", frame).
			Err(err).
			Msg("readback request failed, dropping frame")
		return false
	}

	s.queue.push(frame, t)
	s.requested++
	return true
}

// Requested returns the total number of transfers issued.
func (s *Scheduler) Requested() uint64 { return s.requested }

// Dropped returns the total number of frames rejected by admission
// control or failed at request time.
func (s *Scheduler) Dropped() uint64 { return s.dropped }
