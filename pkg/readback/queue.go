// Package readback implements the asynchronous GPU-to-CPU transfer
// pipeline: a bounded FIFO of in-flight readback requests drained in
// strict issuance order, and the admission policy that keeps it bounded.
package readback

import (
	"github.com/rs/zerolog"

	"github.com/video-system/go-frame-recorder/pkg/source"
)

// DefaultCapacity is the default bound on in-flight readbacks. Each
// outstanding request holds GPU-side staging resources, so the queue
// must never grow with readback latency.
const DefaultCapacity = 8

// Queue is a strict FIFO of outstanding transfer requests. GPU
// transfers may complete out of issuance order; the queue restores
// presentation order by only ever draining from the front.
type Queue struct {
	log      zerolog.Logger
	capacity int
	pending  []request

	delivered uint64
	failed    uint64
}

type request struct {
	frame    int64
	transfer source.Transfer
}

// NewQueue creates a queue holding at most capacity in-flight requests.
// A capacity of zero or less selects DefaultCapacity.
func NewQueue(capacity int, log zerolog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		log:      log,
		capacity: capacity,
		pending:  make([]request, 0, capacity),
	}
}

// Len returns the number of in-flight requests.
func (q *Queue) Len() int { return len(q.pending) }

// Capacity returns the in-flight bound.
func (q *Queue) Capacity() int { return q.capacity }

// Delivered returns the total number of frames handed to the sink.
func (q *Queue) Delivered() uint64 { return q.delivered }

// Failed returns the total number of frames lost to transfer errors.
func (q *Queue) Failed() uint64 { return q.failed }

// push appends a request. The scheduler checks the bound before
// issuing a transfer, so exceeding it here is a programming error.
func (q *Queue) push(frame int64, t source.Transfer) {
	q.pending = append(q.pending, request{frame: frame, transfer: t})
}

// pop removes the front request. The queue is small and bounded, so a
// copy-down keeps the backing array stable for the session's lifetime.
func (q *Queue) pop() {
	n := len(q.pending)
	copy(q.pending, q.pending[1:])
	q.pending[n-1] = request{}
	q.pending = q.pending[:n-1]
}

// DrainReady consumes completed requests from the front of the queue
// in issuance order, forwarding each frame's pixels to sink. A request
// that failed is dropped and draining continues; one frame is lost but
// the stream keeps going. Draining stops at the first request that is
// still pending: a later request that already completed is never taken
// early, since that would reorder frames.
//
// Returns the number of frames delivered. A sink error aborts the
// drain and is returned to the caller; the failing request stays at
// the front.
func (q *Queue) DrainReady(sink func(frame int64, pixels []byte) error) (int, error) {
	n := 0
	for len(q.pending) > 0 {
		head := q.pending[0]
		if err := head.transfer.Err(); err != nil {
			q.failed++
			q.log.Warn().
				Int64("frame", head.frame).
				Err(err).
				Msg("readback failed, frame lost")
			q.pop()
			continue
		}
		if !head.transfer.Done() {
			break
		}
		if err := sink(head.frame, head.transfer.Pixels()); err != nil {
			return n, err
		}
		q.delivered++
		q.pop()
		n++
	}
	return n, nil
}

// Abandon discards all outstanding requests without consuming them and
// returns how many were dropped. Used when a session closes with
// transfers still in flight; the underlying readbacks are
// self-contained and need no explicit release.
func (q *Queue) Abandon() int {
	n := len(q.pending)
	q.pending = q.pending[:0]
	if n > 0 {
		q.log.Debug().Int("abandoned", n).Msg("outstanding readbacks abandoned")
	}
	return n
}
