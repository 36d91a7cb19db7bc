package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/video-system/go-frame-recorder/pkg/clock"
	"github.com/video-system/go-frame-recorder/pkg/readback"
	"github.com/video-system/go-frame-recorder/pkg/source"
)

// StreamWriter is the byte pipe into the external encoder process.
// Write must be called with frames in presentation order; Close
// signals end-of-input and returns the encoder's diagnostic text.
type StreamWriter interface {
	Write(frame []byte) error
	Close() (string, error)
}

// PipeOpener opens the encoder pipe for one session.
type PipeOpener func(ctx context.Context, cfg JobConfig, format source.PixelFormat) (StreamWriter, error)

// Session is one active recording: a live encoder pipe, a readback
// queue, and a reusable pixel buffer. Sessions are created when
// logical time enters the job's capture window and closed when it
// leaves; a new window is always a fresh instance.
type Session struct {
	id    string
	cfg   JobConfig
	log   zerolog.Logger
	src   source.Source
	clock *clock.Controller
	queue *readback.Queue
	sched *readback.Scheduler
	pipe  StreamWriter

	// Reusable frame buffer, overwritten every delivery to avoid
	// per-frame allocation.
	buf []byte

	elapsed float64 // logical seconds since the session opened
	next    int64   // next frame index to request
	written int64
	diag    string
	closed  bool
}

// newSession forces the source to the target resolution, opens the
// encoder pipe and registers with the clock controller. An error means
// no partial session exists.
func newSession(ctx context.Context, cfg JobConfig, src source.Source, open PipeOpener, clk *clock.Controller, log zerolog.Logger) (*Session, error) {
	id := uuid.NewString()
	logger := log.With().Str("session", id).Str("source", cfg.Source).Logger()

	if err := src.SetOutputSize(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("set output size: %w", err)
	}

	pipe, err := open(ctx, cfg, src.Format())
	if err != nil {
		return nil, fmt.Errorf("open encoder pipe: %w", err)
	}
	clk.SessionOpened(cfg.Framerate)

	queue := readback.NewQueue(cfg.QueueDepth, logger)
	s := &Session{
		id:    id,
		cfg:   cfg,
		log:   logger,
		src:   src,
		clock: clk,
		queue: queue,
		sched: readback.NewScheduler(queue, logger),
		pipe:  pipe,
		buf:   make([]byte, src.Format().FrameSize(cfg.Width, cfg.Height)),
	}

	logger.Info().
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Int("framerate", cfg.Framerate).
		Str("output", cfg.Output).
		Msg("recording session opened")
	return s, nil
}

// Tick advances the session by dt logical seconds and runs one capture
// step at the session's own cadence: a readback is requested only when
// logical time has reached the next frame's timestamp, so a host loop
// ticking faster than the configured rate does not over-capture. The
// completed prefix is then drained into the pipe. A returned error
// means the pipe write failed and the session cannot continue.
func (s *Session) Tick(dt float64) error {
	if s.closed {
		return nil
	}

	period := 1.0 / float64(s.cfg.Framerate)
	// Slop keeps accumulated float error in elapsed from pushing a
	// frame boundary past the current tick.
	for s.elapsed+1e-9 >= float64(s.next)*period {
		s.sched.RequestFrame(s.src, s.next)
		s.next++
	}
	s.elapsed += dt

	if _, err := s.queue.DrainReady(s.deliver); err != nil {
		return fmt.Errorf("stream frame: %w", err)
	}
	return nil
}

// deliver copies the transfer's pixel view into the session buffer
// (the view dies on the next tick) and performs the blocking pipe
// write.
func (s *Session) deliver(frame int64, pixels []byte) error {
	copy(s.buf, pixels)
	if err := s.pipe.Write(s.buf); err != nil {
		return err
	}
	s.written++
	return nil
}

// Close abandons any outstanding readbacks, closes the pipe, collects
// encoder diagnostics and releases the clock controller. Safe to call
// more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	s.queue.Abandon()

	diag, err := s.pipe.Close()
	s.diag = diag
	if err != nil {
		s.log.Warn().Err(err).Msg("encoder exited with error")
	}
	if diag != "" {
		s.log.Warn().Str("diagnostics", diag).Msg("encoder reported diagnostics")
	}

	s.clock.SessionClosed()
	s.log.Info().Int64("frames", s.written).Msg("recording session closed")
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// FramesWritten returns the number of frames delivered to the encoder.
func (s *Session) FramesWritten() int64 { return s.written }

// Diagnostics returns the encoder's diagnostic text collected at
// close. Empty until the session is closed.
func (s *Session) Diagnostics() string { return s.diag }
