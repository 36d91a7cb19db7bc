package record

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/video-system/go-frame-recorder/internal/ffmpeg"
	"github.com/video-system/go-frame-recorder/pkg/clock"
	"github.com/video-system/go-frame-recorder/pkg/source"
)

// Recorder drives every configured capture job from a single logical
// tick loop. The host calls Tick once per rendered frame; the recorder
// owns no threads or timers of its own.
type Recorder struct {
	cfg   *Config
	log   zerolog.Logger
	clock *clock.Controller
	open  PipeOpener

	mu      sync.Mutex
	jobs    map[string]*job
	elapsed float64
}

// job tracks one configured capture window over one source. At most
// one session is active per source at a time.
type job struct {
	cfg     JobConfig
	src     source.Source
	session *Session
	frames  int64
	diag    string
	done    bool
	failed  bool
}

// finish closes the job's session and keeps its results around for
// status reporting.
func (j *job) finish() {
	j.session.Close()
	j.diag = j.session.Diagnostics()
	j.frames = j.session.FramesWritten()
	j.session = nil
}

// NewRecorder creates a recorder backed by the FFmpeg binary. The
// driver receives clock-control transitions; pass nil when the host
// loop handles pacing itself.
func NewRecorder(cfg *Config, driver clock.Driver, log zerolog.Logger) (*Recorder, error) {
	ff, err := ffmpeg.New()
	if err != nil {
		return nil, fmt.Errorf("init ffmpeg: %w", err)
	}
	version, err := ff.Version(context.Background())
	if err != nil {
		return nil, fmt.Errorf("get ffmpeg version: %w", err)
	}
	log.Info().Str("version", version).Msg("ffmpeg ready")

	return newRecorder(cfg, ffmpegOpener(ff), driver, log)
}

// newRecorder wires a recorder around an arbitrary pipe opener.
func newRecorder(cfg *Config, open PipeOpener, driver clock.Driver, log zerolog.Logger) (*Recorder, error) {
	mode, err := clock.ParseMode(cfg.Clock.Mode)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		cfg:   cfg,
		log:   log,
		clock: clock.NewController(mode, driver, log),
		open:  open,
		jobs:  make(map[string]*job),
	}

	for _, jobCfg := range cfg.Jobs {
		if _, exists := r.jobs[jobCfg.Source]; exists {
			return nil, fmt.Errorf("duplicate job for source %q", jobCfg.Source)
		}
		src, ok := source.Get(jobCfg.Source)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", jobCfg.Source)
		}
		r.jobs[jobCfg.Source] = &job{cfg: jobCfg, src: src}
		log.Info().
			Str("source", jobCfg.Source).
			Str("output", jobCfg.Output).
			Float64("start", jobCfg.Start).
			Float64("duration", jobCfg.Duration).
			Msg("job configured")
	}

	return r, nil
}

// ffmpegOpener adapts StartEncoder to the session's pipe contract.
func ffmpegOpener(ff *ffmpeg.FFmpeg) PipeOpener {
	return func(ctx context.Context, cfg JobConfig, format source.PixelFormat) (StreamWriter, error) {
		preset, err := ffmpeg.ParsePreset(cfg.Preset)
		if err != nil {
			return nil, err
		}
		return ff.StartEncoder(ctx, ffmpeg.EncoderConfig{
			PixelFormat: string(format),
			Width:       cfg.Width,
			Height:      cfg.Height,
			Framerate:   cfg.Framerate,
			Codec:       cfg.Codec,
			Preset:      preset,
			Bitrate:     cfg.Bitrate,
			OutputPath:  cfg.Output,
		})
	}
}

// Tick runs one capture step for every job at the current logical
// time, then advances it by dt seconds. Sessions open on the first
// tick inside their window and close on the first tick past it;
// readbacks still in flight at close are abandoned. Each session
// captures at its own configured frame rate, so a host loop ticking
// at the fastest job's rate never over-captures slower jobs.
func (r *Recorder) Tick(ctx context.Context, dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs {
		r.tickJob(ctx, j, dt)
	}
	r.elapsed += dt
}

func (r *Recorder) tickJob(ctx context.Context, j *job, dt float64) {
	active := !j.done && !j.failed &&
		r.elapsed >= j.cfg.Start && r.elapsed < j.cfg.Start+j.cfg.Duration

	if !active {
		if j.session != nil {
			j.finish()
			j.done = true
		}
		return
	}

	if j.session == nil {
		s, err := newSession(ctx, j.cfg, j.src, r.open, r.clock, r.log)
		if err != nil {
			r.log.Error().Err(err).Str("source", j.cfg.Source).Msg("failed to open session")
			j.failed = true
			return
		}
		j.session = s
	}

	if err := j.session.Tick(dt); err != nil {
		r.log.Error().Err(err).Str("source", j.cfg.Source).Msg("session aborted")
		j.finish()
		j.failed = true
	}
}

// StartJob arms a job to begin capturing at the current logical time.
// Starting a job whose session is already active is a no-op.
func (r *Recorder) StartJob(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	if j.session != nil {
		return nil
	}
	j.cfg.Start = r.elapsed
	j.done = false
	j.failed = false
	return nil
}

// StopJob closes a job's session immediately. Stopping an inactive job
// is a no-op.
func (r *Recorder) StopJob(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	if j.session != nil {
		j.finish()
	}
	j.done = true
	return nil
}

// Done reports whether every job has finished or failed.
func (r *Recorder) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs {
		if !j.done && !j.failed {
			return false
		}
	}
	return true
}

// Close force-closes all active sessions.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs {
		if j.session != nil {
			j.finish()
			j.done = true
		}
	}
}

// JobStatus is the externally visible state of one job.
type JobStatus struct {
	Source        string  `json:"source"`
	Output        string  `json:"output"`
	State         string  `json:"state"` // idle, capturing, done, failed
	Elapsed       float64 `json:"elapsed"`
	FramesWritten int64   `json:"frames_written"`
	FramesDropped uint64  `json:"frames_dropped"`
	InFlight      int     `json:"in_flight"`
	Diagnostics   string  `json:"diagnostics,omitempty"`
}

// Status returns the state of every job.
func (r *Recorder) Status() map[string]JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make(map[string]JobStatus, len(r.jobs))
	for name, j := range r.jobs {
		st := JobStatus{
			Source:        j.cfg.Source,
			Output:        j.cfg.Output,
			State:         "idle",
			Elapsed:       r.elapsed,
			FramesWritten: j.frames,
			Diagnostics:   j.diag,
		}
		switch {
		case j.failed:
			st.State = "failed"
		case j.done:
			st.State = "done"
		case j.session != nil:
			st.State = "capturing"
			st.FramesWritten = j.session.FramesWritten()
			st.FramesDropped = j.session.sched.Dropped()
			st.InFlight = j.session.queue.Len()
		}
		statuses[name] = st
	}
	return statuses
}

// OpenSessions returns the number of currently-open encoder pipes.
func (r *Recorder) OpenSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.OpenSessions()
}
