package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/video-system/go-frame-recorder/pkg/api"
	"github.com/video-system/go-frame-recorder/pkg/clock"
	"github.com/video-system/go-frame-recorder/pkg/record"
	_ "github.com/video-system/go-frame-recorder/pkg/source"
)

const version = "1.0.0"

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:     "recorder",
		Short:   "Record frames from a rendering source into a video file",
		Version: version,
		RunE:    run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	cfg, err := record.LoadConfig(configPath)
	if err != nil {
		return err
	}

	pace := &pacer{}
	recorder, err := record.NewRecorder(cfg, pace, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Host:   cfg.API.Host,
		Port:   cfg.API.Port,
		Engine: recorder,
		Log:    log,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Warn().Err(err).Msg("API server stopped")
		}
	}()

	runLoop(ctx, recorder, pace, tickRate(cfg))

	recorder.Close()
	apiServer.Stop()
	log.Info().Msg("recorder stopped")
	return nil
}

// tickRate picks the logical tick frequency for the host loop: the
// fastest configured job, so no job ever sees fewer ticks than frames.
func tickRate(cfg *record.Config) int {
	rate := 30
	for _, j := range cfg.Jobs {
		if j.Framerate > rate {
			rate = j.Framerate
		}
	}
	return rate
}

// runLoop is the host tick loop. Logical time always advances by a
// fixed step; the pacer decides how that step relates to wall time.
func runLoop(ctx context.Context, recorder *record.Recorder, pace *pacer, rate int) {
	dt := 1.0 / float64(rate)
	step := time.Duration(float64(time.Second) * dt)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		recorder.Tick(ctx, dt)
		if recorder.Done() {
			return
		}
		pace.wait(start, step)
	}
}

// pacer is the clock.Driver for the CLI loop. In slow-down mode a tick
// takes as long as capture and encoding need, decoupling logical time
// from wall time; otherwise ticks are paced to near the target rate.
type pacer struct {
	mu       sync.Mutex
	engaged  bool
	slowDown bool
}

func (p *pacer) Engage(mode clock.Mode, framerate int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engaged = true
	p.slowDown = mode == clock.ModeSlowDown
}

func (p *pacer) Disengage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engaged = false
}

func (p *pacer) wait(tickStart time.Time, step time.Duration) {
	p.mu.Lock()
	slow := p.engaged && p.slowDown
	p.mu.Unlock()

	if slow {
		return
	}
	if remaining := step - time.Since(tickStart); remaining > 0 {
		time.Sleep(remaining)
	}
}
