// Package ffmpeg wraps the external FFmpeg binary as the encoder half
// of a recording pipe: raw frames in on stdin, a finished video file
// out, diagnostics collected from stderr.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// FFmpeg wraps FFmpeg binary execution
type FFmpeg struct {
	binaryPath string
}

// New creates a new FFmpeg wrapper
func New() (*FFmpeg, error) {
	path, err := findBinary("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &FFmpeg{binaryPath: path}, nil
}

// findBinary locates a binary in PATH or common locations
func findBinary(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/opt/homebrew/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "linux":
		paths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		paths = []string{
			"C:\\ffmpeg\\bin\\" + name + ".exe",
			"C:\\Program Files\\ffmpeg\\bin\\" + name + ".exe",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// Version returns the FFmpeg version string
func (f *FFmpeg) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, f.binaryPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "", fmt.Errorf("no version output")
}

// Preset names one of FFmpeg's fixed speed/quality tradeoff bundles.
type Preset string

const (
	PresetUltrafast Preset = "ultrafast"
	PresetVeryfast  Preset = "veryfast"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
	PresetVeryslow  Preset = "veryslow"
)

// ParsePreset validates a configured preset name. An empty name
// selects PresetMedium.
func ParsePreset(s string) (Preset, error) {
	switch Preset(s) {
	case PresetUltrafast, PresetVeryfast, PresetFast, PresetMedium, PresetSlow, PresetVeryslow:
		return Preset(s), nil
	case "":
		return PresetMedium, nil
	}
	return "", fmt.Errorf("unknown encoder preset %q", s)
}

// EncoderConfig holds configuration for one encoding process
type EncoderConfig struct {
	// Input: raw frames on stdin
	PixelFormat string // rgba, bgra, rgb24
	Width       int
	Height      int
	Framerate   int

	// Encoding
	Codec   string // libx264, libx265
	Preset  Preset
	Bitrate int // kbps, 0 = codec default

	// Output file
	OutputPath string
}

// buildEncoderArgs builds FFmpeg arguments for raw-pipe file encoding
func buildEncoderArgs(cfg EncoderConfig) []string {
	args := []string{
		"-y", // Overwrite output

		// Keep stderr quiet unless something is wrong, so collected
		// diagnostics are empty on a healthy run.
		"-hide_banner",
		"-loglevel", "error",

		// Raw input from stdin
		"-f", "rawvideo",
		"-pixel_format", cfg.PixelFormat,
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", fmt.Sprintf("%d", cfg.Framerate),
		"-i", "pipe:0",

		// Video encoding
		"-c:v", cfg.Codec,
		"-preset", string(cfg.Preset),
	}

	if cfg.Bitrate > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", cfg.Bitrate))
	}

	args = append(args,
		// Raw RGB input needs an explicit output pixel format for
		// broadly playable files.
		"-pix_fmt", "yuv420p",
		cfg.OutputPath,
	)

	return args
}

// Process represents a running FFmpeg encoding process. Frames are
// written to its stdin in presentation order; stderr is collected for
// inspection after close.
type Process struct {
	stdin io.WriteCloser
	done  chan error

	mu   sync.Mutex
	diag bytes.Buffer
}

// StartEncoder starts an FFmpeg process consuming raw frames on stdin.
// Fails if the process cannot be started; no partial session is left
// behind.
func (f *FFmpeg) StartEncoder(ctx context.Context, cfg EncoderConfig) (*Process, error) {
	cmd := exec.CommandContext(ctx, f.binaryPath, buildEncoderArgs(cfg)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	proc := &Process{
		stdin: stdin,
		done:  make(chan error, 1),
	}

	// Collect diagnostics, then reap the process. Wait must not run
	// until the stderr pipe is fully drained.
	go func() {
		proc.mu.Lock()
		io.Copy(&proc.diag, stderr)
		proc.mu.Unlock()
		proc.done <- cmd.Wait()
	}()

	return proc, nil
}

// Write writes exactly one frame's raw bytes to FFmpeg stdin. The call
// blocks until the encoder accepts the bytes, which is the pipeline's
// natural backpressure point.
func (p *Process) Write(frame []byte) error {
	if _, err := p.stdin.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close signals end-of-input, waits for FFmpeg to exit, and returns
// whatever it wrote to stderr. Non-empty text means the encoder
// reported a warning or error, which the caller surfaces but does not
// treat as a crash.
func (p *Process) Close() (string, error) {
	p.stdin.Close()
	err := <-p.done

	p.mu.Lock()
	diag := strings.TrimSpace(p.diag.String())
	p.mu.Unlock()

	return diag, err
}
