package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ff, err := New()
	if err != nil {
		t.Skipf("FFmpeg not found: %v", err)
	}

	version, err := ff.Version(context.Background())
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}

	t.Logf("FFmpeg version: %s", version)
}

func TestParsePreset(t *testing.T) {
	preset, err := ParsePreset("ultrafast")
	require.NoError(t, err)
	require.Equal(t, PresetUltrafast, preset)

	preset, err = ParsePreset("")
	require.NoError(t, err)
	require.Equal(t, PresetMedium, preset)

	_, err = ParsePreset("turbo")
	require.Error(t, err)
}

func TestBuildEncoderArgs(t *testing.T) {
	args := buildEncoderArgs(EncoderConfig{
		PixelFormat: "rgba",
		Width:       1280,
		Height:      720,
		Framerate:   30,
		Codec:       "libx264",
		Preset:      PresetFast,
		Bitrate:     6000,
		OutputPath:  "out.mp4",
	})

	require.Equal(t, []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", "1280x720",
		"-framerate", "30",
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "fast",
		"-b:v", "6000k",
		"-pix_fmt", "yuv420p",
		"out.mp4",
	}, args)
}

func TestBuildEncoderArgsOmitsZeroBitrate(t *testing.T) {
	args := buildEncoderArgs(EncoderConfig{
		PixelFormat: "rgba",
		Width:       4,
		Height:      2,
		Framerate:   10,
		Codec:       "libx264",
		Preset:      PresetMedium,
		OutputPath:  "out.mp4",
	})
	require.NotContains(t, args, "-b:v")
}

func TestEncodePipeRoundTrip(t *testing.T) {
	ff, err := New()
	if err != nil {
		t.Skipf("FFmpeg not found: %v", err)
	}

	out := filepath.Join(t.TempDir(), "tiny.mp4")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	proc, err := ff.StartEncoder(ctx, EncoderConfig{
		PixelFormat: "rgba",
		Width:       4,
		Height:      2,
		Framerate:   10,
		Codec:       "libx264",
		Preset:      PresetUltrafast,
		OutputPath:  out,
	})
	require.NoError(t, err)

	frame := make([]byte, 4*2*4)
	for i := 0; i < 3; i++ {
		for j := range frame {
			frame[j] = byte(i * 40)
		}
		require.NoError(t, proc.Write(frame))
	}

	diag, err := proc.Close()
	require.NoError(t, err)
	require.Empty(t, diag, "healthy encoder must report no diagnostics")

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
