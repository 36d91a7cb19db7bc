package record

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
jobs:
  - source: pattern
    duration: 2.5
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "target-rate", cfg.Clock.Mode)
	require.Equal(t, 8080, cfg.API.Port)

	j := cfg.Jobs[0]
	require.Equal(t, "pattern.mp4", j.Output)
	require.Equal(t, 1280, j.Width)
	require.Equal(t, 720, j.Height)
	require.Equal(t, 30, j.Framerate)
	require.Equal(t, "libx264", j.Codec)
	require.Equal(t, "medium", j.Preset)
	require.Equal(t, 8, j.QueueDepth)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("CAPTURE_OUT", "/tmp/out.mp4")
	path := writeConfig(t, `
jobs:
  - source: pattern
    duration: 1
    output: ${CAPTURE_OUT}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/out.mp4", cfg.Jobs[0].Output)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"missing duration": `
jobs:
  - source: pattern
`,
		"negative start": `
jobs:
  - source: pattern
    duration: 1
    start: -2
`,
		"unknown preset": `
jobs:
  - source: pattern
    duration: 1
    preset: warp9
`,
		"unknown clock mode": `
clock:
  mode: realtime
jobs:
  - source: pattern
    duration: 1
`,
		"missing source": `
jobs:
  - duration: 1
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
