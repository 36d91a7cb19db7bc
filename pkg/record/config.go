package record

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/video-system/go-frame-recorder/internal/ffmpeg"
	"github.com/video-system/go-frame-recorder/pkg/clock"
	"github.com/video-system/go-frame-recorder/pkg/readback"
)

// Config holds all recorder configuration
type Config struct {
	Jobs  []JobConfig `yaml:"jobs"`
	Clock ClockConfig `yaml:"clock"`
	API   APIConfig   `yaml:"api"`
}

// JobConfig configures one capture job over one source
type JobConfig struct {
	Source string `yaml:"source"` // Registered source name
	Output string `yaml:"output"` // Output video path

	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	Framerate int `yaml:"framerate"`

	Start    float64 `yaml:"start"`    // Logical seconds before capture begins
	Duration float64 `yaml:"duration"` // Logical seconds of capture

	Codec   string `yaml:"codec"`   // libx264, libx265
	Preset  string `yaml:"preset"`  // ultrafast .. veryslow
	Bitrate int    `yaml:"bitrate"` // kbps, 0 = codec default

	QueueDepth int `yaml:"queue_depth"` // In-flight readback bound
}

// ClockConfig selects the process-wide clock-control strategy
type ClockConfig struct {
	Mode string `yaml:"mode"` // slowdown, target-rate
}

// APIConfig configures the control API
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills defaults and validates enumerated fields.
func (c *Config) applyDefaults() error {
	if _, err := clock.ParseMode(c.Clock.Mode); err != nil {
		return fmt.Errorf("clock config: %w", err)
	}
	if c.Clock.Mode == "" {
		c.Clock.Mode = string(clock.ModeTargetRate)
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}

	for i := range c.Jobs {
		j := &c.Jobs[i]
		if j.Source == "" {
			return fmt.Errorf("job %d: source is required", i)
		}
		if j.Duration <= 0 {
			return fmt.Errorf("job %q: duration must be positive", j.Source)
		}
		if j.Start < 0 {
			return fmt.Errorf("job %q: start must not be negative", j.Source)
		}
		if j.Output == "" {
			j.Output = j.Source + ".mp4"
		}
		if j.Width == 0 {
			j.Width = 1280
		}
		if j.Height == 0 {
			j.Height = 720
		}
		if j.Framerate == 0 {
			j.Framerate = 30
		}
		if j.Codec == "" {
			j.Codec = "libx264"
		}
		preset, err := ffmpeg.ParsePreset(j.Preset)
		if err != nil {
			return fmt.Errorf("job %q: %w", j.Source, err)
		}
		j.Preset = string(preset)
		if j.QueueDepth == 0 {
			j.QueueDepth = readback.DefaultCapacity
		}
	}

	return nil
}
