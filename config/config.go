package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration. Missing sections keep the
// values from Default.
type Config struct {
	World       WorldConfig       `yaml:"world"`
	Mesh        MeshConfig        `yaml:"mesh"`
	Interaction InteractionConfig `yaml:"interaction"`
	Window      WindowConfig      `yaml:"window"`
	Time        TimeConfig        `yaml:"time"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

type WorldConfig struct {
	Seed           int64   `yaml:"seed"`
	ViewRadius     int     `yaml:"view_radius"`
	VerticalRadius int     `yaml:"vertical_radius"`
	NoiseScale     float64 `yaml:"noise_scale"`
	BaseHeight     int     `yaml:"base_height"`
	Amplitude      int     `yaml:"amplitude"`
}

type MeshConfig struct {
	MaxSlots        int `yaml:"max_slots"`
	Workers         int `yaml:"workers"`
	AnimationMillis int `yaml:"animation_ms"`
	RetryDelay      int `yaml:"retry_delay_updates"`
}

func (m MeshConfig) AnimationDuration() time.Duration {
	return time.Duration(m.AnimationMillis) * time.Millisecond
}

type InteractionConfig struct {
	TicksPerInteraction int     `yaml:"ticks_per_interaction"`
	Reach               float32 `yaml:"reach"`
}

type WindowConfig struct {
	Headless bool   `yaml:"headless"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Title    string `yaml:"title"`
}

type TimeConfig struct {
	TickRate int `yaml:"tick_rate"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:           1337,
			ViewRadius:     4,
			VerticalRadius: 1,
			NoiseScale:     0.03,
			BaseHeight:     8,
			Amplitude:      12,
		},
		Mesh: MeshConfig{
			MaxSlots:        256,
			Workers:         2,
			AnimationMillis: 500,
			RetryDelay:      8,
		},
		Interaction: InteractionConfig{
			TicksPerInteraction: 15,
			Reach:               8,
		},
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "voxstream",
		},
		Time: TimeConfig{
			TickRate: 60,
		},
	}
}

// Load reads the YAML file at path over Default. An empty path falls back
// to VOXSTREAM_CONFIG; with neither set the defaults are returned.
// VOXSTREAM_METRICS_ADDR fills metrics.addr when the file leaves it empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VOXSTREAM_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = os.Getenv("VOXSTREAM_METRICS_ADDR")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.World.ViewRadius < 0 || c.World.VerticalRadius < 0:
		return fmt.Errorf("config: view radius must not be negative")
	case c.Mesh.MaxSlots <= 0:
		return fmt.Errorf("config: mesh.max_slots must be positive")
	case c.Mesh.Workers < 0:
		return fmt.Errorf("config: mesh.workers must not be negative")
	case c.Time.TickRate <= 0:
		return fmt.Errorf("config: time.tick_rate must be positive")
	case c.Interaction.TicksPerInteraction <= 0:
		return fmt.Errorf("config: interaction.ticks_per_interaction must be positive")
	}
	return nil
}
