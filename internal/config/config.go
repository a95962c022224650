package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/lunabell/internal/scheduler"
)

// Config holds all runtime configuration. Defaults are overridden by the
// optional YAML file named in LUNABELL_CONFIG, then by environment
// variables.
type Config struct {
	ConfigFile string `yaml:"-"`

	// Server
	Port int `yaml:"port"`

	// Timing
	BPM           float64       `yaml:"bpm"`
	Lookahead     time.Duration `yaml:"lookahead"`     // audio scheduling window
	PollInterval  time.Duration `yaml:"poll_interval"` // scheduler polling period
	StartOffset   time.Duration `yaml:"start_offset"`  // delay before the first beat
	PulseDuration time.Duration `yaml:"pulse"`         // visual accent length
	FPS           int           `yaml:"fps"`           // beat clock frame rate

	// Output
	MasterGain    float64 `yaml:"master_gain"`
	OpusBitrate   int     `yaml:"opus_bitrate"`
	MP3Bitrate    string  `yaml:"mp3_bitrate"`
	LocalPlayback bool    `yaml:"local_playback"` // also play through the host sound card

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the stock configuration: 120 BPM, a 100ms lookahead
// polled every 25ms.
func Defaults() Config {
	return Config{
		Port:          8080,
		BPM:           120,
		Lookahead:     100 * time.Millisecond,
		PollInterval:  25 * time.Millisecond,
		StartOffset:   50 * time.Millisecond,
		PulseDuration: 100 * time.Millisecond,
		FPS:           60,
		MasterGain:    0.6,
		OpusBitrate:   128000,
		MP3Bitrate:    "192k",
		LogLevel:      "info",
	}
}

// Load builds the configuration. A config file that cannot be read or
// parsed is reported, but the returned Config is still usable.
func Load() (Config, error) {
	cfg := Defaults()
	cfg.ConfigFile = envStr("LUNABELL_CONFIG", "")

	var fileErr error
	if cfg.ConfigFile != "" {
		fileErr = applyFile(cfg.ConfigFile, &cfg)
	}

	cfg.Port = envInt("LUNABELL_PORT", cfg.Port)
	cfg.BPM = envFloat("LUNABELL_BPM", cfg.BPM)
	cfg.Lookahead = envMillis("LUNABELL_LOOKAHEAD_MS", cfg.Lookahead)
	cfg.PollInterval = envMillis("LUNABELL_POLL_INTERVAL_MS", cfg.PollInterval)
	cfg.StartOffset = envMillis("LUNABELL_START_OFFSET_MS", cfg.StartOffset)
	cfg.PulseDuration = envMillis("LUNABELL_PULSE_MS", cfg.PulseDuration)
	cfg.FPS = envInt("LUNABELL_FPS", cfg.FPS)
	cfg.MasterGain = envFloat("LUNABELL_MASTER_GAIN", cfg.MasterGain)
	cfg.OpusBitrate = envInt("LUNABELL_OPUS_BITRATE", cfg.OpusBitrate)
	cfg.MP3Bitrate = envStr("LUNABELL_MP3_BITRATE", cfg.MP3Bitrate)
	cfg.LocalPlayback = envBool("LUNABELL_LOCAL_PLAYBACK", cfg.LocalPlayback)
	cfg.LogLevel = envStr("LUNABELL_LOG_LEVEL", cfg.LogLevel)

	return cfg, fileErr
}

// Scheduler returns the percussion timing section.
func (c Config) Scheduler() scheduler.Config {
	return scheduler.Config{
		BPM:         c.BPM,
		Lookahead:   c.Lookahead,
		Interval:    c.PollInterval,
		StartOffset: c.StartOffset,
	}
}

// Validate rejects configurations the scheduler cannot honour.
func (c Config) Validate() error {
	if err := c.Scheduler().Validate(); err != nil {
		return err
	}
	switch {
	case c.PulseDuration < 0:
		return fmt.Errorf("pulse must not be negative, got %v", c.PulseDuration)
	case c.MasterGain < 0:
		return fmt.Errorf("master gain must not be negative, got %v", c.MasterGain)
	case c.FPS <= 0:
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	return nil
}

func applyFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envMillis(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
