package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var envVars = []string{
	"LUNABELL_CONFIG", "LUNABELL_PORT", "LUNABELL_BPM", "LUNABELL_LOOKAHEAD_MS",
	"LUNABELL_POLL_INTERVAL_MS", "LUNABELL_START_OFFSET_MS", "LUNABELL_PULSE_MS",
	"LUNABELL_FPS", "LUNABELL_MASTER_GAIN", "LUNABELL_OPUS_BITRATE",
	"LUNABELL_MP3_BITRATE", "LUNABELL_LOCAL_PLAYBACK", "LUNABELL_LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 120.0, cfg.BPM)
	assert.Equal(t, 100*time.Millisecond, cfg.Lookahead)
	assert.Equal(t, 25*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.StartOffset)
	assert.Equal(t, 100*time.Millisecond, cfg.PulseDuration)
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, 0.6, cfg.MasterGain)
	assert.Equal(t, 128000, cfg.OpusBitrate)
	assert.Equal(t, "192k", cfg.MP3Bitrate)
	assert.False(t, cfg.LocalPlayback)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUNABELL_PORT", "3000")
	t.Setenv("LUNABELL_BPM", "128.5")
	t.Setenv("LUNABELL_LOOKAHEAD_MS", "200")
	t.Setenv("LUNABELL_POLL_INTERVAL_MS", "40")
	t.Setenv("LUNABELL_START_OFFSET_MS", "10")
	t.Setenv("LUNABELL_PULSE_MS", "80")
	t.Setenv("LUNABELL_FPS", "30")
	t.Setenv("LUNABELL_MASTER_GAIN", "0.8")
	t.Setenv("LUNABELL_OPUS_BITRATE", "64000")
	t.Setenv("LUNABELL_MP3_BITRATE", "128k")
	t.Setenv("LUNABELL_LOCAL_PLAYBACK", "true")
	t.Setenv("LUNABELL_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 128.5, cfg.BPM)
	assert.Equal(t, 200*time.Millisecond, cfg.Lookahead)
	assert.Equal(t, 40*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10*time.Millisecond, cfg.StartOffset)
	assert.Equal(t, 80*time.Millisecond, cfg.PulseDuration)
	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, 0.8, cfg.MasterGain)
	assert.Equal(t, 64000, cfg.OpusBitrate)
	assert.Equal(t, "128k", cfg.MP3Bitrate)
	assert.True(t, cfg.LocalPlayback)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvInvalidFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUNABELL_PORT", "not-a-number")
	t.Setenv("LUNABELL_BPM", "fast")
	t.Setenv("LUNABELL_LOCAL_PLAYBACK", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 120.0, cfg.BPM)
	assert.False(t, cfg.LocalPlayback)
}

func TestConfigFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lunabell.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
bpm: 100
lookahead: 150ms
poll_interval: 30ms
local_playback: true
`), 0644))
	t.Setenv("LUNABELL_CONFIG", path)
	t.Setenv("LUNABELL_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, 7070, cfg.Port, "env wins over the file")
	assert.Equal(t, 100.0, cfg.BPM)
	assert.Equal(t, 150*time.Millisecond, cfg.Lookahead)
	assert.Equal(t, 30*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.LocalPlayback)
	assert.Equal(t, 60, cfg.FPS, "unset keys keep defaults")
}

func TestMissingConfigFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUNABELL_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	assert.Error(t, err)
	assert.Equal(t, Defaults().BPM, cfg.BPM)
	assert.Equal(t, Defaults().Port, cfg.Port)
}

func TestYAMLRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "out.yaml")
	want := Defaults()
	want.BPM = 140
	want.LocalPlayback = true
	b, err := yaml.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	t.Setenv("LUNABELL_CONFIG", path)
	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 140.0, got.BPM)
	assert.True(t, got.LocalPlayback)
	assert.Equal(t, want.Lookahead, got.Lookahead)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero bpm":         func(c *Config) { c.BPM = 0 },
		"zero poll":        func(c *Config) { c.PollInterval = 0 },
		"window too short": func(c *Config) { c.Lookahead = c.PollInterval },
		"negative gain":    func(c *Config) { c.MasterGain = -0.1 },
		"zero frames":      func(c *Config) { c.FPS = 0 },
		"negative bpm":     func(c *Config) { c.BPM = -120 },
		"negative offset":  func(c *Config) { c.StartOffset = -200 * time.Millisecond },
		"negative pulse":   func(c *Config) { c.PulseDuration = -time.Millisecond },
	}
	for name, mutate := range cases {
		c := Defaults()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestNegativeStartOffsetFromEnvRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUNABELL_START_OFFSET_MS", "-200")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, -200*time.Millisecond, cfg.StartOffset)
	assert.Error(t, cfg.Validate())
}

func TestSchedulerSection(t *testing.T) {
	c := Defaults()
	c.BPM = 90
	c.PollInterval = 20 * time.Millisecond
	s := c.Scheduler()
	assert.Equal(t, 90.0, s.BPM)
	assert.Equal(t, c.Lookahead, s.Lookahead)
	assert.Equal(t, 20*time.Millisecond, s.Interval)
	assert.Equal(t, c.StartOffset, s.StartOffset)
	assert.NoError(t, s.Validate())
}
