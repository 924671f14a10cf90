package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# wider hidden layers than the default
data_dir: /tmp/mnist
epochs: 2
batch_size: 32
hidden: [256, 128]
learning_rate: 0.01
seed: 7
num_workers: 3
shuffle: false
checkpoint: out.json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/mnist", cfg.DataDir)
	assert.Equal(t, 2, cfg.Epochs)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, []int{256, 128}, cfg.Hidden)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 3, cfg.NumWorkers)
	assert.False(t, cfg.Shuffle)
	assert.Equal(t, "out.json", cfg.Checkpoint)
	assert.Equal(t, 100, cfg.LogEvery, "unset keys keep defaults")
	assert.Equal(t, 1.0, cfg.InitScale)
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Hidden, cfg.Hidden)
	assert.Equal(t, 0.003, cfg.LearningRate)
	assert.GreaterOrEqual(t, cfg.NumWorkers, 1)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "epochs: 1\nmomentum: 0.9\n"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "momentum"), err.Error())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no data dir", func(c *Config) { c.DataDir = "" }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }},
		{"zero lr", func(c *Config) { c.LearningRate = 0 }},
		{"bad hidden", func(c *Config) { c.Hidden = []int{64, 0} }},
		{"negative max samples", func(c *Config) { c.MaxSamples = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{Epochs: 9, LearningRate: 0.5, DataDir: "x"})
	assert.Equal(t, 9, cfg.Epochs)
	assert.Equal(t, 0.5, cfg.LearningRate)
	assert.Equal(t, "x", cfg.DataDir)
	assert.Equal(t, 64, cfg.BatchSize, "zero overrides are ignored")
}

func TestDefaultWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
}
