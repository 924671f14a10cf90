package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/cpuid/v2"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	DataDir      string  `yaml:"data_dir"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Hidden       []int   `yaml:"hidden"`
	LearningRate float64 `yaml:"learning_rate"`
	InitScale    float64 `yaml:"init_scale"`
	Seed         int64   `yaml:"seed"`
	LogEvery     int     `yaml:"log_every"`
	NumWorkers   int     `yaml:"num_workers"`
	MaxSamples   int     `yaml:"max_samples"`
	Shuffle      bool    `yaml:"shuffle"`
	Checkpoint   string  `yaml:"checkpoint"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataDir      string
	Epochs       int
	BatchSize    int
	LearningRate float64
	NumWorkers   int
	Seed         int64
	LogEvery     int
	Checkpoint   string
}

// Default returns the baseline configuration: a
// 784-128-64-10 network trained with SGD at lr 0.003.
func Default() *Config {
	return &Config{
		DataDir:      "data/mnist",
		Epochs:       5,
		BatchSize:    64,
		Hidden:       []int{128, 64},
		LearningRate: 0.003,
		InitScale:    1,
		Seed:         1,
		LogEvery:     100,
		Shuffle:      true,
	}
}

// Load reads and validates a Config from YAML. Keys missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.Checkpoint != "" {
		c.Checkpoint = o.Checkpoint
	}
}

// Validate verifies the config is runnable and fills derived defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if !(c.LearningRate > 0) {
		return fmt.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	for i, width := range c.Hidden {
		if width <= 0 {
			return fmt.Errorf("hidden[%d] must be > 0 (got %d)", i, width)
		}
	}
	if c.MaxSamples < 0 {
		return fmt.Errorf("max_samples must be >= 0 (got %d)", c.MaxSamples)
	}
	if c.InitScale < 0 {
		return fmt.Errorf("init_scale must be >= 0 (got %v)", c.InitScale)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 100
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = DefaultWorkers()
	}
	return nil
}

// DefaultWorkers sizes the batch loader pool to the physical core count.
func DefaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return 1
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}
