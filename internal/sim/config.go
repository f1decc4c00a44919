package sim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aradilov/boundedring/errors"
)

// Config is the driver configuration, loadable from YAML.
type Config struct {
	// Capacity of the shared channel
	Capacity int `yaml:"capacity"`
	// Unit is the length of one arrival/burst tick
	Unit time.Duration `yaml:"unit"`
	// Jitter randomizes the spacing between a task's items by up to this fraction
	Jitter float64 `yaml:"jitter"`
	// Timeout bounds the whole run; zero means no limit
	Timeout time.Duration `yaml:"timeout"`

	Demo DemoConfig `yaml:"demo"`
}

// DemoConfig drives the single producer / single consumer demo.
type DemoConfig struct {
	Items        int           `yaml:"items"`
	ProduceEvery time.Duration `yaml:"produce_every"`
	ConsumeEvery time.Duration `yaml:"consume_every"`
}

// DefaultConfig mirrors the classic demo: three slots, five items, a producer
// pausing 500ms and a slower consumer pausing 800ms, one-second ticks.
func DefaultConfig() Config {
	return Config{
		Capacity: 3,
		Unit:     time.Second,
		Demo: DemoConfig{
			Items:        5,
			ProduceEvery: 500 * time.Millisecond,
			ConsumeEvery: 800 * time.Millisecond,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WrapFatal(err, "Config", "Load", "read "+path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"Config", "Load", "decode "+path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	var problem string
	switch {
	case c.Capacity <= 0:
		problem = fmt.Sprintf("capacity must be > 0, got %d", c.Capacity)
	case c.Unit < 0:
		problem = "unit must be >= 0"
	case c.Jitter < 0 || c.Jitter > 1:
		problem = fmt.Sprintf("jitter must be within [0, 1], got %v", c.Jitter)
	case c.Timeout < 0:
		problem = "timeout must be >= 0"
	case c.Demo.Items < 0:
		problem = "demo.items must be >= 0"
	case c.Demo.ProduceEvery < 0 || c.Demo.ConsumeEvery < 0:
		problem = "demo pacing must be >= 0"
	default:
		return nil
	}
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, problem),
		"Config", "Validate", "check values")
}
