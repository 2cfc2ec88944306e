package processor

import (
	"fmt"
)

// Config holds the processor configuration.
type Config struct {
	// Maximum concurrent transactions to load
	Concurrency int `yaml:"concurrency" default:"4"`
}

func (c *Config) Validate() error {
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}

	return nil
}
