package ethereum

import (
	"fmt"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

type Config struct {
	// Execution configuration
	Execution []*execution.Config `yaml:"execution"`
	// TraceDir is a directory of saved trace and transaction files used before any node.
	TraceDir string `yaml:"traceDir"`
	// Override network name for custom networks (bypasses networkMap)
	OverrideNetworkName *string `yaml:"overrideNetworkName"`
}

func (c *Config) Validate() error {
	if len(c.Execution) == 0 && c.TraceDir == "" {
		return fmt.Errorf("at least one execution node or a traceDir is required")
	}

	for i, execution := range c.Execution {
		if err := execution.Validate(); err != nil {
			return fmt.Errorf("invalid execution configuration at index %d: %w", i, err)
		}
	}

	return nil
}
