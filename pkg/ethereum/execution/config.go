package execution

import (
	"errors"
	"fmt"
	"time"
)

// Config is the configuration of a single execution node.
type Config struct {
	// Name is a human readable name for the node.
	Name string `yaml:"name"`
	// NodeAddress is the JSON-RPC endpoint of the node.
	NodeAddress string `yaml:"nodeAddress"`
	// NodeHeaders are extra HTTP headers sent with every request.
	NodeHeaders map[string]string `yaml:"nodeHeaders"`
	// Client selects the trace API. Empty means detect from web3_clientVersion.
	Client ClientType `yaml:"client"`
	// Timeout bounds a single RPC request.
	Timeout time.Duration `yaml:"timeout" default:"60s"`
	// MaxRetryElapsed bounds the retries of a failed request.
	MaxRetryElapsed time.Duration `yaml:"maxRetryElapsed" default:"30s"`
}

// Validate validates the node configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}

	if c.NodeAddress == "" {
		return errors.New("nodeAddress is required")
	}

	if c.Client != "" && !c.Client.Valid() {
		return fmt.Errorf("unknown client type %q", c.Client)
	}

	return nil
}
