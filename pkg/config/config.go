// Package config provides the configuration of callflow.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/callflow/pkg/abi"
	"github.com/ethpandaops/callflow/pkg/diagram"
	"github.com/ethpandaops/callflow/pkg/ethereum"
	"github.com/ethpandaops/callflow/pkg/processor"
)

// DefaultFile is read when no config file is given.
const DefaultFile = "config.yaml"

// Config is the main configuration for callflow.
type Config struct {
	// MetricsAddr is the address to listen on for metrics. Unset disables metrics.
	MetricsAddr *string `yaml:"metricsAddr"`
	// PProfAddr is the address to listen on for pprof.
	PProfAddr *string `yaml:"pprofAddr"`
	// APIAddr is the address the diagram API listens on in serve mode.
	APIAddr string `yaml:"apiAddr" default:":8080"`
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// Ethereum is the ethereum network configuration.
	Ethereum ethereum.Config `yaml:"ethereum"`
	// Processor is the transaction loading configuration.
	Processor processor.Config `yaml:"processor"`
	// Diagram controls what the diagrams show.
	Diagram diagram.Options `yaml:"diagram"`
	// Contracts are the known contracts: display names, token metadata and ABIs.
	Contracts []*Contract `yaml:"contracts"`
	// ExcludedContracts are removed from the call tree with everything they call.
	ExcludedContracts []string `yaml:"excludedContracts"`
	// Output is where diagram files are written.
	Output Output `yaml:"output"`
	// ShutdownTimeout is the timeout for shutting down the servers.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
}

// Contract describes a known contract.
type Contract struct {
	Address     string `yaml:"address"`
	Name        string `yaml:"name"`
	Protocol    string `yaml:"protocol"`
	TokenSymbol string `yaml:"tokenSymbol"`
	TokenName   string `yaml:"tokenName"`
	Decimals    int    `yaml:"decimals"`
	// ABI is the path of an ABI JSON file or a Hardhat or Foundry artifact.
	ABI string `yaml:"abi"`
}

// Output is the diagram file location.
type Output struct {
	Dir string `yaml:"dir" default:"."`
	// FileName without extension. Empty uses the first transaction hash.
	FileName string `yaml:"fileName"`
}

// Path returns the diagram file path for a run over hashes. suffix is
// appended to the base name, for example "-value".
func (o *Output) Path(hashes []common.Hash, suffix string) string {
	name := o.FileName
	if name == "" && len(hashes) > 0 {
		name = hashes[0].Hex()
	}

	return filepath.Join(o.Dir, name+suffix+".puml")
}

// Load reads a YAML config file over the defaults.
func Load(file string) (*Config, error) {
	if file == "" {
		file = DefaultFile
	}

	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	type plain Config

	if err := yaml.Unmarshal(yamlFile, (*plain)(config)); err != nil {
		return nil, err
	}

	// Execution nodes are only known after unmarshalling.
	for _, node := range config.Ethereum.Execution {
		if err := defaults.Set(node); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Ethereum.Validate(); err != nil {
		return fmt.Errorf("invalid ethereum configuration: %w", err)
	}

	if err := c.Processor.Validate(); err != nil {
		return fmt.Errorf("invalid processor configuration: %w", err)
	}

	if err := c.Diagram.Validate(); err != nil {
		return fmt.Errorf("invalid diagram configuration: %w", err)
	}

	seen := make(map[common.Address]bool, len(c.Contracts))

	for i, contract := range c.Contracts {
		if err := contract.Validate(); err != nil {
			return fmt.Errorf("invalid contract configuration at index %d: %w", i, err)
		}

		addr := common.HexToAddress(contract.Address)
		if seen[addr] {
			return fmt.Errorf("contract %s is configured more than once", addr.Hex())
		}

		seen[addr] = true
	}

	for _, addr := range c.ExcludedContracts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid excluded contract address %q", addr)
		}
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output dir is required")
	}

	return nil
}

// Validate validates the contract configuration.
func (c *Contract) Validate() error {
	if !common.IsHexAddress(c.Address) {
		return fmt.Errorf("invalid address %q", c.Address)
	}

	if c.Decimals < 0 {
		return fmt.Errorf("decimals must not be negative, got %d", c.Decimals)
	}

	return nil
}

// Participants returns the display metadata of the configured contracts.
func (c *Config) Participants() diagram.Participants {
	participants := make(diagram.Participants, len(c.Contracts))

	for _, contract := range c.Contracts {
		addr := common.HexToAddress(contract.Address)

		participants[addr] = &diagram.Participant{
			Address:     addr,
			Name:        contract.Name,
			Protocol:    contract.Protocol,
			TokenSymbol: contract.TokenSymbol,
			TokenName:   contract.TokenName,
			Decimals:    contract.Decimals,
		}
	}

	return participants
}

// Excluded returns the set of excluded contract addresses.
func (c *Config) Excluded() mapset.Set[common.Address] {
	excluded := mapset.NewSet[common.Address]()

	for _, addr := range c.ExcludedContracts {
		excluded.Add(common.HexToAddress(addr))
	}

	return excluded
}

// Registry loads the ABI of every contract that has one. It returns a nil
// registry when no contract has an ABI, so calls are shown by selector.
func (c *Config) Registry(log logrus.FieldLogger) (*abi.Registry, error) {
	var registry *abi.Registry

	for _, contract := range c.Contracts {
		if contract.ABI == "" {
			continue
		}

		if registry == nil {
			r, err := abi.NewRegistry(log)
			if err != nil {
				return nil, err
			}

			registry = r
		}

		parsed, bytecode, err := abi.LoadFile(contract.ABI)
		if err != nil {
			return nil, fmt.Errorf("failed to load abi of %s: %w", contract.Address, err)
		}

		registry.Register(&abi.Contract{
			Address:  common.HexToAddress(contract.Address),
			Name:     contract.Name,
			ABI:      parsed,
			Bytecode: bytecode,
		})
	}

	if registry != nil {
		log.WithField("contracts", registry.Len()).Info("Loaded contract ABIs")
	}

	return registry, nil
}
