package ethereum

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

// Compile-time check that Pool implements execution.Source interface.
var _ execution.Source = (*Pool)(nil)

// Pool fans requests out over several sources in order, falling over to the
// next one when a source fails.
type Pool struct {
	log     logrus.FieldLogger
	sources []execution.Source
	metrics *Metrics
	config  *Config
}

// NewPoolWithSources creates a pool with pre-created sources.
//
// Parameters:
//   - log: Logger for pool operations
//   - namespace: Metrics namespace prefix (will have "_ethereum" appended)
//   - sources: Sources in the order they should be tried
//   - config: Optional configuration (nil creates empty config with defaults)
func NewPoolWithSources(log logrus.FieldLogger, namespace string, sources []execution.Source, config *Config) *Pool {
	namespace = fmt.Sprintf("%s_ethereum", namespace)

	// If config is nil, create an empty config
	if config == nil {
		config = &Config{}
	}

	return &Pool{
		log:     log,
		sources: sources,
		metrics: GetMetricsInstance(namespace),
		config:  config,
	}
}

func (p *Pool) HasSources() bool {
	return len(p.sources) > 0
}

// Name returns the names of all pooled sources.
func (p *Pool) Name() string {
	return fmt.Sprintf("pool(%d)", len(p.sources))
}

// Trace returns the trace from the first source that has it.
func (p *Pool) Trace(ctx context.Context, hash common.Hash) (execution.Shape, []byte, error) {
	var (
		shape execution.Shape
		raw   []byte
	)

	err := p.each(ctx, "trace", hash, func(src execution.Source) error {
		var err error

		shape, raw, err = src.Trace(ctx, hash)

		return err
	})

	return shape, raw, err
}

// Transaction returns the transaction details from the first source that has them.
func (p *Pool) Transaction(ctx context.Context, hash common.Hash) (*execution.TransactionDetails, error) {
	var details *execution.TransactionDetails

	err := p.each(ctx, "transaction", hash, func(src execution.Source) error {
		var err error

		details, err = src.Transaction(ctx, hash)

		return err
	})

	return details, err
}

func (p *Pool) each(ctx context.Context, operation string, hash common.Hash, fn func(src execution.Source) error) error {
	if len(p.sources) == 0 {
		return ErrNoSource
	}

	var errs []error

	for _, src := range p.sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(src)
		if err == nil {
			return nil
		}

		p.metrics.IncFailovers(src.Name(), operation)

		p.log.WithError(err).WithFields(logrus.Fields{
			"source":    src.Name(),
			"operation": operation,
			"tx_hash":   hash,
		}).Debug("Source failed, trying next")

		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}

	return errors.Join(errs...)
}

// Network returns the network of a chain ID.
// If overrideNetworkName is set in config, it returns that name instead of using networkMap.
func (p *Pool) Network(chainID int64) (*Network, error) {
	// If override is set, use it instead of the networkMap
	if p.config.OverrideNetworkName != nil && *p.config.OverrideNetworkName != "" {
		return &Network{
			ID:       chainID,
			Name:     *p.config.OverrideNetworkName,
			Currency: "ETH",
		}, nil
	}

	return GetNetworkByChainID(chainID)
}
