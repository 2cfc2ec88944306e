//go:build !embedded

package ethereum

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/ethereum/execution/geth"
)

// NewPool creates a pool from config. A configured traceDir is tried before
// any RPC node. RPC nodes are dialled concurrently.
func NewPool(ctx context.Context, log logrus.FieldLogger, namespace string, config *Config) (*Pool, []*geth.RPCNode, error) {
	sources := make([]execution.Source, 0, len(config.Execution)+1)

	if config.TraceDir != "" {
		sources = append(sources, execution.NewFileSource(log, config.TraceDir))
	}

	nodes := make([]*geth.RPCNode, len(config.Execution))

	g, gctx := errgroup.WithContext(ctx)

	for i, execCfg := range config.Execution {
		node := geth.NewRPCNode(log, execCfg)
		nodes[i] = node

		g.Go(func() error {
			if err := node.Start(gctx); err != nil {
				return fmt.Errorf("failed to start node %s: %w", execCfg.Name, err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, node := range nodes {
		sources = append(sources, node)
	}

	return NewPoolWithSources(log, namespace, sources, config), nodes, nil
}
