//go:build !embedded

package geth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

const (
	statusError   = "error"
	statusSuccess = "success"
)

// callTracerParams returns the debug_traceTransaction parameters selecting geth's callTracer.
func callTracerParams(hash common.Hash) []any {
	return []any{
		hash,
		map[string]any{
			"tracer": "callTracer",
		},
	}
}

// Trace returns the raw trace response of the transaction in the shape the
// node's client type produces.
func (n *RPCNode) Trace(ctx context.Context, hash common.Hash) (execution.Shape, []byte, error) {
	shape := n.ClientType().Shape()

	var (
		rsp    json.RawMessage
		method string
		params []any
	)

	switch shape {
	case execution.ShapeNested:
		method = "debug_traceTransaction"
		params = callTracerParams(hash)
	default:
		method = "trace_transaction"
		params = []any{hash}
	}

	err := n.retry(ctx, method, func(ctx context.Context) error {
		return n.rpcClient.CallContext(ctx, &rsp, method, params...)
	})
	if err != nil {
		return shape, nil, fmt.Errorf("failed to call %s on %s: %w", method, n.config.Name, err)
	}

	return shape, rsp, nil
}

// Transaction fetches the transaction, its receipt and block header.
func (n *RPCNode) Transaction(ctx context.Context, hash common.Hash) (*execution.TransactionDetails, error) {
	var (
		tx      *types.Transaction
		receipt *types.Receipt
		header  *types.Header
	)

	err := n.retry(ctx, "eth_getTransactionByHash", func(ctx context.Context) error {
		var err error

		tx, _, err = n.client.TransactionByHash(ctx, hash)

		return notFound(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}

	err = n.retry(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		var err error

		receipt, err = n.client.TransactionReceipt(ctx, hash)

		return notFound(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt of transaction %s: %w", hash, err)
	}

	err = n.retry(ctx, "eth_getBlockByHash", func(ctx context.Context) error {
		var err error

		header, err = n.client.HeaderByHash(ctx, receipt.BlockHash)

		return notFound(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", receipt.BlockHash, err)
	}

	return NewTransactionDetails(tx, receipt, header), nil
}

func notFound(err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%w: %w", execution.ErrTransactionNotFound, err)
	}

	return err
}
