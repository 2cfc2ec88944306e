//go:build !embedded

package geth

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

// NewTransactionDetails combines a go-ethereum transaction, receipt and header
// into the metadata rendered in diagram headers.
// The sender is recovered with the signer matching the transaction's chain ID.
func NewTransactionDetails(tx *types.Transaction, receipt *types.Receipt, header *types.Header) *execution.TransactionDetails {
	// Determine the appropriate signer for extracting the sender
	var signer types.Signer

	chainID := tx.ChainId()
	if chainID == nil || chainID.Sign() == 0 {
		// Legacy transaction without EIP-155 replay protection
		signer = types.HomesteadSigner{}
	} else {
		signer = types.LatestSignerForChainID(chainID)
	}

	from, _ := types.Sender(signer, tx)

	var chain int64
	if chainID != nil {
		chain = chainID.Int64()
	}

	details := &execution.TransactionDetails{
		Hash:     tx.Hash(),
		ChainID:  chain,
		From:     from,
		To:       tx.To(),
		Nonce:    tx.Nonce(),
		Value:    tx.Value(),
		Input:    tx.Data(),
		GasPrice: tx.GasPrice(),
		GasLimit: tx.Gas(),
	}

	if receipt != nil {
		details.GasUsed = receipt.GasUsed
		details.Status = receipt.Status
		details.Logs = AdaptLogs(receipt.Logs)

		if receipt.BlockNumber != nil {
			details.BlockNumber = receipt.BlockNumber.Uint64()
		}

		// Dynamic fee transactions pay the effective price, not the fee cap
		if receipt.EffectiveGasPrice != nil {
			details.GasPrice = receipt.EffectiveGasPrice
		}

		if receipt.ContractAddress != (common.Address{}) {
			addr := receipt.ContractAddress
			details.ContractAddress = &addr
		}
	}

	if header != nil {
		details.Timestamp = header.Time
	}

	return details
}

// AdaptLogs converts go-ethereum receipt logs.
func AdaptLogs(logs []*types.Log) []execution.Log {
	result := make([]execution.Log, 0, len(logs))

	for _, l := range logs {
		result = append(result, execution.Log{
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
			Index:   l.Index,
		})
	}

	return result
}
