// Package value extracts ether and token transfers from a transaction and
// nets them into per-participant balance changes.
package value

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/trace"
)

// Kind classifies a transfer by which side of it exists.
type Kind int

const (
	Transfer Kind = iota
	Mint
	Burn
)

func (k Kind) String() string {
	switch k {
	case Mint:
		return "Mint"
	case Burn:
		return "Burn"
	default:
		return "Transfer"
	}
}

// Ether is the token address used for native currency transfers.
var Ether = common.Address{}

// TransferTopic is topic0 of the ERC20 and ERC721 Transfer event.
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Movement is one transfer of ether, a fungible token or an NFT.
type Movement struct {
	From  common.Address
	To    common.Address
	Token common.Address
	// Value is the amount moved. Nil for NFT transfers.
	Value *big.Int
	// TokenID is set for NFT transfers.
	TokenID *big.Int
	Kind    Kind
	// Index orders movements within the transaction.
	Index int
}

// IsNFT reports whether the movement transfers a non-fungible token.
func (m *Movement) IsNFT() bool {
	return m.TokenID != nil
}

// FromTraces returns the ether moved by successful traces, in execution order.
func FromTraces(flat []*trace.Trace) []*Movement {
	out := make([]*Movement, 0)

	for _, tr := range flat {
		if !tr.HasValue() || tr.Failed() {
			continue
		}

		out = append(out, &Movement{
			From:  tr.From,
			To:    tr.To,
			Token: Ether,
			Value: new(big.Int).Set(tr.Value),
			Kind:  Transfer,
			Index: len(out),
		})
	}

	return out
}

// FromLogs returns the token movements recorded by ERC20 and ERC721
// Transfer events. ERC721 indexes the token id as a fourth topic.
func FromLogs(logs []execution.Log, offset int) []*Movement {
	out := make([]*Movement, 0)

	for _, l := range logs {
		if len(l.Topics) < 3 || l.Topics[0] != TransferTopic {
			continue
		}

		m := &Movement{
			From:  common.BytesToAddress(l.Topics[1].Bytes()),
			To:    common.BytesToAddress(l.Topics[2].Bytes()),
			Token: l.Address,
			Index: offset + len(out),
		}

		switch {
		case len(l.Topics) == 4:
			m.TokenID = new(big.Int).SetBytes(l.Topics[3].Bytes())
		case len(l.Data) >= common.HashLength:
			m.Value = new(big.Int).SetBytes(l.Data[:common.HashLength])
		default:
			continue
		}

		switch {
		case m.From == (common.Address{}):
			m.Kind = Mint
		case m.To == (common.Address{}):
			m.Kind = Burn
		}

		out = append(out, m)
	}

	return out
}

// Collect returns the ether movements of the traces followed by the token
// movements of the logs.
func Collect(flat []*trace.Trace, logs []execution.Log) []*Movement {
	movements := FromTraces(flat)

	return append(movements, FromLogs(logs, len(movements))...)
}
