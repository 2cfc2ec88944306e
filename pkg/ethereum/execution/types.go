package execution

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Source provides the raw data needed to render a transaction.
//
// Implementations include:
//   - geth.RPCNode: fetches from an execution client over JSON-RPC
//   - FileSource: reads previously saved responses from disk
//
// All methods must be safe for concurrent use by multiple goroutines.
type Source interface {
	// Trace returns the raw trace response for the transaction and the shape it is in.
	Trace(ctx context.Context, hash common.Hash) (Shape, []byte, error)

	// Transaction returns the transaction, its receipt and block metadata.
	Transaction(ctx context.Context, hash common.Hash) (*TransactionDetails, error)

	// Name returns the configured name for this source.
	Name() string
}

// TransactionDetails is the transaction metadata shown in diagram headers.
type TransactionDetails struct {
	Hash        common.Hash     `json:"hash"`
	ChainID     int64           `json:"chainId"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Nonce       uint64          `json:"nonce"`
	Value       *big.Int        `json:"value"`
	Input       hexutil.Bytes   `json:"input"`
	GasPrice    *big.Int        `json:"gasPrice"`
	GasLimit    uint64          `json:"gasLimit"`
	GasUsed     uint64          `json:"gasUsed"`
	Status      uint64          `json:"status"`
	BlockNumber uint64          `json:"blockNumber"`
	Timestamp   uint64          `json:"timestamp"`
	// ContractAddress is set when the transaction deployed a contract.
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	Logs            []Log           `json:"logs"`
}

// Failed reports whether the receipt status is a failure.
func (t *TransactionDetails) Failed() bool {
	return t.Status == 0
}

// Fee returns gasUsed * gasPrice.
func (t *TransactionDetails) Fee() *big.Int {
	if t.GasPrice == nil {
		return new(big.Int)
	}

	return new(big.Int).Mul(new(big.Int).SetUint64(t.GasUsed), t.GasPrice)
}

// Log is an event emitted by a contract during the transaction.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
	Index   uint           `json:"logIndex"`
}
