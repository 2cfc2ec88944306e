package processor

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNothingToRender = errors.New("no transaction could be loaded")
	ErrInvalidHash     = errors.New("invalid transaction hash")
)

// TransactionError is the load failure of one transaction in a batch.
type TransactionError struct {
	Hash common.Hash
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Hash.Hex(), e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// FailedTransactions collects the per-transaction failures joined into err.
func FailedTransactions(err error) map[common.Hash]error {
	failed := make(map[common.Hash]error)

	var walk func(err error)

	walk = func(err error) {
		if err == nil {
			return
		}

		switch e := err.(type) {
		case *TransactionError:
			failed[e.Hash] = e.Err
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		}
	}

	walk(err)

	return failed
}
