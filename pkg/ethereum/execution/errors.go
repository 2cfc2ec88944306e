package execution

import "errors"

// Sentinel errors for trace sources.
var (
	// ErrTransactionNotFound indicates the node or file store has no such transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTraceNotFound indicates no trace data is available for the transaction.
	ErrTraceNotFound = errors.New("trace not found")
)
