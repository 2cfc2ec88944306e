package ethereum

import "errors"

// Sentinel errors for Ethereum client operations.
var (
	// ErrNoSource indicates no trace source is configured.
	ErrNoSource = errors.New("no trace source configured")

	// ErrUnsupportedChainID indicates an unsupported chain ID was provided.
	ErrUnsupportedChainID = errors.New("unsupported chain ID")
)
