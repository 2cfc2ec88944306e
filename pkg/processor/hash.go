package processor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseHash parses a 0x-prefixed 32 byte transaction hash.
func ParseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w %q: %w", ErrInvalidHash, s, err)
	}

	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w %q: expected %d bytes, got %d", ErrInvalidHash, s, common.HashLength, len(b))
	}

	return common.BytesToHash(b), nil
}

// ParseHashes parses every hash, failing on the first invalid one.
func ParseHashes(args []string) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(args))

	for _, arg := range args {
		hash, err := ParseHash(arg)
		if err != nil {
			return nil, err
		}

		hashes = append(hashes, hash)
	}

	return hashes, nil
}
