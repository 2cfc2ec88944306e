package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Compile-time check that FileSource implements Source interface.
var _ Source = (*FileSource)(nil)

// FileSource reads previously saved node responses from a directory.
//
// For every transaction it expects two files named after the 0x-prefixed
// lower-case hash:
//   - <hash>.trace.json: the raw trace response
//   - <hash>.tx.json: the TransactionDetails plus a "client" field naming the
//     client type that produced the trace
type FileSource struct {
	log logrus.FieldLogger
	dir string
}

// savedTransaction is the on-disk layout of a <hash>.tx.json file.
type savedTransaction struct {
	Client ClientType `json:"client"`
	TransactionDetails
}

// NewFileSource creates a source reading from dir.
func NewFileSource(log logrus.FieldLogger, dir string) *FileSource {
	return &FileSource{
		log: log.WithFields(logrus.Fields{"type": "file", "source": dir}),
		dir: dir,
	}
}

// Name returns the directory the source reads from.
func (f *FileSource) Name() string {
	return f.dir
}

// Trace reads <hash>.trace.json. The shape comes from the client recorded in
// <hash>.tx.json, defaulting to the flat layout.
func (f *FileSource) Trace(_ context.Context, hash common.Hash) (Shape, []byte, error) {
	raw, err := os.ReadFile(f.path(hash, "trace"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrTraceNotFound, hash)
		}

		return "", nil, fmt.Errorf("failed to read trace of %s: %w", hash, err)
	}

	saved, err := f.load(hash)
	if err != nil {
		f.log.WithError(err).WithField("tx_hash", hash).Debug("No transaction file, assuming flat trace shape")

		return ShapeFlat, raw, nil
	}

	return saved.Client.Shape(), raw, nil
}

// Transaction reads <hash>.tx.json.
func (f *FileSource) Transaction(_ context.Context, hash common.Hash) (*TransactionDetails, error) {
	saved, err := f.load(hash)
	if err != nil {
		return nil, err
	}

	details := saved.TransactionDetails
	if details.Hash == (common.Hash{}) {
		details.Hash = hash
	}

	return &details, nil
}

func (f *FileSource) load(hash common.Hash) (*savedTransaction, error) {
	raw, err := os.ReadFile(f.path(hash, "tx"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, hash)
		}

		return nil, fmt.Errorf("failed to read transaction %s: %w", hash, err)
	}

	var saved savedTransaction
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("failed to parse transaction file of %s: %w", hash, err)
	}

	return &saved, nil
}

func (f *FileSource) path(hash common.Hash, kind string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s.%s.json", hash.Hex(), kind))
}
