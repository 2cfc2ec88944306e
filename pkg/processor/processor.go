// Package processor loads transactions from an execution source and turns
// them into call or value diagrams. A transaction that fails to load is
// logged and left out; it never stops the rest of a batch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/callflow/pkg/abi"
	pcommon "github.com/ethpandaops/callflow/pkg/common"
	"github.com/ethpandaops/callflow/pkg/diagram"
	"github.com/ethpandaops/callflow/pkg/ethereum"
	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/trace"
	"github.com/ethpandaops/callflow/pkg/value"
)

const (
	ModeCall  = "call"
	ModeValue = "value"

	statusSuccess = "success"
	statusFailed  = "failed"

	defaultCurrency = "ETH"
)

// Source is where transactions are loaded from.
type Source interface {
	execution.Source
	Network(chainID int64) (*ethereum.Network, error)
}

// Compile-time check that the ethereum pool can be used as a Source.
var _ Source = (*ethereum.Pool)(nil)

// Processor loads, filters and decorates transactions and writes diagrams.
type Processor struct {
	log          logrus.FieldLogger
	config       *Config
	source       Source
	registry     *abi.Registry
	participants diagram.Participants
	excluded     mapset.Set[common.Address]
	opts         diagram.Options
}

// New creates a processor. registry may be nil, in which case calls are
// shown by selector only.
func New(
	log logrus.FieldLogger,
	config *Config,
	source Source,
	registry *abi.Registry,
	participants diagram.Participants,
	excluded mapset.Set[common.Address],
	opts diagram.Options,
) *Processor {
	if excluded == nil {
		excluded = mapset.NewSet[common.Address]()
	}

	return &Processor{
		log:          log.WithField("component", "processor"),
		config:       config,
		source:       source,
		registry:     registry,
		participants: participants,
		excluded:     excluded,
		opts:         opts,
	}
}

// Load fetches one transaction and prepares its call tree for drawing.
func (p *Processor) Load(ctx context.Context, hash common.Hash) (*diagram.Transaction, error) {
	shape, raw, err := p.source.Trace(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trace of %s: %w", hash, err)
	}

	details, err := p.source.Transaction(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", hash, err)
	}

	tree, err := trace.Normalize(shape, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize trace of %s: %w", hash, err)
	}

	tree = tree.FilterExcluded(p.excluded)

	if p.registry != nil {
		p.registry.AddDelegateTargets(trace.DelegateTargets(tree.Flatten()))
		tree = trace.Decorate(p.log.WithField("tx_hash", hash), tree, p.registry)
	}

	if p.opts.NoDelegates {
		tree = tree.FilterDelegates()
	}

	return &diagram.Transaction{
		Hash:    hash,
		Details: details,
		Traces:  tree.Flatten(),
		Events:  p.events(hash, details.Logs),
	}, nil
}

// events decodes receipt logs. Undecodable logs keep their raw topic.
func (p *Processor) events(hash common.Hash, logs []execution.Log) []*abi.Event {
	events := make([]*abi.Event, 0, len(logs))

	for _, l := range logs {
		raw := &abi.Event{Address: l.Address, Index: l.Index}
		if len(l.Topics) > 0 {
			raw.Topic = l.Topics[0]
		}

		if p.registry == nil {
			events = append(events, raw)

			continue
		}

		ev, err := p.registry.DecodeLog(l)
		if err != nil {
			pcommon.DecodeFailures.WithLabelValues("log").Inc()

			p.log.WithError(err).WithFields(logrus.Fields{
				"tx_hash":   hash,
				"log_index": l.Index,
			}).Warn("Failed to decode log")
		}

		if ev == nil {
			ev = raw
		}

		events = append(events, ev)
	}

	return events
}

// LoadAll loads transactions concurrently. Failed transactions are logged and
// skipped; their errors are joined into the returned error. The loaded
// transactions keep the order of hashes.
func (p *Processor) LoadAll(ctx context.Context, mode string, hashes []common.Hash) ([]*diagram.Transaction, error) {
	loaded := make([]*diagram.Transaction, len(hashes))
	errs := make([]error, len(hashes))

	g := new(errgroup.Group)
	g.SetLimit(p.config.Concurrency)

	for i, hash := range hashes {
		g.Go(func() error {
			start := time.Now()

			tx, err := p.Load(ctx, hash)

			pcommon.TransactionProcessingDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

			if err != nil {
				pcommon.TransactionsProcessed.WithLabelValues(mode, statusFailed).Inc()

				p.log.WithError(err).WithField("tx_hash", hash).Warn("Skipping transaction")

				errs[i] = &TransactionError{Hash: hash, Err: err}

				return nil
			}

			pcommon.TransactionsProcessed.WithLabelValues(mode, statusSuccess).Inc()

			loaded[i] = tx

			return nil
		})
	}

	_ = g.Wait()

	txs := make([]*diagram.Transaction, 0, len(hashes))

	for _, tx := range loaded {
		if tx != nil {
			txs = append(txs, tx)
		}
	}

	return txs, errors.Join(errs...)
}

// options fills in the network and currency from the first transaction's
// chain when they are not configured.
func (p *Processor) options(txs []*diagram.Transaction) diagram.Options {
	opts := p.opts

	if opts.Network != "" && opts.Currency != "" {
		return opts
	}

	for _, tx := range txs {
		if tx.Details == nil || tx.Details.ChainID == 0 {
			continue
		}

		network, err := p.source.Network(tx.Details.ChainID)
		if err != nil {
			p.log.WithError(err).WithField("chain_id", tx.Details.ChainID).Debug("Unknown network")

			break
		}

		if opts.Network == "" {
			opts.Network = network.Name
		}

		if opts.Currency == "" {
			opts.Currency = network.Currency
		}

		break
	}

	if opts.Currency == "" {
		opts.Currency = defaultCurrency
	}

	return opts
}

// WriteCalls writes a call diagram of every transaction that loads. The
// returned error joins the load failures of skipped transactions.
func (p *Processor) WriteCalls(ctx context.Context, w io.Writer, hashes []common.Hash) (*diagram.Result, error) {
	txs, loadErr := p.LoadAll(ctx, ModeCall, hashes)
	if len(txs) == 0 {
		return nil, errors.Join(ErrNothingToRender, loadErr)
	}

	doc := diagram.NewDocument(p.log, p.options(txs), p.participants)

	res, err := doc.WriteCalls(w, txs)
	if err != nil {
		return res, err
	}

	return res, loadErr
}

// WriteValues writes a value transfer diagram of every transaction that loads.
func (p *Processor) WriteValues(ctx context.Context, w io.Writer, hashes []common.Hash) (*value.Balances, error) {
	txs, loadErr := p.LoadAll(ctx, ModeValue, hashes)
	if len(txs) == 0 {
		return nil, errors.Join(ErrNothingToRender, loadErr)
	}

	values := make([]*diagram.ValueTransaction, 0, len(txs))

	for _, tx := range txs {
		values = append(values, &diagram.ValueTransaction{
			Hash:      tx.Hash,
			Details:   tx.Details,
			Movements: value.Collect(tx.Traces, tx.Details.Logs),
		})
	}

	doc := diagram.NewDocument(p.log, p.options(txs), p.participants)

	balances, err := doc.WriteValues(w, values)
	if err != nil {
		return balances, err
	}

	return balances, loadErr
}
