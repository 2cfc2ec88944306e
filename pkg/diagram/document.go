package diagram

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/callflow/pkg/abi"
	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/trace"
)

const (
	eventNoteColor = "#aqua"
	gweiDigits     = 9
)

// Transaction is one transaction ready to be drawn.
type Transaction struct {
	Hash common.Hash
	// Details is optional. Without it the header note is skipped and the
	// sender is taken from the root trace.
	Details *execution.TransactionDetails
	// Traces is the flattened, filtered and decorated call tree.
	Traces []*trace.Trace
	Events []*abi.Event
}

// Sender returns the address that signed the transaction.
func (t *Transaction) Sender() common.Address {
	if t.Details != nil {
		return t.Details.From
	}

	if len(t.Traces) > 0 {
		return t.Traces[0].From
	}

	return common.Address{}
}

// Document writes complete diagrams for one or more transactions.
type Document struct {
	log          logrus.FieldLogger
	opts         Options
	participants Participants
	renderer     *Renderer
}

// NewDocument creates a document writer.
func NewDocument(log logrus.FieldLogger, opts Options, participants Participants) *Document {
	return &Document{
		log:          log.WithField("module", "diagram"),
		opts:         opts,
		participants: participants,
		renderer:     NewRenderer(log, opts),
	}
}

// WriteCalls writes a call diagram. More than one transaction puts each in
// its own group and adds a footer; a single transaction gets a caption.
func (d *Document) WriteCalls(w io.Writer, txs []*Transaction) (*Result, error) {
	out := &markup{w: w}
	res := &Result{}
	batch := len(txs) > 1

	d.start(out)

	declared := d.declareParticipants(out, txs, res)
	destroyed := make(map[common.Address]bool)

	for _, tx := range txs {
		if batch {
			out.line("group " + tx.Hash.Hex())
		}

		if !d.opts.NoTxDetails && tx.Details != nil {
			d.writeDetails(out, tx)
		}

		res.merge(d.renderer.render(out, tx.Traces, destroyed))

		if !d.opts.NoLogs {
			d.writeEvents(out, tx.Events, declared, res)
		}

		if batch {
			out.line("end")
		}
	}

	d.finish(out, txHashes(txs))

	if out.err != nil {
		return res, fmt.Errorf("failed to write call diagram: %w", out.err)
	}

	return res, nil
}

func txHashes(txs []*Transaction) []common.Hash {
	hashes := make([]common.Hash, 0, len(txs))
	for _, tx := range txs {
		hashes = append(hashes, tx.Hash)
	}

	return hashes
}

func (d *Document) start(out *markup) {
	out.raw("@startuml")

	if d.opts.Title != "" {
		out.line("title " + escape(d.opts.Title))
	}
}

func (d *Document) finish(out *markup, hashes []common.Hash) {
	switch {
	case len(hashes) > 1:
		out.line("footer")
		out.line(strings.TrimSpace(fmt.Sprintf("%s %d transactions", d.opts.Network, len(hashes))))
		out.line("endfooter")
	case len(hashes) == 1:
		out.line("caption " + strings.TrimSpace(d.opts.Network+" "+hashes[0].Hex()))
	}

	out.line("@enduml")
	out.raw("\n")
}

// declareParticipants declares every address visible under the depth limit
// in order of first appearance and returns the declared set.
func (d *Document) declareParticipants(out *markup, txs []*Transaction, res *Result) map[common.Address]bool {
	depths := make(map[common.Address]int)
	order := make([]common.Address, 0)
	seen := make(map[common.Address]bool)

	add := func(addr common.Address) {
		if !seen[addr] {
			seen[addr] = true
			order = append(order, addr)
		}
	}

	for _, tx := range txs {
		sender := tx.Sender()
		add(sender)

		for addr, depth := range trace.MinDepths(tx.Traces, sender) {
			if current, ok := depths[addr]; !ok || depth < current {
				depths[addr] = depth
			}
		}

		for _, tr := range tx.Traces {
			add(tr.From)

			if tr.Type != trace.Selfdestruct {
				add(tr.To)
			}
		}
	}

	declared := make(map[common.Address]bool, len(order))
	ids := make(lifelines)

	for _, addr := range order {
		if depth, ok := depths[addr]; ok && !d.opts.visible(depth) {
			continue
		}

		declare, warning := ids.claim(addr)
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)

			d.log.WithFields(logrus.Fields{
				"address":  addr.Hex(),
				"lifeline": ID(addr),
			}).Warn("Participants share a lifeline")
		}

		if declare {
			out.line(d.participants.declaration(addr, len(declared) == 0))
		}

		declared[addr] = true
	}

	return declared
}

func (d *Document) writeDetails(out *markup, tx *Transaction) {
	details := tx.Details

	out.line("note over " + ID(details.From))
	out.line(fmt.Sprintf("Nonce: %d", details.Nonce))

	if details.GasPrice != nil {
		out.line(fmt.Sprintf("Gas Price: %s Gwei", formatAmount(details.GasPrice, gweiDigits)))
	}

	out.line("Gas Limit: " + humanize.Comma(int64(details.GasLimit)))

	used := "Gas Used: " + humanize.Comma(int64(details.GasUsed))
	if details.GasLimit > 0 {
		used += fmt.Sprintf(" (%.2f%%)", float64(details.GasUsed)/float64(details.GasLimit)*100)
	}

	out.line(used)
	out.line(fmt.Sprintf("Fee: %s %s", formatAmount(details.Fee(), etherDigits), d.opts.Currency))

	if details.Failed() {
		out.line("Status: Failed")
	} else {
		out.line("Status: Success")
	}

	out.line("end note")
}

// writeEvents writes one note per emitting contract listing its events in
// log order. Events of undeclared contracts are skipped.
func (d *Document) writeEvents(out *markup, events []*abi.Event, declared map[common.Address]bool, res *Result) {
	byEmitter := make(map[common.Address][]*abi.Event)
	emitters := make([]common.Address, 0)

	for _, ev := range events {
		if !declared[ev.Address] {
			continue
		}

		if _, ok := byEmitter[ev.Address]; !ok {
			emitters = append(emitters, ev.Address)
		}

		byEmitter[ev.Address] = append(byEmitter[ev.Address], ev)
	}

	for _, emitter := range emitters {
		out.line(fmt.Sprintf("note over %s %s", ID(emitter), eventNoteColor))

		for _, ev := range byEmitter[emitter] {
			out.line(d.eventText(ev, res))
		}

		out.line("end note")
	}
}

func (d *Document) eventText(ev *abi.Event, res *Result) string {
	if ev.Name == "" {
		return ev.Topic.Hex()
	}

	if d.opts.NoParams {
		return ev.Name + "()"
	}

	text, warning := capLine(ev.Name+"("+formatParams(ev.Params, 0)+")", d.opts.MaxMessageLength,
		fmt.Sprintf("event %s at log %d", ev.Name, ev.Index))
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)

		d.log.WithFields(logrus.Fields{
			"event":     ev.Name,
			"log_index": ev.Index,
		}).Warn("Truncated diagram event")
	}

	return text
}
