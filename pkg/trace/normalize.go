package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

const selectorLength = 4

// Normalize converts a raw node trace response into a canonical tree.
// Trace IDs are assigned in pre-order starting at 0 for the root.
func Normalize(shape execution.Shape, raw []byte) (*Tree, error) {
	raw = bytes.TrimSpace(raw)

	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: check the node supports the %s trace API for this transaction", ErrEmptyTrace, shape)
	}

	if err := checkTracer(shape, raw); err != nil {
		return nil, err
	}

	switch shape {
	case execution.ShapeNested:
		return normalizeNested(raw)
	case execution.ShapeFlat:
		return normalizeFlat(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
}

// checkTracer rejects responses that are valid JSON but come from the wrong tracer.
func checkTracer(shape execution.Shape, raw []byte) error {
	if raw[0] != '{' {
		if shape == execution.ShapeNested {
			return fmt.Errorf("%w: expected a callTracer object but got an array; "+
				"configure the node client as erigon, nethermind, reth or besu to read trace_transaction output", ErrUnsupportedTracer)
		}

		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTrace, err)
	}

	if _, ok := fields["structLogs"]; ok {
		return fmt.Errorf("%w: got struct logger output; "+
			"configure the node client as geth so the callTracer is requested", ErrUnsupportedTracer)
	}

	if shape == execution.ShapeFlat {
		return fmt.Errorf("%w: expected a trace_transaction array but got an object; "+
			"configure the node client as geth to read callTracer output", ErrUnsupportedTracer)
	}

	return nil
}

func normalizeNested(raw []byte) (*Tree, error) {
	var root execution.CallFrame
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTrace, err)
	}

	if root.Type == "" && root.From == "" {
		return nil, fmt.Errorf("%w: callTracer response has no root call", ErrEmptyTrace)
	}

	tree := NewTree(countFrames(&root))
	id := 0

	var walk func(frame *execution.CallFrame, parent int) error

	walk = func(frame *execution.CallFrame, parent int) error {
		tr, err := fromCallFrame(frame, id)
		if err != nil {
			return err
		}

		id++

		idx := tree.link(parent, tr)
		setDelegatedFrom(tree, tr)

		for i := range frame.Calls {
			if err := walk(&frame.Calls[i], idx); err != nil {
				return err
			}
		}

		return nil
	}

	if err := walk(&root, NoParent); err != nil {
		return nil, err
	}

	return tree, nil
}

func countFrames(frame *execution.CallFrame) int {
	n := 1

	for i := range frame.Calls {
		n += countFrames(&frame.Calls[i])
	}

	return n
}

func fromCallFrame(frame *execution.CallFrame, id int) (*Trace, error) {
	tr := &Trace{
		ID:   id,
		From: common.HexToAddress(frame.From),
		To:   common.HexToAddress(frame.To),
	}

	switch strings.ToUpper(frame.Type) {
	case "CALL":
		tr.Type = Call
	case "STATICCALL":
		tr.Type = StaticCall
	case "DELEGATECALL", "CALLCODE":
		tr.Type = DelegateCall
	case "CREATE", "CREATE2":
		tr.Type = Create
	case "SELFDESTRUCT", "SUICIDE":
		tr.Type = Selfdestruct
	default:
		return nil, fmt.Errorf("%w: trace %d has unknown call type %q", ErrMalformedTrace, id, frame.Type)
	}

	var err error

	if tr.Value, err = parseBig(frame.Value); err != nil {
		return nil, fmt.Errorf("%w: trace %d value: %w", ErrMalformedTrace, id, err)
	}

	if tr.GasLimit, err = parseUint(frame.Gas); err != nil {
		return nil, fmt.Errorf("%w: trace %d gas: %w", ErrMalformedTrace, id, err)
	}

	if frame.GasUsed != "" {
		gasUsed, err := parseUint(frame.GasUsed)
		if err != nil {
			return nil, fmt.Errorf("%w: trace %d gasUsed: %w", ErrMalformedTrace, id, err)
		}

		tr.GasUsed = &gasUsed
	}

	setPayloads(tr, frame.Input, frame.Output)

	if frame.Error != "" {
		msg := frame.Error
		if frame.RevertReason != "" {
			msg = fmt.Sprintf("%s: %s", frame.Error, frame.RevertReason)
		}

		tr.Error = &msg
	}

	return tr, nil
}

// normalizeFlat rebuilds the tree from trace_transaction records. Records
// arrive in pre-order, so the parent of a record at depth d is the most
// recent record seen at depth d-1.
func normalizeFlat(raw []byte) (*Tree, error) {
	var records []execution.ParityTrace
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTrace, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: trace_transaction returned no records", ErrEmptyTrace)
	}

	tree := NewTree(len(records))
	lastAtDepth := make([]int, 0, 8)
	id := 0

	for i := range records {
		rec := &records[i]

		// Block and uncle rewards are not part of a transaction's call tree
		if rec.Type == "reward" {
			continue
		}

		depth := execution.TraceAddressDepth(rec.TraceAddress)

		parent := NoParent

		switch {
		case depth == 0 && tree.Len() != 0:
			return nil, fmt.Errorf("%w: record %d is a second root", ErrMalformedTrace, i)
		case depth > 0 && depth > len(lastAtDepth):
			return nil, fmt.Errorf("%w: record %d at depth %d has no parent", ErrMalformedTrace, i, depth)
		case depth > 0:
			parent = lastAtDepth[depth-1]
		}

		tr, err := fromParityTrace(rec, id)
		if err != nil {
			return nil, err
		}

		id++

		idx := tree.link(parent, tr)
		setDelegatedFrom(tree, tr)

		lastAtDepth = append(lastAtDepth[:depth], idx)
	}

	if tree.Len() == 0 {
		return nil, fmt.Errorf("%w: trace_transaction returned no call records", ErrEmptyTrace)
	}

	return tree, nil
}

func fromParityTrace(rec *execution.ParityTrace, id int) (*Trace, error) {
	tr := &Trace{
		ID:   id,
		From: common.HexToAddress(rec.Action.From),
	}

	var (
		err    error
		input  string
		output string
		value  = rec.Action.Value
	)

	switch rec.Type {
	case "call":
		callType := "call"
		if rec.Action.CallType != nil {
			callType = *rec.Action.CallType
		}

		switch callType {
		case "call":
			tr.Type = Call
		case "staticcall":
			tr.Type = StaticCall
		case "delegatecall", "callcode":
			tr.Type = DelegateCall
		default:
			return nil, fmt.Errorf("%w: trace %d has unknown call type %q", ErrMalformedTrace, id, callType)
		}

		if rec.Action.To != nil {
			tr.To = common.HexToAddress(*rec.Action.To)
		}

		input = rec.Action.Input

		if rec.Result != nil {
			output = rec.Result.Output
		}
	case "create":
		tr.Type = Create

		if rec.Result != nil && rec.Result.Address != nil {
			tr.To = common.HexToAddress(*rec.Result.Address)
		}

		if rec.Action.Init != nil {
			input = *rec.Action.Init
		}
	case "suicide", "selfdestruct":
		tr.Type = Selfdestruct

		if rec.Action.Address != nil {
			tr.From = common.HexToAddress(*rec.Action.Address)
		}

		if rec.Action.RefundAddress != nil {
			tr.To = common.HexToAddress(*rec.Action.RefundAddress)
		}

		value = ""
		if rec.Action.Balance != nil {
			value = *rec.Action.Balance
		}
	default:
		return nil, fmt.Errorf("%w: trace %d has unknown type %q", ErrMalformedTrace, id, rec.Type)
	}

	if tr.Value, err = parseBig(value); err != nil {
		return nil, fmt.Errorf("%w: trace %d value: %w", ErrMalformedTrace, id, err)
	}

	if tr.GasLimit, err = parseUint(rec.Action.Gas); err != nil {
		return nil, fmt.Errorf("%w: trace %d gas: %w", ErrMalformedTrace, id, err)
	}

	if rec.Result != nil && rec.Result.GasUsed != "" {
		gasUsed, err := parseUint(rec.Result.GasUsed)
		if err != nil {
			return nil, fmt.Errorf("%w: trace %d gasUsed: %w", ErrMalformedTrace, id, err)
		}

		tr.GasUsed = &gasUsed
	}

	setPayloads(tr, input, output)

	if rec.Error != nil {
		msg := *rec.Error
		tr.Error = &msg
	}

	return tr, nil
}

// setDelegatedFrom applies the one-hop rule: a call made from inside a
// DelegateCall executes against the storage of the parent's To.
func setDelegatedFrom(tree *Tree, tr *Trace) {
	tr.DelegatedFrom = tr.From

	if parent := tree.Parent(tr); parent != nil && parent.Type == DelegateCall {
		tr.DelegatedFrom = parent.To
	}
}

func setPayloads(tr *Trace, input, output string) {
	tr.Inputs = common.FromHex(input)
	tr.Outputs = common.FromHex(output)

	if tr.Type != Create && len(tr.Inputs) >= selectorLength {
		tr.FuncSelector = tr.Inputs[:selectorLength]
	}
}

func parseBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return new(big.Int), nil
	}

	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}

	return v, nil
}

func parseUint(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, nil
	}

	return strconv.ParseUint(s, 16, 64)
}
