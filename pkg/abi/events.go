package abi

import (
	"bytes"
	"fmt"
	"sort"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/trace"
)

// Event is a decoded receipt log.
type Event struct {
	Name    string
	Address common.Address
	Index   uint
	Topic   common.Hash
	Params  []trace.Param
}

// DecodeLog decodes l with the ABI of its emitter, its delegate targets or,
// failing those, any registered ABI declaring the topic. Logs with no
// matching event return nil.
func (r *Registry) DecodeLog(l execution.Log) (*Event, error) {
	if len(l.Topics) == 0 {
		return nil, nil
	}

	ev := r.findEvent(l.Address, l.Topics[0])
	if ev == nil {
		return nil, nil
	}

	indexed := make(gethabi.Arguments, 0, len(ev.Inputs))

	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	topics := make(map[string]any, len(indexed))
	if err := gethabi.ParseTopicsIntoMap(topics, indexed, l.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to decode topics of %s: %w", ev.Sig, err)
	}

	data, err := ev.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data of %s: %w", ev.Sig, err)
	}

	params := make([]trace.Param, 0, len(ev.Inputs))
	next := 0

	for _, arg := range ev.Inputs {
		if arg.Indexed {
			params = append(params, indexedParam(arg, topics[arg.Name]))

			continue
		}

		if next < len(data) {
			params = append(params, toParam(arg.Name, arg.Type, data[next]))
			next++
		}
	}

	return &Event{
		Name:    ev.RawName,
		Address: l.Address,
		Index:   l.Index,
		Topic:   l.Topics[0],
		Params:  params,
	}, nil
}

// indexedParam converts a topic value. Dynamic types are only available as
// their hash.
func indexedParam(arg gethabi.Argument, v any) trace.Param {
	switch arg.Type.T {
	case gethabi.StringTy, gethabi.BytesTy, gethabi.SliceTy, gethabi.ArrayTy, gethabi.TupleTy:
		return trace.Param{Name: arg.Name, Type: "bytes32", Value: v}
	}

	if v == nil {
		return trace.Param{Name: arg.Name, Type: arg.Type.String()}
	}

	return toParam(arg.Name, arg.Type, v)
}

func (r *Registry) findEvent(addr common.Address, topic common.Hash) *gethabi.Event {
	for _, c := range r.candidates(addr) {
		if ev, err := c.ABI.EventByID(topic); err == nil {
			return ev
		}
	}

	r.mu.RLock()
	all := make([]*Contract, 0, len(r.contracts))

	for _, c := range r.contracts {
		if c.ABI != nil {
			all = append(all, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return bytes.Compare(all[i].Address[:], all[j].Address[:]) < 0
	})

	for _, c := range all {
		if ev, err := c.ABI.EventByID(topic); err == nil {
			return ev
		}
	}

	return nil
}
