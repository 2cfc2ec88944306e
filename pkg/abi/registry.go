// Package abi decodes trace calldata, return data and receipt logs with
// go-ethereum contract ABIs registered per address.
package abi

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/callflow/pkg/trace"
)

// Compile-time check that Registry implements trace.Decoder.
var _ trace.Decoder = (*Registry)(nil)

const defaultCacheSize = 4096

// Contract is a registered contract ABI.
type Contract struct {
	Address common.Address
	Name    string
	ABI     *gethabi.ABI
	// Bytecode is the creation code without constructor arguments. When set,
	// constructor arguments are split from the end of a Create trace's input.
	Bytecode []byte
}

type methodKey struct {
	to       common.Address
	selector [4]byte
}

type resolvedMethod struct {
	method   *gethabi.Method
	contract common.Address
}

// Registry resolves selectors and event topics against registered ABIs.
type Registry struct {
	log logrus.FieldLogger

	mu        sync.RWMutex
	contracts map[common.Address]*Contract
	delegates map[common.Address][]common.Address

	methods *lru.Cache[methodKey, resolvedMethod]
}

// NewRegistry creates an empty registry.
func NewRegistry(log logrus.FieldLogger) (*Registry, error) {
	cache, err := lru.New[methodKey, resolvedMethod](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create method cache: %w", err)
	}

	return &Registry{
		log:       log.WithField("module", "abi"),
		contracts: make(map[common.Address]*Contract),
		delegates: make(map[common.Address][]common.Address),
		methods:   cache,
	}, nil
}

// Register adds or replaces the ABI of a contract.
func (r *Registry) Register(c *Contract) {
	r.mu.Lock()
	r.contracts[c.Address] = c
	r.mu.Unlock()

	r.methods.Purge()
}

// Contract returns the registered contract at addr.
func (r *Registry) Contract(addr common.Address) (*Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contracts[addr]

	return c, ok
}

// Len returns the number of registered contracts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.contracts)
}

// AddDelegateTargets records which implementations each caller borrows code
// from, merging with targets already known. Selectors missing from a
// contract's own ABI are looked up in its delegate targets, in address order.
func (r *Registry) AddDelegateTargets(targets map[common.Address]mapset.Set[common.Address]) {
	r.mu.Lock()

	for caller, set := range targets {
		merged := mapset.NewThreadUnsafeSet(r.delegates[caller]...)
		merged.Append(set.ToSlice()...)

		impls := merged.ToSlice()
		sort.Slice(impls, func(i, j int) bool {
			return bytes.Compare(impls[i][:], impls[j][:]) < 0
		})

		r.delegates[caller] = impls
	}

	r.mu.Unlock()

	r.methods.Purge()
}

// candidates returns the contracts whose ABI may describe calls to addr:
// addr itself followed by its delegate targets.
func (r *Registry) candidates(addr common.Address) []*Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Contract, 0, 1+len(r.delegates[addr]))

	if c, ok := r.contracts[addr]; ok && c.ABI != nil {
		out = append(out, c)
	}

	for _, impl := range r.delegates[addr] {
		if c, ok := r.contracts[impl]; ok && c.ABI != nil {
			out = append(out, c)
		}
	}

	return out
}

func (r *Registry) resolve(to common.Address, selector []byte) resolvedMethod {
	key := methodKey{to: to}
	copy(key.selector[:], selector)

	if cached, ok := r.methods.Get(key); ok {
		return cached
	}

	var resolved resolvedMethod

	for _, c := range r.candidates(to) {
		method, err := c.ABI.MethodById(selector)
		if err == nil {
			resolved = resolvedMethod{method: method, contract: c.Address}

			break
		}
	}

	r.methods.Add(key, resolved)

	return resolved
}

// Decode implements trace.Decoder. Calls with no matching ABI return nil.
func (r *Registry) Decode(tr *trace.Trace) (*trace.DecodedCall, error) {
	switch tr.Type {
	case trace.Selfdestruct:
		return nil, nil
	case trace.Create:
		return r.decodeConstructor(tr)
	}

	if len(tr.FuncSelector) == 0 {
		return nil, nil
	}

	resolved := r.resolve(tr.To, tr.FuncSelector)
	if resolved.method == nil {
		return nil, nil
	}

	method := resolved.method

	values, err := method.Inputs.Unpack(tr.Inputs[len(tr.FuncSelector):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode inputs of %s: %w", method.Sig, err)
	}

	call := &trace.DecodedCall{
		FuncName: method.RawName,
		Inputs:   toParams(method.Inputs, values),
		Contract: resolved.contract,
	}

	if tr.Failed() || len(method.Outputs) == 0 || len(tr.Outputs) == 0 {
		return call, nil
	}

	outputs, err := method.Outputs.Unpack(tr.Outputs)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"trace_id": tr.ID,
			"method":   method.Sig,
		}).Debug("Failed to decode return data")

		return call, nil
	}

	call.Outputs = toParams(method.Outputs, outputs)

	return call, nil
}

// decodeConstructor returns nil when the constructor arguments cannot be
// located, so the call renders as constructor(?).
func (r *Registry) decodeConstructor(tr *trace.Trace) (*trace.DecodedCall, error) {
	c, ok := r.Contract(tr.To)
	if !ok || c.ABI == nil {
		return nil, nil
	}

	ctor := c.ABI.Constructor

	var args []byte

	switch {
	case len(c.Bytecode) > 0 && bytes.HasPrefix(tr.Inputs, c.Bytecode):
		args = tr.Inputs[len(c.Bytecode):]
	case len(ctor.Inputs) == 0:
		args = nil
	default:
		return nil, nil
	}

	values, err := ctor.Inputs.Unpack(args)
	if err != nil {
		return nil, fmt.Errorf("failed to decode constructor of %s: %w", c.Name, err)
	}

	return &trace.DecodedCall{
		FuncName: "constructor",
		Inputs:   toParams(ctor.Inputs, values),
		Contract: c.Address,
	}, nil
}
