// Package trace holds the canonical call tree of a transaction and the pure
// structural operations over it: normalization from raw node responses,
// decoration with decoded parameters, filtering and flattening.
package trace

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Type is the kind of execution step a trace records.
type Type int

const (
	Call Type = iota
	Create
	Selfdestruct
	DelegateCall
	StaticCall
)

func (t Type) String() string {
	switch t {
	case Call:
		return "Call"
	case Create:
		return "Create"
	case Selfdestruct:
		return "Selfdestruct"
	case DelegateCall:
		return "DelegateCall"
	case StaticCall:
		return "StaticCall"
	default:
		return "Unknown"
	}
}

// NoParent is the parent index of the root trace.
const NoParent = -1

// Trace is one execution step of a transaction.
//
// Parent and Children are indices into the owning Tree's arena, not trace IDs.
type Trace struct {
	ID   int
	Type Type

	From common.Address
	To   common.Address
	// DelegatedFrom is the address whose storage context the call executes
	// against: the parent's To when the parent is a DelegateCall, From otherwise.
	DelegatedFrom common.Address

	Value *big.Int

	Inputs       []byte
	Outputs      []byte
	FuncSelector []byte

	// Set by Decorate.
	FuncName      string
	InputParams   []Param
	OutputParams  []Param
	ParamsDecoded bool
	// Proxy is set when the selector was resolved from an ABI other than To's.
	Proxy bool

	GasLimit uint64
	// GasUsed is nil when the node did not report it.
	GasUsed *uint64

	Parent   int
	Children []int
	Depth    int

	// Error is nil for a successful call.
	Error *string
}

// Failed reports whether the call reverted or otherwise failed.
func (t *Trace) Failed() bool {
	return t.Error != nil
}

// Selector returns the 0x-prefixed hex function selector, or "" for calls without one.
func (t *Trace) Selector() string {
	if len(t.FuncSelector) == 0 {
		return ""
	}

	return hexutil.Encode(t.FuncSelector)
}

// HasValue reports whether the call moved a non-zero amount of native currency.
func (t *Trace) HasValue() bool {
	return t.Value != nil && t.Value.Sign() > 0
}

// clone copies the trace without its tree links.
func (t *Trace) clone() *Trace {
	cp := *t
	cp.Children = nil

	return &cp
}

// Param is a decoded function, constructor or event parameter.
//
// Scalars carry Value; tuples and arrays carry Components and leave Value nil.
type Param struct {
	Name       string
	Type       string
	Value      any
	Components []Param
}

// IsComposite reports whether the parameter is a tuple or array.
func (p Param) IsComposite() bool {
	return p.Components != nil
}

// IsArray reports whether the parameter is an array or slice.
func (p Param) IsArray() bool {
	return len(p.Type) > 0 && p.Type[len(p.Type)-1] == ']'
}

// DecodedCall is the result of decoding a trace's calldata and return data.
type DecodedCall struct {
	FuncName string
	Inputs   []Param
	Outputs  []Param
	// Contract is the address whose ABI resolved the selector.
	Contract common.Address
}

// Decoder decodes the parameters of a trace. A nil result with a nil error
// means the call is unknown to the decoder.
type Decoder interface {
	Decode(t *Trace) (*DecodedCall, error)
}
