package execution

import "strings"

// Shape identifies the layout of a raw trace response.
type Shape string

const (
	// ShapeNested is the geth callTracer layout: one root frame with nested calls.
	ShapeNested Shape = "nested"
	// ShapeFlat is the parity/OpenEthereum trace_transaction layout: a pre-order
	// array of records addressed by traceAddress.
	ShapeFlat Shape = "flat"
)

// ClientType is the execution client flavour a trace was fetched from.
type ClientType string

const (
	ClientGeth         ClientType = "geth"
	ClientAnvil        ClientType = "anvil"
	ClientHardhat      ClientType = "hardhat"
	ClientErigon       ClientType = "erigon"
	ClientNethermind   ClientType = "nethermind"
	ClientReth         ClientType = "reth"
	ClientBesu         ClientType = "besu"
	ClientOpenEthereum ClientType = "openethereum"
)

// Shape returns the trace layout the client responds with.
// Unknown clients default to the flat layout, matching Erigon.
func (c ClientType) Shape() Shape {
	switch ClientType(strings.ToLower(string(c))) {
	case ClientGeth, ClientAnvil, ClientHardhat:
		return ShapeNested
	default:
		return ShapeFlat
	}
}

// Valid reports whether the client type is known.
func (c ClientType) Valid() bool {
	switch ClientType(strings.ToLower(string(c))) {
	case ClientGeth, ClientAnvil, ClientHardhat, ClientErigon,
		ClientNethermind, ClientReth, ClientBesu, ClientOpenEthereum:
		return true
	default:
		return false
	}
}

// ParityTrace represents a single trace entry from trace_transaction RPC.
// This is the parity/OpenEthereum trace format used by most execution clients.
type ParityTrace struct {
	Action              ParityTraceAction  `json:"action"`
	BlockHash           string             `json:"blockHash"`
	BlockNumber         uint64             `json:"blockNumber"`
	Result              *ParityTraceResult `json:"result"`
	Subtraces           uint32             `json:"subtraces"`
	TraceAddress        []uint32           `json:"traceAddress"`
	TransactionHash     string             `json:"transactionHash"`
	TransactionPosition uint32             `json:"transactionPosition"`
	Type                string             `json:"type"` // "call", "create", "suicide", "reward"
	Error               *string            `json:"error"`
}

// ParityTraceAction contains the action details of a trace.
type ParityTraceAction struct {
	From         string  `json:"from"`
	To           *string `json:"to"`           // nil for CREATE
	CallType     *string `json:"callType"`     // "call", "delegatecall", "staticcall", etc. (nil for CREATE)
	Gas          string  `json:"gas"`          // Hex-encoded gas
	Input        string  `json:"input"`        // Hex-encoded input data
	Value        string  `json:"value"`        // Hex-encoded value
	Init         *string `json:"init"`         // CREATE init code (nil for CALL)
	CreationType *string `json:"creationType"` // "create" or "create2" (nil for CALL)

	// Self-destruct fields.
	Address       *string `json:"address"`
	RefundAddress *string `json:"refundAddress"`
	Balance       *string `json:"balance"`
}

// ParityTraceResult contains the result of a trace execution.
type ParityTraceResult struct {
	GasUsed string  `json:"gasUsed"` // Hex-encoded gas used
	Output  string  `json:"output"`  // Hex-encoded output data
	Code    *string `json:"code"`    // For CREATE: deployed code
	Address *string `json:"address"` // For CREATE: created address
}

// TraceAddressDepth returns the zero-based call depth of a trace address.
// An empty trace address is the root call.
func TraceAddressDepth(traceAddress []uint32) int {
	return len(traceAddress)
}

// CallFrame is a single frame of the geth callTracer output.
type CallFrame struct {
	Type         string      `json:"type"` // CALL, STATICCALL, DELEGATECALL, CALLCODE, CREATE, CREATE2, SELFDESTRUCT
	From         string      `json:"from"`
	To           string      `json:"to"`
	Value        string      `json:"value"`
	Gas          string      `json:"gas"`
	GasUsed      string      `json:"gasUsed"`
	Input        string      `json:"input"`
	Output       string      `json:"output"`
	Error        string      `json:"error"`
	RevertReason string      `json:"revertReason"`
	Calls        []CallFrame `json:"calls"`
}
