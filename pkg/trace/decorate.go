package trace

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	pcommon "github.com/ethpandaops/callflow/pkg/common"
)

// Clone returns a copy of the tree whose traces can be modified without
// affecting t. Parameter slices are shared.
func (t *Tree) Clone() *Tree {
	out := NewTree(len(t.traces))

	for _, tr := range t.traces {
		cp := *tr
		cp.Children = append([]int(nil), tr.Children...)
		out.traces = append(out.traces, &cp)
	}

	return out
}

// Decorate returns a copy of the tree with function names and parameters
// filled in by decoder. Decode failures are logged and leave the trace with
// its raw selector.
func Decorate(log logrus.FieldLogger, tree *Tree, decoder Decoder) *Tree {
	out := tree.Clone()

	if decoder == nil {
		return out
	}

	for _, tr := range out.traces {
		call, err := decoder.Decode(tr)
		if err != nil {
			pcommon.DecodeFailures.WithLabelValues(tr.Type.String()).Inc()

			log.WithError(err).WithFields(logrus.Fields{
				"trace_id": tr.ID,
				"to":       tr.To,
				"selector": tr.Selector(),
			}).Warn("Failed to decode trace parameters")

			continue
		}

		if call == nil {
			continue
		}

		tr.FuncName = call.FuncName
		tr.InputParams = call.Inputs
		tr.OutputParams = call.Outputs
		tr.ParamsDecoded = true

		if tr.Type != Create && call.Contract != (common.Address{}) && call.Contract != tr.To {
			tr.Proxy = true
		}
	}

	return out
}
