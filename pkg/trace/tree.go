package trace

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Tree is an arena of traces. Index 0 is the root; every other trace is
// appended after its parent, so the arena is always a valid pre-order.
type Tree struct {
	traces []*Trace
}

// NewTree creates an empty tree with room for n traces.
func NewTree(n int) *Tree {
	return &Tree{traces: make([]*Trace, 0, n)}
}

// Add appends tr as the last child of the trace at arena index parent and
// returns its arena index. The first trace added must be the root
// (parent NoParent). Depth, Parent and Children are set by the tree.
func (t *Tree) Add(parent int, tr *Trace) (int, error) {
	switch {
	case parent == NoParent && len(t.traces) != 0:
		return 0, fmt.Errorf("trace %d: tree already has a root", tr.ID)
	case parent != NoParent && (parent < 0 || parent >= len(t.traces)):
		return 0, fmt.Errorf("trace %d: parent index %d out of range", tr.ID, parent)
	}

	return t.link(parent, tr), nil
}

func (t *Tree) link(parent int, tr *Trace) int {
	idx := len(t.traces)

	tr.Parent = parent
	tr.Children = nil
	tr.Depth = 0

	if parent != NoParent {
		p := t.traces[parent]
		p.Children = append(p.Children, idx)
		tr.Depth = p.Depth + 1
	}

	t.traces = append(t.traces, tr)

	return idx
}

// Len returns the number of traces in the tree.
func (t *Tree) Len() int {
	return len(t.traces)
}

// Root returns the root trace, or nil for an empty tree.
func (t *Tree) Root() *Trace {
	if len(t.traces) == 0 {
		return nil
	}

	return t.traces[0]
}

// Sender returns the From of the root trace.
func (t *Tree) Sender() common.Address {
	if root := t.Root(); root != nil {
		return root.From
	}

	return common.Address{}
}

// At returns the trace at arena index i.
func (t *Tree) At(i int) *Trace {
	return t.traces[i]
}

// Parent returns the parent of tr, or nil for the root.
func (t *Tree) Parent(tr *Trace) *Trace {
	if tr.Parent == NoParent {
		return nil
	}

	return t.traces[tr.Parent]
}

// Children returns the children of tr in execution order.
func (t *Tree) Children(tr *Trace) []*Trace {
	children := make([]*Trace, 0, len(tr.Children))

	for _, idx := range tr.Children {
		children = append(children, t.traces[idx])
	}

	return children
}

// Flatten returns the traces in depth-first pre-order: every trace precedes
// all of its descendants and siblings keep their execution order.
func (t *Tree) Flatten() []*Trace {
	if len(t.traces) == 0 {
		return nil
	}

	flat := make([]*Trace, 0, len(t.traces))
	stack := []int{0}

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tr := t.traces[idx]
		flat = append(flat, tr)

		for i := len(tr.Children) - 1; i >= 0; i-- {
			stack = append(stack, tr.Children[i])
		}
	}

	return flat
}

// FilterExcluded returns a new tree without the traces whose To is in
// excluded, together with all of their descendants.
func (t *Tree) FilterExcluded(excluded mapset.Set[common.Address]) *Tree {
	out := NewTree(len(t.traces))

	if len(t.traces) == 0 {
		return out
	}

	var visit func(src, parent int)

	visit = func(src, parent int) {
		node := t.traces[src]
		if excluded != nil && excluded.Contains(node.To) {
			return
		}

		idx := out.link(parent, node.clone())

		for _, child := range node.Children {
			visit(child, idx)
		}
	}

	visit(0, NoParent)

	return out
}

// FilterDelegates returns a new tree with every DelegateCall trace removed and
// its children spliced into its place under the nearest surviving ancestor.
// Spliced children lose their delegate context: whatever their type they
// become plain Calls, and DelegatedFrom is reset to From.
func (t *Tree) FilterDelegates() *Tree {
	out := NewTree(len(t.traces))

	if len(t.traces) == 0 {
		return out
	}

	var visit func(src, parent int, spliced bool)

	visit = func(src, parent int, spliced bool) {
		node := t.traces[src]

		if node.Type == DelegateCall && parent != NoParent {
			for _, child := range node.Children {
				visit(child, parent, true)
			}

			return
		}

		cp := node.clone()

		if spliced {
			cp.Type = Call
			cp.DelegatedFrom = cp.From
		}

		idx := out.link(parent, cp)

		for _, child := range node.Children {
			visit(child, idx, false)
		}
	}

	visit(0, NoParent, false)

	return out
}

// MinDepths returns, for every callee address, the smallest depth at which it
// is called. The sender is always at depth 0.
func MinDepths(flat []*Trace, sender common.Address) map[common.Address]int {
	depths := make(map[common.Address]int, len(flat)+1)

	for _, tr := range flat {
		if d, ok := depths[tr.To]; !ok || tr.Depth < d {
			depths[tr.To] = tr.Depth
		}
	}

	depths[sender] = 0

	return depths
}

// Participants returns every address that sends or receives a trace.
func Participants(flat []*Trace) mapset.Set[common.Address] {
	participants := mapset.NewThreadUnsafeSet[common.Address]()

	for _, tr := range flat {
		participants.Add(tr.From)
		participants.Add(tr.To)
	}

	return participants
}

// DelegateTargets maps every contract that delegate-calls to the set of
// addresses whose code it borrows.
func DelegateTargets(flat []*Trace) map[common.Address]mapset.Set[common.Address] {
	targets := make(map[common.Address]mapset.Set[common.Address])

	for _, tr := range flat {
		if tr.Type != DelegateCall {
			continue
		}

		set, ok := targets[tr.From]
		if !ok {
			set = mapset.NewThreadUnsafeSet[common.Address]()
			targets[tr.From] = set
		}

		set.Add(tr.To)
	}

	return targets
}
