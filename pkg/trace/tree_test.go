package trace

import (
	"math/big"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
)

func fixtureTree(t *testing.T) *Tree {
	t.Helper()

	tree, err := Normalize(execution.ShapeNested, []byte(nestedFixture))
	require.NoError(t, err)

	return tree
}

func ids(traces []*Trace) []int {
	out := make([]int, 0, len(traces))

	for _, tr := range traces {
		out = append(out, tr.ID)
	}

	return out
}

// assertPreOrder checks every trace appears after all of its ancestors and
// before none of its descendants.
func assertPreOrder(t *testing.T, tree *Tree, flat []*Trace) {
	t.Helper()

	position := make(map[*Trace]int, len(flat))
	for i, tr := range flat {
		position[tr] = i
	}

	for _, tr := range flat {
		for parent := tree.Parent(tr); parent != nil; parent = tree.Parent(parent) {
			assert.Less(t, position[parent], position[tr], "ancestor %d of %d", parent.ID, tr.ID)
		}
	}
}

func TestTree_Add(t *testing.T) {
	tree := NewTree(2)

	root, err := tree.Add(NoParent, &Trace{ID: 0, From: addr1, To: addr2})
	require.NoError(t, err)

	_, err = tree.Add(NoParent, &Trace{ID: 1})
	require.Error(t, err)

	_, err = tree.Add(5, &Trace{ID: 1})
	require.Error(t, err)

	child, err := tree.Add(root, &Trace{ID: 1, From: addr2, To: addr3})
	require.NoError(t, err)

	assert.Equal(t, 1, tree.At(child).Depth)
	assert.Equal(t, []int{child}, tree.Root().Children)
	assert.Equal(t, tree.Root(), tree.Parent(tree.At(child)))
	assert.Nil(t, tree.Parent(tree.Root()))
}

func TestTree_FlattenPreOrder(t *testing.T) {
	tree := fixtureTree(t)
	flat := tree.Flatten()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, ids(flat))
	assertPreOrder(t, tree, flat)

	assert.Nil(t, NewTree(0).Flatten())
}

func TestTree_FilterExcluded(t *testing.T) {
	tree := fixtureTree(t)

	filtered := tree.FilterExcluded(mapset.NewSet(addr4))
	flat := filtered.Flatten()

	// 2 and 4 call 4444; 5 is a descendant of 4
	assert.Equal(t, []int{0, 1, 3}, ids(flat))
	assertPreOrder(t, filtered, flat)

	for _, tr := range flat {
		assert.NotEqual(t, addr4, tr.To)
	}

	// The source tree is untouched
	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, []int{2, 3}, tree.At(1).Children)

	// Excluding the root's callee leaves nothing
	assert.Equal(t, 0, tree.FilterExcluded(mapset.NewSet(addr2)).Len())

	// No exclusions copies the tree
	assert.Equal(t, 6, tree.FilterExcluded(nil).Len())
}

func TestTree_FilterDelegates(t *testing.T) {
	tree := fixtureTree(t)

	filtered := tree.FilterDelegates()
	flat := filtered.Flatten()

	delegates := 0

	for _, tr := range tree.Flatten() {
		if tr.Type == DelegateCall {
			delegates++
		}
	}

	require.Len(t, flat, tree.Len()-delegates)
	assert.Equal(t, []int{0, 2, 3, 4, 5}, ids(flat))
	assertPreOrder(t, filtered, flat)

	for _, tr := range flat {
		assert.NotEqual(t, DelegateCall, tr.Type)
		assert.Equal(t, tr.From, tr.DelegatedFrom, "trace %d", tr.ID)
	}

	spliced := flat[1]
	assert.Equal(t, 2, spliced.ID)
	assert.Equal(t, 1, spliced.Depth)
	assert.Equal(t, filtered.Root(), filtered.Parent(spliced))

	static := flat[2]
	assert.Equal(t, 3, static.ID)
	assert.Equal(t, Call, static.Type)
	assert.Equal(t, 1, static.Depth)

	// Untouched subtree keeps its shape
	assert.Equal(t, 2, flat[4].Depth)

	// The source tree still holds the delegate context
	assert.Equal(t, addr3, tree.At(2).DelegatedFrom)
	assert.Equal(t, StaticCall, tree.At(3).Type)
}

func TestTree_FilterDelegatesNested(t *testing.T) {
	tree := NewTree(4)

	root, err := tree.Add(NoParent, &Trace{ID: 0, Type: Call, From: addr1, To: addr2, DelegatedFrom: addr1})
	require.NoError(t, err)

	outer, err := tree.Add(root, &Trace{ID: 1, Type: DelegateCall, From: addr2, To: addr3, DelegatedFrom: addr2})
	require.NoError(t, err)

	inner, err := tree.Add(outer, &Trace{ID: 2, Type: DelegateCall, From: addr2, To: addr4, DelegatedFrom: addr3})
	require.NoError(t, err)

	_, err = tree.Add(inner, &Trace{ID: 3, Type: Create, From: addr2, To: addr5, DelegatedFrom: addr4})
	require.NoError(t, err)

	_, err = tree.Add(inner, &Trace{ID: 4, Type: Selfdestruct, From: addr2, To: addr1, DelegatedFrom: addr4})
	require.NoError(t, err)

	flat := tree.FilterDelegates().Flatten()

	require.Len(t, flat, 3)

	for i, id := range []int{3, 4} {
		tr := flat[i+1]

		assert.Equal(t, id, tr.ID)
		assert.Equal(t, Call, tr.Type, "trace %d", id)
		assert.Equal(t, 1, tr.Depth)
		assert.Equal(t, addr2, tr.DelegatedFrom)
	}

	// The source tree keeps the original types
	assert.Equal(t, Create, tree.At(3).Type)
	assert.Equal(t, Selfdestruct, tree.At(4).Type)
}

func TestMinDepths(t *testing.T) {
	flat := fixtureTree(t).Flatten()

	depths := MinDepths(flat, addr1)

	assert.Equal(t, map[common.Address]int{
		addr1: 0,
		addr2: 0,
		addr3: 1,
		addr4: 1,
		addr5: 2,
		addr6: 2,
	}, depths)

	for addr, depth := range depths {
		if addr == addr1 {
			continue
		}

		lowest := -1

		for _, tr := range flat {
			if tr.To == addr && (lowest == -1 || tr.Depth < lowest) {
				lowest = tr.Depth
			}
		}

		assert.Equal(t, lowest, depth, "address %s", addr)
	}
}

func TestParticipantsAndDelegateTargets(t *testing.T) {
	tree := fixtureTree(t)

	// A second delegate to the same library and one to another
	_, err := tree.Add(0, &Trace{ID: 6, Type: DelegateCall, From: addr2, To: addr3})
	require.NoError(t, err)

	_, err = tree.Add(0, &Trace{ID: 7, Type: DelegateCall, From: addr2, To: addr5})
	require.NoError(t, err)

	flat := tree.Flatten()

	participants := Participants(flat)
	assert.ElementsMatch(t, []common.Address{addr1, addr2, addr3, addr4, addr5, addr6}, participants.ToSlice())

	targets := DelegateTargets(flat)
	require.Len(t, targets, 1)
	assert.ElementsMatch(t, []common.Address{addr3, addr5}, targets[addr2].ToSlice())
}

type stubDecoder struct {
	calls map[int]*DecodedCall
	err   map[int]error
}

func (s *stubDecoder) Decode(tr *Trace) (*DecodedCall, error) {
	if err, ok := s.err[tr.ID]; ok {
		return nil, err
	}

	return s.calls[tr.ID], nil
}

func TestDecorate(t *testing.T) {
	tree := fixtureTree(t)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	decoder := &stubDecoder{
		calls: map[int]*DecodedCall{
			0: {FuncName: "first", Contract: addr3, Inputs: []Param{{Name: "amount", Type: "uint256", Value: big.NewInt(5)}}},
			1: {FuncName: "first", Contract: addr3},
		},
		err: map[int]error{
			4: assert.AnError,
		},
	}

	decorated := Decorate(log, tree, decoder)

	root := decorated.Root()
	assert.Equal(t, "first", root.FuncName)
	assert.True(t, root.ParamsDecoded)
	assert.True(t, root.Proxy, "selector resolved from the implementation's ABI")
	require.Len(t, root.InputParams, 1)

	delegate := decorated.At(1)
	assert.False(t, delegate.Proxy)

	failed := decorated.At(4)
	assert.Empty(t, failed.FuncName)
	assert.False(t, failed.ParamsDecoded)
	assert.Equal(t, "0xa9059cbb", failed.Selector())

	// The source tree is not decorated
	assert.Empty(t, tree.Root().FuncName)

	// No decoder copies the tree
	assert.Equal(t, tree.Len(), Decorate(log, tree, nil).Len())
}
