package value

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/trace"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token = common.HexToAddress("0x3333333333333333333333333333333333333333")
	nft   = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func topic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func amount(v int64) []byte {
	return common.BigToHash(big.NewInt(v)).Bytes()
}

func TestFromTraces(t *testing.T) {
	reverted := "reverted"

	flat := []*trace.Trace{
		{ID: 0, From: alice, To: bob, Value: big.NewInt(0)},
		{ID: 1, From: bob, To: token, Value: big.NewInt(5)},
		{ID: 2, From: bob, To: alice, Value: big.NewInt(3), Error: &reverted},
		{ID: 3, From: token, To: alice},
	}

	movements := FromTraces(flat)
	require.Len(t, movements, 1)

	assert.Equal(t, bob, movements[0].From)
	assert.Equal(t, token, movements[0].To)
	assert.Equal(t, Ether, movements[0].Token)
	assert.Equal(t, int64(5), movements[0].Value.Int64())
	assert.Equal(t, Transfer, movements[0].Kind)
}

func TestFromLogs(t *testing.T) {
	logs := []execution.Log{
		{Address: token, Topics: []common.Hash{TransferTopic, topic(alice), topic(bob)}, Data: amount(10)},
		{Address: token, Topics: []common.Hash{TransferTopic, {}, topic(alice)}, Data: amount(4)},
		{Address: nft, Topics: []common.Hash{TransferTopic, topic(bob), {}, common.BigToHash(big.NewInt(7))}},
		{Address: token, Topics: []common.Hash{{0x01}, topic(alice), topic(bob)}, Data: amount(1)},
		{Address: token, Topics: []common.Hash{TransferTopic, topic(alice), topic(bob)}},
	}

	movements := FromLogs(logs, 2)
	require.Len(t, movements, 3)

	assert.Equal(t, Transfer, movements[0].Kind)
	assert.Equal(t, int64(10), movements[0].Value.Int64())
	assert.Equal(t, 2, movements[0].Index)

	assert.Equal(t, Mint, movements[1].Kind)
	assert.Equal(t, alice, movements[1].To)

	assert.Equal(t, Burn, movements[2].Kind)
	assert.True(t, movements[2].IsNFT())
	assert.Equal(t, int64(7), movements[2].TokenID.Int64())
	assert.Nil(t, movements[2].Value)
}

func TestNet(t *testing.T) {
	movements := []*Movement{
		{From: alice, To: bob, Token: Ether, Value: big.NewInt(10)},
		{From: bob, To: alice, Token: Ether, Value: big.NewInt(3)},
		{From: common.Address{}, To: alice, Token: token, Value: big.NewInt(100), Kind: Mint},
		{From: alice, To: common.Address{}, Token: token, Value: big.NewInt(40), Kind: Burn},
		{From: alice, To: bob, Token: nft, TokenID: big.NewInt(1)},
		{From: common.Address{}, To: bob, Token: nft, TokenID: big.NewInt(2), Kind: Mint},
	}

	b := Net(movements)

	assert.Equal(t, int64(-7), b.Fungible[alice][Ether].Int64())
	assert.Equal(t, int64(7), b.Fungible[bob][Ether].Int64())
	assert.Equal(t, int64(60), b.Fungible[alice][token].Int64())

	// Neither side of a mint or burn touches the zero address
	_, ok := b.Fungible[common.Address{}]
	assert.False(t, ok)
	_, ok = b.NFT[common.Address{}]
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"1", "2"}, b.NFT[bob][nft].Added.ToSlice())
	assert.ElementsMatch(t, []string{"1"}, b.NFT[alice][nft].Removed.ToSlice())

	assert.Equal(t, []common.Address{alice, bob}, b.Participants())

	changes := b.Changes(alice)
	require.Len(t, changes, 2)
	assert.Equal(t, Ether, changes[0].Token)
	assert.Equal(t, token, changes[1].Token)

	nfts := b.NFTChanges(bob)
	require.Len(t, nfts, 1)
	assert.Equal(t, []string{"1", "2"}, nfts[0].Added)
	assert.Empty(t, nfts[0].Removed)
}

func TestNetOrderIndependent(t *testing.T) {
	movements := []*Movement{
		{From: alice, To: bob, Token: token, Value: big.NewInt(5)},
		{From: bob, To: alice, Token: token, Value: big.NewInt(2)},
		{From: bob, To: alice, Token: nft, TokenID: big.NewInt(9)},
		{From: alice, To: bob, Token: nft, TokenID: big.NewInt(9)},
	}

	reversed := make([]*Movement, len(movements))
	for i, m := range movements {
		reversed[len(movements)-1-i] = m
	}

	forward := Net(movements)
	backward := Net(reversed)

	for _, p := range []common.Address{alice, bob} {
		assert.Equal(t, forward.Changes(p), backward.Changes(p))
		assert.Equal(t, forward.NFTChanges(p), backward.NFTChanges(p))
	}

	// A token id that leaves and returns nets out
	assert.Empty(t, forward.NFTChanges(alice))
}
