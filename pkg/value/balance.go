package value

import (
	"bytes"
	"math/big"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// NFTChange is the set of token ids a participant gained and lost for one
// NFT contract.
type NFTChange struct {
	Added   mapset.Set[string]
	Removed mapset.Set[string]
}

// Balances holds net changes per participant: fungible amounts per token and
// NFT id sets per NFT contract.
type Balances struct {
	Fungible map[common.Address]map[common.Address]*big.Int
	NFT      map[common.Address]map[common.Address]*NFTChange
}

// Net folds movements into balance changes. The debit side of a mint and the
// credit side of a burn are skipped. The fold is order independent.
func Net(movements []*Movement) *Balances {
	b := &Balances{
		Fungible: make(map[common.Address]map[common.Address]*big.Int),
		NFT:      make(map[common.Address]map[common.Address]*NFTChange),
	}

	for _, m := range movements {
		if m.IsNFT() {
			id := m.TokenID.String()

			if m.Kind != Mint {
				b.nft(m.From, m.Token).Removed.Add(id)
			}

			if m.Kind != Burn {
				b.nft(m.To, m.Token).Added.Add(id)
			}

			continue
		}

		if m.Value == nil {
			continue
		}

		if m.Kind != Mint {
			debit := b.fungible(m.From, m.Token)
			debit.Sub(debit, m.Value)
		}

		if m.Kind != Burn {
			credit := b.fungible(m.To, m.Token)
			credit.Add(credit, m.Value)
		}
	}

	return b
}

func (b *Balances) fungible(participant, token common.Address) *big.Int {
	tokens, ok := b.Fungible[participant]
	if !ok {
		tokens = make(map[common.Address]*big.Int)
		b.Fungible[participant] = tokens
	}

	v, ok := tokens[token]
	if !ok {
		v = new(big.Int)
		tokens[token] = v
	}

	return v
}

func (b *Balances) nft(participant, token common.Address) *NFTChange {
	tokens, ok := b.NFT[participant]
	if !ok {
		tokens = make(map[common.Address]*NFTChange)
		b.NFT[participant] = tokens
	}

	c, ok := tokens[token]
	if !ok {
		c = &NFTChange{
			Added:   mapset.NewThreadUnsafeSet[string](),
			Removed: mapset.NewThreadUnsafeSet[string](),
		}
		tokens[token] = c
	}

	return c
}

// Participants returns every participant with a balance change, sorted by address.
func (b *Balances) Participants() []common.Address {
	seen := mapset.NewThreadUnsafeSet[common.Address]()

	for p := range b.Fungible {
		seen.Add(p)
	}

	for p := range b.NFT {
		seen.Add(p)
	}

	return sortAddresses(seen.ToSlice())
}

// Changes returns the non-zero fungible changes of participant, sorted by token.
func (b *Balances) Changes(participant common.Address) []TokenChange {
	tokens := b.Fungible[participant]
	out := make([]TokenChange, 0, len(tokens))

	for token, v := range tokens {
		if v.Sign() == 0 {
			continue
		}

		out = append(out, TokenChange{Token: token, Amount: v})
	}

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Token[:], out[j].Token[:]) < 0
	})

	return out
}

// NFTChanges returns the NFT changes of participant, sorted by token. Ids
// both added and removed cancel out.
func (b *Balances) NFTChanges(participant common.Address) []NFTTokenChange {
	tokens := b.NFT[participant]
	out := make([]NFTTokenChange, 0, len(tokens))

	for token, c := range tokens {
		added := c.Added.Difference(c.Removed)
		removed := c.Removed.Difference(c.Added)

		if added.Cardinality() == 0 && removed.Cardinality() == 0 {
			continue
		}

		out = append(out, NFTTokenChange{
			Token:   token,
			Added:   sortIDs(added.ToSlice()),
			Removed: sortIDs(removed.ToSlice()),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Token[:], out[j].Token[:]) < 0
	})

	return out
}

// TokenChange is a net fungible change.
type TokenChange struct {
	Token  common.Address
	Amount *big.Int
}

// NFTTokenChange is a net NFT change with ids in numeric order.
type NFTTokenChange struct {
	Token   common.Address
	Added   []string
	Removed []string
}

func sortAddresses(addrs []common.Address) []common.Address {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})

	return addrs
}

func sortIDs(ids []string) []string {
	sort.Slice(ids, func(i, j int) bool {
		a, _ := new(big.Int).SetString(ids[i], 10)
		b, _ := new(big.Int).SetString(ids[j], 10)

		return a.Cmp(b) < 0
	})

	return ids
}
