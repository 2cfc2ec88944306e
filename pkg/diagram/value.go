package diagram

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/callflow/pkg/ethereum/execution"
	"github.com/ethpandaops/callflow/pkg/value"
)

// ValueTransaction is the value movements of one transaction.
type ValueTransaction struct {
	Hash      common.Hash
	Details   *execution.TransactionDetails
	Movements []*value.Movement
}

// WriteValues writes a transfer diagram followed by a net balance note for
// every participant whose balances changed across all transactions.
func (d *Document) WriteValues(w io.Writer, txs []*ValueTransaction) (*value.Balances, error) {
	out := &markup{w: w}
	batch := len(txs) > 1

	d.start(out)

	all := make([]*value.Movement, 0)
	order := d.declareValueParticipants(out, txs)
	hashes := make([]common.Hash, 0, len(txs))

	for _, tx := range txs {
		hashes = append(hashes, tx.Hash)

		if batch {
			out.line("group " + tx.Hash.Hex())
		}

		for _, m := range tx.Movements {
			if d.opts.NoEther && m.Token == value.Ether {
				continue
			}

			out.line(fmt.Sprintf("%s -> %s: %s", ID(m.From), ID(m.To), d.movementText(m)))

			all = append(all, m)
		}

		if batch {
			out.line("end")
		}
	}

	balances := value.Net(all)

	for _, addr := range order {
		d.writeBalance(out, balances, addr)
	}

	d.finish(out, hashes)

	if out.err != nil {
		return balances, fmt.Errorf("failed to write value diagram: %w", out.err)
	}

	return balances, nil
}

func (d *Document) declareValueParticipants(out *markup, txs []*ValueTransaction) []common.Address {
	order := make([]common.Address, 0)
	seen := make(map[common.Address]bool)
	ids := make(lifelines)

	add := func(addr common.Address) {
		if seen[addr] {
			return
		}

		seen[addr] = true
		order = append(order, addr)

		declare, warning := ids.claim(addr)
		if warning != "" {
			d.log.WithFields(logrus.Fields{
				"address":  addr.Hex(),
				"lifeline": ID(addr),
			}).Warn("Participants share a lifeline")
		}

		if declare {
			out.line(d.participants.declaration(addr, len(order) == 1))
		}
	}

	for _, tx := range txs {
		if tx.Details != nil {
			add(tx.Details.From)
		}

		for _, m := range tx.Movements {
			if d.opts.NoEther && m.Token == value.Ether {
				continue
			}

			add(m.From)
			add(m.To)
		}
	}

	return order
}

func (d *Document) movementText(m *value.Movement) string {
	if m.IsNFT() {
		return fmt.Sprintf("#%s %s", m.TokenID, d.symbol(m.Token))
	}

	return d.amount(m.Token, m.Value, false) + " " + d.symbol(m.Token)
}

func (d *Document) writeBalance(out *markup, balances *value.Balances, addr common.Address) {
	changes := balances.Changes(addr)
	nfts := balances.NFTChanges(addr)

	if len(changes) == 0 && len(nfts) == 0 {
		return
	}

	out.line("note over " + ID(addr))

	for _, c := range changes {
		out.line(d.amount(c.Token, c.Amount, true) + " " + d.symbol(c.Token))
	}

	for _, c := range nfts {
		for _, id := range c.Added {
			out.line(fmt.Sprintf("+#%s %s", id, d.symbol(c.Token)))
		}

		for _, id := range c.Removed {
			out.line(fmt.Sprintf("-#%s %s", id, d.symbol(c.Token)))
		}
	}

	out.line("end note")
}

func (d *Document) symbol(token common.Address) string {
	if token == value.Ether {
		return d.opts.Currency
	}

	return d.participants.tokenSymbol(token)
}

// amount scales ether and known tokens by their decimals. Amounts of
// unknown tokens are shown raw.
func (d *Document) amount(token common.Address, v *big.Int, signed bool) string {
	digits := -1

	switch meta := d.participants.Lookup(token); {
	case token == value.Ether:
		digits = etherDigits
	case meta != nil && meta.TokenSymbol != "":
		digits = meta.Decimals
	}

	if digits >= 0 {
		if signed {
			return formatSignedAmount(v, digits)
		}

		return formatAmount(v, digits)
	}

	s := bigComma(v)
	if signed && v.Sign() > 0 {
		s = "+" + s
	}

	return s
}
