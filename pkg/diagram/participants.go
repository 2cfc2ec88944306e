package diagram

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Participant is display metadata for an address.
type Participant struct {
	Address     common.Address
	Name        string
	Protocol    string
	TokenSymbol string
	TokenName   string
	// Decimals scales token amounts. Only used when TokenSymbol is set.
	Decimals int
}

// Participants maps addresses to their display metadata. Unknown addresses
// are shown by address only.
type Participants map[common.Address]*Participant

// Lookup returns the metadata for addr, or nil.
func (p Participants) Lookup(addr common.Address) *Participant {
	if p == nil {
		return nil
	}

	return p[addr]
}

// ID returns the lifeline identifier of an address: the first and last four
// hex characters of the lower-case address.
func ID(addr common.Address) string {
	h := strings.ToLower(addr.Hex())

	return h[2:6] + h[len(h)-4:]
}

// lifelines maps the lifeline IDs of a diagram to the address that declared
// them.
type lifelines map[string]common.Address

// claim reports whether addr needs a declaration. An address whose ID is held
// by another address is drawn on that lifeline and gets a warning.
func (l lifelines) claim(addr common.Address) (declare bool, warning string) {
	id := ID(addr)

	owner, ok := l[id]
	if !ok {
		l[id] = addr

		return true, ""
	}

	if owner == addr {
		return false, ""
	}

	return false, fmt.Sprintf("participants %s and %s share lifeline %s", owner.Hex(), addr.Hex(), id)
}

// ShortAddress returns an address shortened to 0x1234..abcd.
func ShortAddress(addr common.Address) string {
	h := strings.ToLower(addr.Hex())

	return h[:6] + ".." + h[len(h)-4:]
}

// declaration returns the participant line for addr. Stereotypes are the
// protocol, token symbol and contract name, in that order.
func (p Participants) declaration(addr common.Address, actor bool) string {
	kind := "participant"
	if actor {
		kind = "actor"
	}

	line := fmt.Sprintf("%s %q as %s", kind, ShortAddress(addr), ID(addr))

	meta := p.Lookup(addr)
	if meta == nil {
		return line
	}

	for _, stereotype := range []string{meta.Protocol, meta.TokenSymbol, meta.Name} {
		if stereotype != "" {
			line += " <<" + stereotype + ">>"
		}
	}

	return line
}

// tokenSymbol returns the symbol shown next to an amount of token.
func (p Participants) tokenSymbol(token common.Address) string {
	if meta := p.Lookup(token); meta != nil && meta.TokenSymbol != "" {
		return meta.TokenSymbol
	}

	return ShortAddress(token)
}
