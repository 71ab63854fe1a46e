package accounts

import (
	"github.com/gagliardetto/solana-go"

	"github.com/zo-protocol/zo-keeper-go/internal/fixedq"
)

// Margin is a user's collateral account. Negative collateral is a borrow.
type Margin struct {
	Authority  solana.PublicKey
	ControlKey solana.PublicKey
	Collateral [MaxCollaterals]fixedq.Q
}

// DecodeMargin casts raw account data into a Margin, checking the
// discriminator first (invariant 1 of §3: Margin.ControlKey uniquely
// identifies its Control).
func DecodeMargin(data []byte) (*Margin, error) {
	c := newCursor(data)
	d := c.discriminator()
	if d != DiscriminatorMargin {
		return nil, &ErrWrongDiscriminator{Want: DiscriminatorMargin, Got: d}
	}
	m := &Margin{
		Authority:  c.pubkey(),
		ControlKey: c.pubkey(),
	}
	for i := range m.Collateral {
		bits := c.i128()
		m.Collateral[i] = fixedq.FromBits(bigFromLEBytes(bits))
	}
	if c.err != nil {
		return nil, c.err
	}
	return m, nil
}
