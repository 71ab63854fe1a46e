package accounts

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// bigFromLEBytes interprets b as a little-endian two's-complement signed
// integer, the wire layout of a FixedQ value.
func bigFromLEBytes(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	v := new(big.Int).SetBytes(be)
	if len(be) > 0 && be[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(be)*8))
		v.Sub(v, mod)
	}
	return v
}

// ErrWrongDiscriminator reports an account whose 8-byte tag is not the
// expected one; callers wrap it with fmt.Errorf context. It is kept local
// so this package has no dependency on internal/chain.
type ErrWrongDiscriminator struct {
	Want, Got Discriminator
}

func (e *ErrWrongDiscriminator) Error() string {
	return fmt.Sprintf("accounts: wrong discriminator: want %x got %x", e.Want, e.Got)
}

// cursor is a small manual binary reader over account data, the zero-copy
// equivalent of casting a byte slice to a #[repr(C)] struct: every field
// is read in declaration order with no reflection.
type cursor struct {
	buf []byte
	off int
	err error
}

func newCursor(buf []byte) *cursor { return &cursor{buf: buf} }

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.buf) {
		c.err = fmt.Errorf("accounts: short buffer: need %d more bytes at offset %d, have %d", n, c.off, len(c.buf))
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) discriminator() Discriminator {
	var d Discriminator
	copy(d[:], c.take(8))
	return d
}

func (c *cursor) pubkey() solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], c.take(32))
	return pk
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (c *cursor) i64() int64 {
	return int64(c.u64())
}

// i128 reads a little-endian signed 128-bit Q80.48 fixed-point bit
// pattern, the on-wire representation of a FixedQ value.
func (c *cursor) i128() []byte {
	b := c.take(16)
	out := make([]byte, 16)
	copy(out, b)
	return out
}

func (c *cursor) bytes(n int) []byte {
	b := c.take(n)
	out := make([]byte, n)
	copy(out, b)
	return out
}

func fixedString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
