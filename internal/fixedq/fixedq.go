// Package fixedq implements the signed 80.48 binary fixed-point type used
// throughout the protocol's interior financial math.
//
// No library in the retrieved dependency set implements this exact format
// (Rust's `fixed::types::I80F48`), so it is built directly on math/big,
// matching the teacher's own heavy use of math/big for on-chain amounts.
package fixedq

import "math/big"

// Frac is the number of fractional bits: a Q80.48 value stores
// round(x * 2^48) in a big.Int.
const Frac = 48

var scale = new(big.Int).Lsh(big.NewInt(1), Frac)

// Q is a signed 80.48 binary fixed-point number.
type Q struct {
	bits *big.Int
}

// Zero returns the additive identity.
func Zero() Q { return Q{bits: new(big.Int)} }

// FromInt64 builds a Q from a plain integer (no fractional part).
func FromInt64(v int64) Q {
	return Q{bits: new(big.Int).Mul(big.NewInt(v), scale)}
}

// FromFloat64 builds a Q from a float64, rounding to the nearest 2^-48 step.
func FromFloat64(v float64) Q {
	bf := new(big.Float).SetPrec(128).Mul(big.NewFloat(v), new(big.Float).SetInt(scale))
	bi, _ := bf.Int(nil)
	return Q{bits: bi}
}

// FromBits wraps a raw Q80.48 bit pattern, e.g. as decoded off-chain.
func FromBits(bits *big.Int) Q {
	return Q{bits: new(big.Int).Set(bits)}
}

// Bits returns the raw Q80.48 bit pattern.
func (q Q) Bits() *big.Int { return new(big.Int).Set(q.bits) }

func (q Q) Add(o Q) Q { return Q{bits: new(big.Int).Add(q.bits, o.bits)} }
func (q Q) Sub(o Q) Q { return Q{bits: new(big.Int).Sub(q.bits, o.bits)} }
func (q Q) Neg() Q    { return Q{bits: new(big.Int).Neg(q.bits)} }

// Mul multiplies two Q80.48 values, rescaling the double-width product.
func (q Q) Mul(o Q) Q {
	prod := new(big.Int).Mul(q.bits, o.bits)
	return Q{bits: prod.Rsh(prod, Frac)}
}

// Div divides q by o, keeping Q80.48 precision in the quotient.
func (q Q) Div(o Q) Q {
	num := new(big.Int).Lsh(q.bits, Frac)
	return Q{bits: num.Quo(num, o.bits)}
}

// MulInt64 scales q by a plain integer factor.
func (q Q) MulInt64(n int64) Q {
	return Q{bits: new(big.Int).Mul(q.bits, big.NewInt(n))}
}

func (q Q) Sign() int { return q.bits.Sign() }
func (q Q) IsZero() bool { return q.bits.Sign() == 0 }

// Cmp returns -1, 0, +1 as q is <, ==, > o.
func (q Q) Cmp(o Q) int { return q.bits.Cmp(o.bits) }

func (q Q) LessThan(o Q) bool    { return q.Cmp(o) < 0 }
func (q Q) GreaterEq(o Q) bool   { return q.Cmp(o) >= 0 }

// Min returns the lesser of q and o.
func Min(a, b Q) Q {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Float64 converts back to an approximate float64, for logging and tests.
func (q Q) Float64() float64 {
	bf := new(big.Float).SetPrec(128).SetInt(q.bits)
	bf.Quo(bf, new(big.Float).SetInt(scale))
	f, _ := bf.Float64()
	return f
}

// Sum adds up a slice of Q values.
func Sum(xs []Q) Q {
	total := Zero()
	for _, x := range xs {
		total = total.Add(x)
	}
	return total
}

func (q Q) String() string {
	return new(big.Float).SetPrec(128).Quo(new(big.Float).SetInt(q.bits), new(big.Float).SetInt(scale)).Text('f', 8)
}
