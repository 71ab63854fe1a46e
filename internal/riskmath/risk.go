// Package riskmath implements the central liquidator algorithm: the
// margin-fraction formulas and liquidation/cancellation test of §4.3.3.
// The math here is pure and non-suspending (§5) — it never performs I/O.
package riskmath

import "github.com/zo-protocol/zo-keeper-go/internal/fixedq"

// Mode is one of the five margin-fraction modes the weight-conversion
// table is indexed by.
type Mode int

const (
	Mf Mode = iota
	Omf
	Imf
	Cmf
	Mmf
)

// Tau is the safety tolerance applied to every liquidation test boundary,
// chosen to avoid thrashing near the exact boundary (§4.3.3).
var Tau = fixedq.FromFloat64(0.99995)

// SpotInitial and SpotMaint are the protocol's spot weight-conversion
// constants (§4.3.3's SPOT_INITIAL/SPOT_MAINT), set deliberately wider
// than 1 so a short position's effective weight is more punitive than an
// equivalent long.
var (
	SpotInitial = fixedq.FromFloat64(1.1)
	SpotMaint   = fixedq.FromFloat64(1.03)
)

// Perp weight multipliers for the Cmf/Mmf rows of the conversion table.
var (
	cmfPerpMul = fixedq.FromFloat64(0.101)
	mmfPerpMul = fixedq.FromFloat64(0.1)
)

type side int

const (
	sideSpot side = iota
	sidePerp
)

// weightFor converts a base weight into its mode- and side-specific
// effective weight, per the §4.3.3 table.
func weightFor(mode Mode, s side, base fixedq.Q, sign int) fixedq.Q {
	if s == sidePerp {
		switch mode {
		case Mf, Omf:
			return fixedq.Zero()
		case Imf:
			return signedWeight(base, sign)
		case Cmf:
			return signedWeight(base.Mul(cmfPerpMul), sign)
		case Mmf:
			return signedWeight(base.Mul(mmfPerpMul), sign)
		}
		return fixedq.Zero()
	}

	// Spot.
	long := sign >= 0
	switch mode {
	case Mf, Omf:
		if long {
			return base
		}
		return fixedq.FromInt64(1)
	case Imf, Cmf:
		if long {
			return fixedq.Zero()
		}
		return spotShortWeight(SpotInitial, base)
	case Mmf:
		if long {
			return fixedq.Zero()
		}
		return spotShortWeight(SpotMaint, base)
	}
	return fixedq.Zero()
}

// spotShortWeight computes -(SPOT_X/w - 1).
func spotShortWeight(spotConst, w fixedq.Q) fixedq.Q {
	return spotConst.Div(w).Sub(fixedq.FromInt64(1)).Neg()
}

func signedWeight(w fixedq.Q, sign int) fixedq.Q {
	if sign < 0 {
		return w.Neg()
	}
	return w
}

// Account is the per-Margin snapshot the margin-fraction formula operates
// on: weighted collateral/perp vectors plus the realized/unrealized PnL
// decomposition of §4.3.3.
type Account struct {
	CollateralWeight   []fixedq.Q // base weight (already /1000), len = numCollaterals
	CollateralPosition []fixedq.Q // signed balances
	CollateralPrice    []fixedq.Q

	PerpWeight        []fixedq.Q // base weight (base_imf/1000)
	PerpPositionRaw   []fixedq.Q // pos_size, used for Mf/Omf/Mmf
	PerpPositionOpen  []fixedq.Q // max(|pos+bids|,|pos-asks|), used for Imf/Cmf
	PerpPrice         []fixedq.Q

	RealizedPnlTotal   fixedq.Q
	UnrealizedPnlTotal fixedq.Q
}

// MarginFraction evaluates mf(M) per §4.3.3's formula.
func (a *Account) MarginFraction(mode Mode) fixedq.Q {
	total := fixedq.Zero()

	for i, pos := range a.CollateralPosition {
		w := weightFor(mode, sideSpot, a.CollateralWeight[i], pos.Sign())
		total = total.Add(pos.Mul(a.CollateralPrice[i]).Mul(w))
	}

	positions := a.PerpPositionRaw
	if mode == Imf || mode == Cmf {
		positions = a.PerpPositionOpen
	}
	for i, pos := range positions {
		w := weightFor(mode, sidePerp, a.PerpWeight[i], pos.Sign())
		total = total.Add(pos.Mul(a.PerpPrice[i]).Mul(w))
	}

	// realized PnL lives in collateral[0]; its weight is derived from
	// collateral[0]'s own position sign, not the PnL's sign.
	if len(a.CollateralWeight) > 0 {
		sign := 0
		if len(a.CollateralPosition) > 0 {
			sign = a.CollateralPosition[0].Sign()
		}
		w0 := weightFor(mode, sideSpot, a.CollateralWeight[0], sign)
		total = total.Add(a.RealizedPnlTotal.Mul(w0))
	}

	switch mode {
	case Mf:
		total = total.Add(a.UnrealizedPnlTotal)
	case Omf:
		total = total.Add(fixedq.Min(a.UnrealizedPnlTotal, fixedq.Zero()))
	}

	return total
}

// Satisfied reports whether the given mode's test passes at tolerance
// Tau: omf >= imf*tau (Initial), omf >= cmf*tau (Cancel), mf >= mmf*tau
// (Maintenance). Boundary values (exactly equal) count as satisfied —
// strict inequality is required to FAIL, per the S6 seed scenario.
func (a *Account) Satisfied(mode Mode) bool {
	var numerator, denominator fixedq.Q
	switch mode {
	case Imf:
		numerator, denominator = a.MarginFraction(Omf), a.MarginFraction(Imf)
	case Cmf:
		numerator, denominator = a.MarginFraction(Omf), a.MarginFraction(Cmf)
	case Mmf:
		numerator, denominator = a.MarginFraction(Mf), a.MarginFraction(Mmf)
	default:
		return true
	}
	return numerator.GreaterEq(denominator.Mul(Tau))
}

// Liquidatable reports whether Maintenance is not satisfied.
func (a *Account) Liquidatable() bool { return !a.Satisfied(Mmf) }

// Cancellable reports whether Cancel is not satisfied and the account has
// at least one resting open order.
func (a *Account) Cancellable(hasRestingOrders bool) bool {
	return !a.Satisfied(Cmf) && hasRestingOrders
}
