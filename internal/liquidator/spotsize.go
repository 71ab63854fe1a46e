package liquidator

import "github.com/zo-protocol/zo-keeper-go/internal/fixedq"

// SpotSizeInputs carries the quantities the §4.3.5 closed-form spot
// liquidation size needs: the account's current maintenance shortfall
// and the liquidated collateral's weight/price/fee terms.
type SpotSizeInputs struct {
	Shortfall    fixedq.Q // mmf*tau - mf, the maintenance gap to close
	AssetWeight  fixedq.Q // liquidated asset's maintenance weight
	QuoteWeight  fixedq.Q // quote (USDC) collateral's weight, normally 1
	AssetPrice   fixedq.Q
	LiqFee       fixedq.Q // basis-1000 liquidation fee, effective fraction
	MaxQty       fixedq.Q // liquidatable quantity available in the account
}

// noTradeThreshold is the §4.3.5 |D| < 0.0001 guard below which no trade
// is dispatched, avoiding a division blowup near a degenerate D.
var noTradeThreshold = fixedq.FromFloat64(0.0001)

// Size computes the closed-form liquidation quantity S = N/D of §4.3.5,
// then clamps it to be non-negative and no larger than MaxQty. There is
// no separate clamp against the shortfall. Returns zero with ok=false
// when D falls inside the no-trade band or the clamped size is zero.
func Size(in SpotSizeInputs) (qty fixedq.Q, ok bool) {
	// D = quote_weight - asset_weight*(1-liq_fee): the per-unit margin
	// fraction improvement from swapping one unit of asset into quote.
	d := in.QuoteWeight.Sub(in.AssetWeight.Mul(fixedq.FromInt64(1).Sub(in.LiqFee)))
	if d.Cmp(noTradeThreshold) < 0 && d.Cmp(noTradeThreshold.Neg()) > 0 {
		return fixedq.Zero(), false
	}

	// N = shortfall / asset_price: quote units of shortfall expressed in
	// asset units before dividing by D.
	n := in.Shortfall.Div(in.AssetPrice)

	s := n.Div(d)

	// Stage 1: non-negative.
	if s.Sign() < 0 {
		s = fixedq.Zero()
	}
	// Stage 2: never exceed the account's available quantity.
	if s.Cmp(in.MaxQty) > 0 {
		s = in.MaxQty
	}
	// Stage 3: a zero-shortfall/zero-D edge case still yields a zero
	// trade, which the caller's no-trade threshold above already handles
	// for the degenerate-D case; this stage exists so a defensively
	// negative max quantity never escapes as a sell order.
	if s.Sign() < 0 {
		s = fixedq.Zero()
	}

	return s, !s.IsZero()
}
