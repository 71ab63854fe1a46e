package liquidator

import (
	"math"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/fixedq"
	"github.com/zo-protocol/zo-keeper-go/internal/riskmath"
)

// buildAccount assembles the margin-fraction input vectors of §4.3.3 from
// a Margin/Control pair plus the process-wide State/Cache snapshot. It is
// pure and performs no I/O — every value it reads was already fetched by
// the mirror or by AppState.New.
func buildAccount(state *accounts.State, cache *accounts.Cache, margin *accounts.Margin, control *accounts.Control, collateralSymbols map[int]accounts.Symbol) *riskmath.Account {
	n := int(state.TotalCollaterals)
	a := &riskmath.Account{
		CollateralWeight:   make([]fixedq.Q, n),
		CollateralPosition: make([]fixedq.Q, n),
		CollateralPrice:    make([]fixedq.Q, n),
	}
	for i := 0; i < n; i++ {
		info := state.Collaterals[i]
		pos := margin.Collateral[i]
		a.CollateralWeight[i] = fixedq.FromFloat64(float64(info.Weight) / 1000.0)
		a.CollateralPosition[i] = pos

		oracle := fixedq.FromInt64(1)
		if sym, ok := collateralSymbols[i]; ok {
			if p, ok := cache.OracleBySymbol(sym); ok {
				oracle = p
			}
		}
		// Invariant 3: the oracle price is scaled by the borrow
		// multiplier when the position is negative (a borrow) and by
		// the supply multiplier otherwise.
		mult := cache.BorrowCache[i].SupplyMultiplier
		if pos.Sign() < 0 {
			mult = cache.BorrowCache[i].BorrowMultiplier
		}
		a.CollateralPrice[i] = oracle.Mul(mult)
	}

	markets := state.LiveMarkets()
	m := len(markets)
	a.PerpWeight = make([]fixedq.Q, m)
	a.PerpPositionRaw = make([]fixedq.Q, m)
	a.PerpPositionOpen = make([]fixedq.Q, m)
	a.PerpPrice = make([]fixedq.Q, m)

	var realized, unrealized fixedq.Q = fixedq.Zero(), fixedq.Zero()
	for j, idx := range markets {
		pm := state.PerpMarkets[idx]
		oo := control.OpenOrdersAgg[idx]

		a.PerpWeight[j] = fixedq.FromFloat64(float64(pm.BaseIMF) / 1000.0)
		posSize := fixedq.FromInt64(oo.PosSize)
		a.PerpPositionRaw[j] = posSize

		longOpen := fixedq.FromInt64(oo.PosSize + int64(oo.CoinOnBids))
		shortOpen := fixedq.FromInt64(oo.PosSize - int64(oo.CoinOnAsks))
		a.PerpPositionOpen[j] = absMax(longOpen, shortOpen)

		price := markPriceFor(cache, pm, idx)
		a.PerpPrice[j] = price

		// Unrealized pnl = pos_size·price + native_pc_total.
		unrealized = unrealized.Add(posSize.Mul(price).Add(fixedq.FromInt64(oo.NativePcTotal)))

		// Funding accrual is credited into the realized bucket:
		// pos_size·(user.funding_index − market.funding_index)/10^asset_decimals.
		fundingDiff := oo.FundingIndex.Sub(cache.FundingCache[idx])
		fundingAccrual := fundingDiff.Mul(posSize).Div(pow10Q(pm.AssetDecimals))
		realized = realized.Add(oo.RealizedPnl).Add(fundingAccrual)
	}
	a.RealizedPnlTotal = realized
	a.UnrealizedPnlTotal = unrealized

	return a
}

// markPriceFor prices a perp market per §4.3.3: the oracle price for a
// Future market, the mark-TWAP price for a Square market.
func markPriceFor(cache *accounts.Cache, pm accounts.PerpMarketInfo, marketIdx int) fixedq.Q {
	switch pm.PerpType {
	case accounts.PerpTypeSquare:
		if marketIdx >= len(cache.MarkPrices) {
			return fixedq.Zero()
		}
		return cache.MarkPrices[marketIdx].MarkTwap(pm.AssetDecimals)
	default:
		if p, ok := cache.OracleBySymbol(pm.OracleSymbol); ok {
			return p
		}
		return fixedq.Zero()
	}
}

func pow10Q(exp uint8) fixedq.Q {
	return fixedq.FromFloat64(math.Pow(10, float64(exp)))
}

func absMax(a, b fixedq.Q) fixedq.Q {
	aAbs := a
	if aAbs.Sign() < 0 {
		aAbs = aAbs.Neg()
	}
	bAbs := b
	if bAbs.Sign() < 0 {
		bAbs = bAbs.Neg()
	}
	if aAbs.Cmp(bAbs) >= 0 {
		return aAbs
	}
	return bAbs
}
