package liquidator

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
	"github.com/zo-protocol/zo-keeper-go/internal/fixedq"
	"github.com/zo-protocol/zo-keeper-go/internal/riskmath"
)

// maxHalvings bounds the retry ladder liquidate_perp_position walks on
// OverExposure: at most 5 sends in all, the first at full size and each
// one after an OverExposure rejection at half the previous size, before
// giving up on this account until the next evaluation pass.
const maxHalvings = 5

// evaluate applies the §4.3.4 decision tree to one account: liquidate if
// Maintenance fails, otherwise force-cancel if Cancel fails and resting
// orders exist.
func (l *Liquidator) evaluate(ctx context.Context, marginKey solana.PublicKey, margin *accounts.Margin) error {
	control, ok := l.table.Control(margin.ControlKey)
	if !ok {
		return nil
	}

	acct := buildAccount(l.app.State, l.app.Cache, margin, control, l.cfg.CollateralSymbols)

	if acct.Liquidatable() {
		return l.liquidate(ctx, marginKey, margin, control, acct)
	}

	hasResting := false
	for _, oo := range control.OpenOrdersAgg {
		if oo.HasRestingOrders() {
			hasResting = true
			break
		}
	}
	if acct.Cancellable(hasResting) {
		return l.forceCancel(ctx, marginKey, margin, control)
	}
	return nil
}

// liquidate picks among the §4.3.4 branches: a dominant perp exposure
// liquidates via liquidate_perp_position; a dominant spot short (or a
// perp-free bankrupt account) liquidates via liquidate_spot_position or
// settle_bankruptcy; otherwise it falls back to force-cancel to shrink
// exposure before the next pass.
func (l *Liquidator) liquidate(ctx context.Context, marginKey solana.PublicKey, margin *accounts.Margin, control *accounts.Control, acct *riskmath.Account) error {
	perpIdx, perpNotional := dominantPerp(acct)
	spotIdx, spotNotional := dominantShortSpot(acct)

	switch {
	case perpIdx >= 0 && perpNotional.Cmp(spotNotional) >= 0:
		return l.liquidatePerpPosition(ctx, marginKey, margin, control, perpIdx)
	case isBankruptNoPositions(acct):
		return l.settleBankruptcy(ctx, marginKey, margin)
	case spotIdx >= 0:
		return l.liquidateSpotPosition(ctx, marginKey, margin, control, spotIdx, acct)
	default:
		return l.forceCancel(ctx, marginKey, margin, control)
	}
}

func dominantPerp(acct *riskmath.Account) (int, fixedq.Q) {
	best, bestNotional := -1, fixedq.Zero()
	for i, pos := range acct.PerpPositionRaw {
		notional := pos.Mul(acct.PerpPrice[i])
		if notional.Sign() < 0 {
			notional = notional.Neg()
		}
		if notional.IsZero() {
			continue
		}
		if best == -1 || notional.Cmp(bestNotional) > 0 {
			best, bestNotional = i, notional
		}
	}
	return best, bestNotional
}

func dominantShortSpot(acct *riskmath.Account) (int, fixedq.Q) {
	best, bestNotional := -1, fixedq.Zero()
	for i, pos := range acct.CollateralPosition {
		if pos.Sign() >= 0 {
			continue
		}
		notional := pos.Mul(acct.CollateralPrice[i]).Neg()
		if best == -1 || notional.Cmp(bestNotional) > 0 {
			best, bestNotional = i, notional
		}
	}
	return best, bestNotional
}

func isBankruptNoPositions(acct *riskmath.Account) bool {
	for _, pos := range acct.PerpPositionRaw {
		if !pos.IsZero() {
			return false
		}
	}
	total := fixedq.Zero()
	for _, pos := range acct.CollateralPosition {
		total = total.Add(pos)
	}
	return total.Sign() < 0
}

// liquidatePerpPosition implements §4.3.4's liquidate_perp_position:
// dispatch liquidate_perp_position for the account's whole position on
// that market, halving the requested size on every OverExposure rejection,
// for at most maxHalvings sends. The transaction carries that one
// instruction only: it does not force-cancel the account's resting orders
// first and places no rebalancing order.
func (l *Liquidator) liquidatePerpPosition(ctx context.Context, marginKey solana.PublicKey, margin *accounts.Margin, control *accounts.Control, marketIdx int) error {
	pm := l.app.State.PerpMarkets[marketIdx]
	dexMarket := l.table.MarketState[marketIdx]
	if dexMarket == nil {
		return fmt.Errorf("liquidator: no dex market snapshot for %s", pm.Symbol)
	}

	qty := control.OpenOrdersAgg[marketIdx].PosSize
	if qty < 0 {
		qty = -qty
	}
	size := uint64(qty)

	err := chain.RetrySend(ctx, l.app.RPC, l.app.Payer, func(halvings int) ([]solana.Instruction, error) {
		shrink := size >> uint(halvings)
		if shrink == 0 {
			return nil, fmt.Errorf("liquidator: position size shrank to zero after %d halvings", halvings)
		}
		return []solana.Instruction{liquidatePerpInstruction(l, marginKey, margin, control, marketIdx, shrink)}, nil
	}, maxHalvings)
	if err != nil {
		l.app.Logger.Warn("liquidator: liquidate_perp_position failed",
			zap.Stringer("margin", marginKey), zap.String("market", pm.Symbol), zap.Error(err))
		return err
	}
	return nil
}

func liquidatePerpInstruction(l *Liquidator, marginKey solana.PublicKey, margin *accounts.Margin, control *accounts.Control, marketIdx int, size uint64) solana.Instruction {
	dexMarket := l.table.MarketState[marketIdx]
	data := append([]byte{}, accounts.IxLiquidatePerpPosition[:]...)
	data = append(data, le64(size)...)
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(l.app.StatePubkey, false, false),
		solana.NewAccountMeta(l.app.CachePubkey, false, false),
		solana.NewAccountMeta(marginKey, true, false),
		solana.NewAccountMeta(margin.ControlKey, true, false),
		solana.NewAccountMeta(l.app.Payer.PublicKey(), true, true),
		solana.NewAccountMeta(dexMarket.OwnAddress, true, false),
	}
	return solana.NewInstruction(l.app.ProgramID, metas, data)
}

// liquidateSpotPosition computes the §4.3.5 closed-form size and
// dispatches liquidate_spot_position, skipping the trade entirely when
// Size reports the no-trade band.
func (l *Liquidator) liquidateSpotPosition(ctx context.Context, marginKey solana.PublicKey, margin *accounts.Margin, control *accounts.Control, collateralIdx int, acct *riskmath.Account) error {
	shortfall := acct.MarginFraction(riskmath.Mmf).Mul(riskmath.Tau).Sub(acct.MarginFraction(riskmath.Mf))
	liqFee := fixedq.FromFloat64(float64(l.app.State.Collaterals[collateralIdx].LiqFee) / 1000.0)
	maxQty := acct.CollateralPosition[collateralIdx].Neg()

	qty, ok := Size(SpotSizeInputs{
		Shortfall:   shortfall,
		AssetWeight: acct.CollateralWeight[collateralIdx],
		QuoteWeight: fixedq.FromInt64(1),
		AssetPrice:  acct.CollateralPrice[collateralIdx],
		LiqFee:      liqFee,
		MaxQty:      maxQty,
	})
	if !ok {
		return nil
	}

	data := append([]byte{}, accounts.IxLiquidateSpotPosition[:]...)
	data = append(data, le64(uint64(qty.Float64()))...)
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(l.app.StatePubkey, false, false),
		solana.NewAccountMeta(l.app.CachePubkey, false, false),
		solana.NewAccountMeta(marginKey, true, false),
		solana.NewAccountMeta(margin.ControlKey, true, false),
		solana.NewAccountMeta(l.app.Payer.PublicKey(), true, true),
	}
	ix := solana.NewInstruction(l.app.ProgramID, metas, data)
	_, err := chain.Dispatch(ctx, l.app.RPC, l.app.Payer, []solana.Instruction{ix})
	return err
}

// settleBankruptcy dispatches settle_bankruptcy for an account with no
// open positions whose aggregate collateral is negative.
func (l *Liquidator) settleBankruptcy(ctx context.Context, marginKey solana.PublicKey, margin *accounts.Margin) error {
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(l.app.StatePubkey, false, false),
		solana.NewAccountMeta(l.app.CachePubkey, false, false),
		solana.NewAccountMeta(marginKey, true, false),
		solana.NewAccountMeta(margin.ControlKey, true, false),
		solana.NewAccountMeta(l.app.Payer.PublicKey(), true, true),
	}
	ix := solana.NewInstruction(l.app.ProgramID, metas, append([]byte{}, accounts.IxSettleBankruptcy[:]...))
	_, err := chain.Dispatch(ctx, l.app.RPC, l.app.Payer, []solana.Instruction{ix})
	return err
}

// forceCancel dispatches force_cancel_all_perp_orders against the
// account's largest resting order, per §4.3.6.
func (l *Liquidator) forceCancel(ctx context.Context, marginKey solana.PublicKey, margin *accounts.Margin, control *accounts.Control) error {
	markPrices := make([]fixedq.Q, len(l.app.State.LiveMarkets()))
	for j, idx := range l.app.State.LiveMarkets() {
		pm := l.app.State.PerpMarkets[idx]
		markPrices[j] = markPriceFor(l.app.Cache, pm, idx)
	}
	marketIdx := control.LargestOpenOrder(markPrices)
	if marketIdx == -1 {
		return nil
	}
	dexMarket := l.table.MarketState[marketIdx]
	if dexMarket == nil {
		return nil
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(l.app.StatePubkey, false, false),
		solana.NewAccountMeta(l.app.StateSigner, false, false),
		solana.NewAccountMeta(marginKey, true, false),
		solana.NewAccountMeta(margin.ControlKey, true, false),
		solana.NewAccountMeta(dexMarket.OwnAddress, true, false),
	}
	ix := solana.NewInstruction(l.app.DexProgram, metas, append([]byte{}, accounts.IxForceCancelAllPerpOrders[:]...))
	_, err := chain.Dispatch(ctx, l.app.RPC, l.app.Payer, []solana.Instruction{ix})
	return err
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
	return b
}
