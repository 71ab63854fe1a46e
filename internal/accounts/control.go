package accounts

import (
	"github.com/gagliardetto/solana-go"

	"github.com/zo-protocol/zo-keeper-go/internal/fixedq"
)

// OpenOrdersInfo is one market slot of a Control account's open-orders
// aggregate: the resting-order summary plus carried PnL/funding state.
type OpenOrdersInfo struct {
	Key           solana.PublicKey
	PosSize       int64
	CoinOnBids    uint64
	CoinOnAsks    uint64
	NativePcTotal int64
	RealizedPnl   fixedq.Q
	FundingIndex  fixedq.Q
}

// HasRestingOrders reports whether this slot has any resting exposure,
// the §4.3.6 "largest open order" predicate evaluated per-slot.
func (o *OpenOrdersInfo) HasRestingOrders() bool {
	return o.CoinOnBids > 0 || o.CoinOnAsks > 0
}

// Control is a user's per-market order/position account.
type Control struct {
	Authority     solana.PublicKey
	OpenOrdersAgg [MaxMarkets]OpenOrdersInfo
}

// DecodeControl casts raw account data into a Control.
func DecodeControl(data []byte) (*Control, error) {
	c := newCursor(data)
	d := c.discriminator()
	if d != DiscriminatorControl {
		return nil, &ErrWrongDiscriminator{Want: DiscriminatorControl, Got: d}
	}
	ctrl := &Control{Authority: c.pubkey()}
	for i := range ctrl.OpenOrdersAgg {
		ctrl.OpenOrdersAgg[i] = OpenOrdersInfo{
			Key:           c.pubkey(),
			PosSize:       c.i64(),
			CoinOnBids:    c.u64(),
			CoinOnAsks:    c.u64(),
			NativePcTotal: c.i64(),
			RealizedPnl:   fixedq.FromBits(bigFromLEBytes(c.i128())),
			FundingIndex:  fixedq.FromBits(bigFromLEBytes(c.i128())),
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return ctrl, nil
}

// LargestOpenOrder returns the market index maximising
// max(coin_on_asks, coin_on_bids) * markPrices[i], or -1 if every slot is
// flat (§4.3.6).
func (ctrl *Control) LargestOpenOrder(markPrices []fixedq.Q) int {
	best := -1
	bestNotional := fixedq.Zero()
	for i, oo := range ctrl.OpenOrdersAgg {
		if i >= len(markPrices) {
			break
		}
		size := oo.CoinOnAsks
		if oo.CoinOnBids > size {
			size = oo.CoinOnBids
		}
		if size == 0 {
			continue
		}
		notional := fixedq.FromInt64(int64(size)).Mul(markPrices[i])
		if best == -1 || notional.Cmp(bestNotional) > 0 {
			best = i
			bestNotional = notional
		}
	}
	return best
}
