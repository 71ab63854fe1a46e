package recorder

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// eventQueueLoop replays every new fill in a market's event queue into
// the Trade collection, gated on sequence number so a reconnect or a
// slow poll never re-records an already-seen fill (§4.5, invariant 6 of
// §8).
func (r *Recorder) eventQueueLoop(ctx context.Context, marketIdx int, dm *accounts.DexMarket) error {
	symbol := r.app.State.PerpMarkets[marketIdx].Symbol
	assetDecimals := r.app.State.PerpMarkets[marketIdx].AssetDecimals

	ticker := chain.NewTicker(r.cfg.EventQueueTick)
	defer ticker.Stop()

	var lastSeq uint64
	first := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := r.app.RPC.GetAccountInfoWithOpts(ctx, dm.EventQ, &rpc.GetAccountInfoOpts{Commitment: rpc.CommitmentConfirmed})
			if err != nil {
				r.app.Logger.Warn("recorder: fetch event queue failed", zap.String("market", symbol), zap.Error(err))
				continue
			}
			data := info.Value.Data.GetBinary()
			header, err := accounts.DecodeEventQueueHeader(data)
			if err != nil {
				r.app.Logger.Warn("recorder: decode event queue header failed", zap.String("market", symbol), zap.Error(err))
				continue
			}
			if header.Count == 0 {
				continue
			}
			events, err := accounts.DecodeEventQueueEvents(data, header.Count)
			if err != nil {
				r.app.Logger.Warn("recorder: decode event queue events failed", zap.String("market", symbol), zap.Error(err))
				continue
			}

			if first {
				// On startup, skip straight to the current tail instead
				// of replaying the entire resident ring buffer as new.
				if len(events) > 0 {
					lastSeq = events[len(events)-1].SeqNum
				}
				first = false
				continue
			}

			now := time.Now()
			for _, ev := range events {
				if ev.SeqNum <= lastSeq {
					continue
				}
				trade := Trade{
					Market:    symbol,
					SeqNum:    ev.SeqNum,
					IsBid:     ev.IsBid,
					Maker:     ev.Maker,
					Control:   ev.Control.String(),
					Price:     fillPrice(ev, dm, assetDecimals),
					Size:      fillSize(ev, dm),
					Fee:       float64(ev.NativeFeeOrRebate) / pow10u(dm.CoinDecimals),
					Timestamp: now,
				}
				if err := r.store.InsertIdempotent(ctx, collTrades, trade); err != nil {
					r.app.Logger.Warn("recorder: insert trade failed", zap.String("market", symbol), zap.Error(err))
					continue
				}
			}
			if events[len(events)-1].SeqNum > lastSeq {
				lastSeq = events[len(events)-1].SeqNum
			}
		}
	}
}

// fillPrice recovers a native-unit fill's human price from the lot-sized
// native quantities the matching engine reports (§4.5's bid/ask price
// math): for a bid, price = (qty_paid / qty_released) scaled by
// 10^assetDecimals / 10^6; an ask uses qty_released / qty_paid. The fee
// or rebate is not folded into the price.
func fillPrice(ev accounts.FillEvent, dm *accounts.DexMarket, assetDecimals uint8) float64 {
	if ev.NativeQtyReleased == 0 {
		return 0
	}
	if ev.IsBid {
		return (float64(ev.NativeQtyPaid) / float64(ev.NativeQtyReleased)) * pow10u(assetDecimals) / pow10u(6)
	}
	return (float64(ev.NativeQtyReleased) / float64(ev.NativeQtyPaid)) * pow10u(assetDecimals) / pow10u(6)
}

func fillSize(ev accounts.FillEvent, dm *accounts.DexMarket) float64 {
	qty := ev.NativeQtyPaid
	if ev.IsBid {
		qty = ev.NativeQtyReleased
	}
	return float64(qty) / pow10u(dm.CoinDecimals)
}

func pow10u(exp uint8) float64 {
	v := 1.0
	for i := uint8(0); i < exp; i++ {
		v *= 10
	}
	return v
}
