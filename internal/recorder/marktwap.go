package recorder

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// markTwapLoop samples each live market's mark-price TWAP window on a
// fixed interval (§4.5 poll_mark_twap).
func (r *Recorder) markTwapLoop(ctx context.Context) error {
	ticker := chain.NewTicker(r.cfg.MarkTwapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.pollMarkTwap(ctx)
		}
	}
}

func (r *Recorder) pollMarkTwap(ctx context.Context) {
	cache, err := r.app.FetchCache(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		r.app.Logger.Warn("recorder: fetch cache failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, idx := range r.app.State.LiveMarkets() {
		pm := r.app.State.PerpMarkets[idx]
		if idx >= len(cache.MarkPrices) {
			continue
		}
		twap := cache.MarkPrices[idx].MarkTwap(pm.AssetDecimals)
		doc := MarkTwap{
			Market:    pm.Symbol,
			Twap:      twap.Float64(),
			Timestamp: now,
		}
		if err := r.store.Upsert(ctx, collMarkTwap, bson.M{"market": pm.Symbol}, doc); err != nil {
			r.app.Logger.Warn("recorder: upsert mark twap failed", zap.String("market", pm.Symbol), zap.Error(err))
		}
	}
}
