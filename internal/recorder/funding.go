package recorder

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// fundingLoop polls the Cache account's funding index per live market
// and upserts it, keyed on market so each write replaces the prior
// observation rather than growing without bound (§4.5).
func (r *Recorder) fundingLoop(ctx context.Context) error {
	ticker := chain.NewTicker(r.cfg.FundingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.pollUpdateFunding(ctx)
		}
	}
}

func (r *Recorder) pollUpdateFunding(ctx context.Context) {
	cache, err := r.app.FetchCache(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		r.app.Logger.Warn("recorder: fetch cache failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, idx := range r.app.State.LiveMarkets() {
		symbol := r.app.State.PerpMarkets[idx].Symbol
		if idx >= len(cache.FundingCache) {
			continue
		}
		doc := Funding{
			Market:    symbol,
			Index:     cache.FundingCache[idx].Float64(),
			Timestamp: now,
		}
		err := r.store.Upsert(ctx, collFunding, bson.M{"market": symbol}, doc)
		if err != nil {
			r.app.Logger.Warn("recorder: upsert funding failed", zap.String("market", symbol), zap.Error(err))
		}
	}
}
