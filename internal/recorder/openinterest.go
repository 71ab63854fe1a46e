package recorder

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// openInterestLoop scans every Control account on a slow interval and
// sums each live market's long/short exposure (§4.5 poll_open_interest).
// Unlike the liquidator's mirror, this has no shard restriction: every
// worker instance scans the full account set.
func (r *Recorder) openInterestLoop(ctx context.Context) error {
	ticker := chain.NewTicker(r.cfg.OpenInterestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.pollOpenInterest(ctx); err != nil {
				r.app.Logger.Warn("recorder: open interest scan failed", zap.Error(err))
			}
		}
	}
}

func (r *Recorder) pollOpenInterest(ctx context.Context) error {
	controls, err := r.app.RPC.GetProgramAccountsWithOpts(ctx, r.app.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(accounts.DiscriminatorControl[:])}},
		},
	})
	if err != nil {
		return err
	}

	markets := r.app.State.LiveMarkets()
	long := make(map[int]int64, len(markets))
	short := make(map[int]int64, len(markets))

	for _, item := range controls {
		if item == nil || item.Account == nil {
			continue
		}
		ctrl, err := accounts.DecodeControl(item.Account.Data.GetBinary())
		if err != nil {
			continue
		}
		for _, idx := range markets {
			pos := ctrl.OpenOrdersAgg[idx].PosSize
			if pos > 0 {
				long[idx] += pos
			} else if pos < 0 {
				short[idx] += -pos
			}
		}
	}

	now := time.Now()
	for _, idx := range markets {
		pm := r.app.State.PerpMarkets[idx]
		doc := OpenInterest{
			Market:    pm.Symbol,
			Long:      float64(long[idx]),
			Short:     float64(short[idx]),
			Timestamp: now,
		}
		if err := r.store.Upsert(ctx, collOpenInterest, bson.M{"market": pm.Symbol}, doc); err != nil {
			r.app.Logger.Warn("recorder: upsert open interest failed", zap.String("market", pm.Symbol), zap.Error(err))
		}
	}
	return nil
}
