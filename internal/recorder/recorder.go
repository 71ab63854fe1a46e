// Package recorder implements the keeper's trade, funding, and
// open-interest history sink: one independent polling or streaming loop
// per data source, each writing idempotently into a DocumentStore (§4.5).
package recorder

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// Config carries the §4.5/§6 polling intervals.
type Config struct {
	EventQueueTick     time.Duration
	FundingInterval    time.Duration
	OpenInterestInterval time.Duration
	MarkTwapInterval   time.Duration
}

// DefaultConfig returns the §4.5 defaults.
func DefaultConfig() Config {
	return Config{
		EventQueueTick:        500 * time.Millisecond,
		FundingInterval:       10 * time.Second,
		OpenInterestInterval:  5 * time.Minute,
		MarkTwapInterval:      30 * time.Second,
	}
}

// Recorder owns every history-recording loop.
type Recorder struct {
	app   *chain.AppState
	cfg   Config
	store DocumentStore
}

// New builds a Recorder writing to store.
func New(app *chain.AppState, cfg Config, store DocumentStore) *Recorder {
	return &Recorder{app: app, cfg: cfg, store: store}
}

// Run starts every recording loop and blocks until ctx is cancelled; each
// loop logs a failed poll and carries on at its next tick rather than
// returning, matching the "no worker ever halts on remote failure" policy
// (§5, §7).
func (r *Recorder) Run(ctx context.Context) error {
	dexMarkets, err := r.app.LoadDexMarkets(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for idx, dm := range dexMarkets {
		idx, dm := idx, dm
		g.Go(func() error { return r.eventQueueLoop(ctx, idx, dm) })
	}
	g.Go(func() error { return r.fundingLoop(ctx) })
	g.Go(func() error { return r.openInterestLoop(ctx) })
	g.Go(func() error { return r.markTwapLoop(ctx) })
	return g.Wait()
}
