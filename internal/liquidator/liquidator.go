// Package liquidator implements the sharded liquidation worker: a
// streaming mirror of Margin/Control accounts, the margin-fraction risk
// test of §4.3.3, and the liquidation/cancellation strategy of §4.3.4.
package liquidator

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// Config carries the §4.3.1/§4.3.2/§6 tunables.
type Config struct {
	WorkerIndex int
	WorkerCount int

	RefreshInterval time.Duration
	EvalInterval    time.Duration
	EvalConcurrency int

	// CollateralSymbols maps a State.Collaterals slot to the oracle
	// symbol that prices it; unlike perp markets, collateral mints carry
	// no oracle ticker in State itself, so this is operator-configured.
	CollateralSymbols map[int]accounts.Symbol
}

// DefaultConfig returns the §4.3.2 defaults: a five-minute full mirror
// rebuild and a one-second risk-evaluation sweep.
func DefaultConfig() Config {
	return Config{
		WorkerIndex:     0,
		WorkerCount:     1,
		RefreshInterval: 5 * time.Minute,
		EvalInterval:    time.Second,
		EvalConcurrency: 16,
		CollateralSymbols: map[int]accounts.Symbol{
			0: "USDC",
		},
	}
}

// Liquidator owns one shard's AccountTable and runs the refresh,
// streaming-update, and evaluation loops concurrently.
type Liquidator struct {
	app   *chain.AppState
	cfg   Config
	table *AccountTable
	d     *chain.Dispatcher
}

// New builds a Liquidator against the given AppState; Run performs the
// initial full load before starting its loops.
func New(app *chain.AppState, cfg Config, dispatcher *chain.Dispatcher) *Liquidator {
	return &Liquidator{app: app, cfg: cfg, d: dispatcher, table: NewAccountTable()}
}

// Run loads the initial shard, then joins the streaming-update, periodic
// full-refresh, and evaluation loops until ctx is cancelled (§5: the
// three loops are independent and never share more than the table lock).
func (l *Liquidator) Run(ctx context.Context) error {
	initial, err := LoadInitial(ctx, l.app, l.cfg.WorkerIndex, l.cfg.WorkerCount)
	if err != nil {
		return err
	}
	l.table.Replace(initial)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.streamLoop(ctx) })
	g.Go(func() error { return l.refreshLoop(ctx) })
	g.Go(func() error { return l.evalLoop(ctx) })
	return g.Wait()
}

// streamLoop holds one ProgramSubscribe connection open for the program's
// account updates, decoding by discriminator and routing into the table
// (§4.3.2). A dropped connection is logged and reopened; it never aborts
// the worker.
func (l *Liquidator) streamLoop(ctx context.Context) error {
	for {
		if err := l.streamOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.app.Logger.Warn("liquidator: program subscription dropped, reconnecting", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (l *Liquidator) streamOnce(ctx context.Context) error {
	client, err := l.app.WS(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.ProgramSubscribe(l.app.ProgramID, rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		got, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		data := got.Value.Account.Data.GetBinary()
		if len(data) < 8 {
			continue
		}
		var disc accounts.Discriminator
		copy(disc[:], data[:8])

		switch disc {
		case accounts.DiscriminatorMargin:
			m, err := accounts.DecodeMargin(data)
			if err != nil {
				continue
			}
			l.table.ApplyMarginUpdate(got.Value.Pubkey, m, l.cfg.WorkerIndex, l.cfg.WorkerCount)
		case accounts.DiscriminatorControl:
			c, err := accounts.DecodeControl(data)
			if err != nil {
				continue
			}
			l.table.ApplyControlUpdate(got.Value.Pubkey, c, l.cfg.WorkerIndex, l.cfg.WorkerCount)
		}
	}
}

// refreshLoop rebuilds the table wholesale on the configured interval to
// heal any updates a dropped subscription missed (§4.3.2).
func (l *Liquidator) refreshLoop(ctx context.Context) error {
	ticker := chain.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fresh, err := Refresh(ctx, l.app, l.cfg.WorkerIndex, l.cfg.WorkerCount)
			if err != nil {
				l.app.Logger.Warn("liquidator: periodic refresh failed", zap.Error(err))
				continue
			}
			l.table.Replace(fresh)
		}
	}
}

// evalLoop copies the Margin shard under lock, releases it, then
// evaluates every account concurrently (§5).
func (l *Liquidator) evalLoop(ctx context.Context) error {
	ticker := chain.NewTicker(l.cfg.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.evalOnce(ctx)
		}
	}
}

func (l *Liquidator) evalOnce(ctx context.Context) {
	snapshot := l.table.Snapshot()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.EvalConcurrency)
	for key, margin := range snapshot {
		key, margin := key, margin
		g.Go(func() error {
			if err := l.evaluate(ctx, key, margin); err != nil {
				l.app.Logger.Warn("liquidator: evaluation failed",
					zap.Stringer("margin", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
