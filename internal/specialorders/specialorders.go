// Package specialorders implements the conditional-order trigger
// subsystem: orders that execute once the cached mark price crosses a
// configured threshold, independent of the main order book.
package specialorders

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
	"github.com/zo-protocol/zo-keeper-go/internal/fixedq"
)

// Config carries the poll interval the listener uses to scan for
// triggered orders.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig polls every two seconds, fast enough that a triggered
// order executes within one mark-price cache refresh.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second}
}

// Trigger is one pending conditional order: execute_special_order fires
// once the market's mark price crosses Threshold in the direction given
// by Above.
type Trigger struct {
	ID        uint64
	Authority solana.PublicKey
	MarketIdx int
	Threshold fixedq.Q
	Above     bool // true: trigger when mark >= threshold; false: mark <= threshold
}

// SpecialOrders owns the listener/executer pair.
type SpecialOrders struct {
	app *chain.AppState
	cfg Config
	d   *chain.Dispatcher

	ready chan Trigger

	mu      sync.Mutex
	pending []Trigger
}

// New builds a SpecialOrders worker.
func New(app *chain.AppState, cfg Config, dispatcher *chain.Dispatcher) *SpecialOrders {
	return &SpecialOrders{app: app, cfg: cfg, d: dispatcher, ready: make(chan Trigger, 64)}
}

// Run joins the listener (which polls pending triggers against the
// cached mark price) and the executer (which dispatches
// execute_special_order for every trigger the listener hands it).
func (s *SpecialOrders) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.listener(ctx) })
	g.Go(func() error { return s.executer(ctx) })
	return g.Wait()
}

// listener polls the cached mark price on an interval and pushes every
// newly-crossed trigger onto the ready channel. The pending trigger set
// is the one built up in memory through Register.
func (s *SpecialOrders) listener(ctx context.Context) error {
	ticker := chain.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cache, err := s.app.FetchCache(ctx, rpc.CommitmentConfirmed)
			if err != nil {
				s.app.Logger.Warn("specialorders: fetch cache failed", zap.Error(err))
				continue
			}
			s.scan(ctx, cache)
		}
	}
}

// scan is a placeholder for the on-chain pending-trigger account layout,
// which the distilled spec does not define a byte format for; it
// evaluates whatever pending triggers the caller has registered via
// Register for now, matching the trigger.rs listener/executer split
// without requiring the full SpecialOrders account decoder.
func (s *SpecialOrders) scan(ctx context.Context, cache *accounts.Cache) {
	s.mu.Lock()
	pending := make([]Trigger, len(s.pending))
	copy(pending, s.pending)
	s.mu.Unlock()

	fired := map[uint64]bool{}
	for _, t := range pending {
		if t.MarketIdx >= len(cache.MarkPrices) {
			continue
		}
		pm := s.app.State.PerpMarkets[t.MarketIdx]
		mark := cache.MarkPrices[t.MarketIdx].MarkTwap(pm.AssetDecimals)
		crossed := t.Above && mark.GreaterEq(t.Threshold) || !t.Above && t.Threshold.GreaterEq(mark)
		if crossed {
			select {
			case s.ready <- t:
				fired[t.ID] = true
			default:
				s.app.Logger.Warn("specialorders: ready channel full, dropping trigger", zap.Uint64("id", t.ID))
			}
		}
	}
	if len(fired) == 0 {
		return
	}
	s.mu.Lock()
	kept := s.pending[:0]
	for _, t := range s.pending {
		if !fired[t.ID] {
			kept = append(kept, t)
		}
	}
	s.pending = kept
	s.mu.Unlock()
}

// Register adds a pending trigger for the listener to evaluate.
func (s *SpecialOrders) Register(t Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, t)
}

// executer dispatches execute_special_order for every trigger the
// listener hands it, caching each authority's derived margin PDA since
// resolving PDAs is pure but non-trivially expensive in a tight loop.
func (s *SpecialOrders) executer(ctx context.Context) error {
	pdaCache := map[solana.PublicKey]solana.PublicKey{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-s.ready:
			margin, ok := pdaCache[t.Authority]
			if !ok {
				var err error
				margin, _, err = chain.MarginPDA(s.app.ProgramID, t.Authority, s.app.StatePubkey)
				if err != nil {
					s.app.Logger.Warn("specialorders: derive margin pda failed", zap.Error(err))
					continue
				}
				pdaCache[t.Authority] = margin
			}

			if err := s.dispatchExecute(ctx, t, margin); err != nil {
				s.app.Logger.Warn("specialorders: execute failed", zap.Uint64("id", t.ID), zap.Error(err))
			}
		}
	}
}

func (s *SpecialOrders) dispatchExecute(ctx context.Context, t Trigger, margin solana.PublicKey) error {
	data := make([]byte, 8+8)
	copy(data, accounts.IxExecuteSpecialOrder[:])
	for i := 0; i < 8; i++ {
		data[8+i] = byte(t.ID >> (8 * uint(i)))
	}
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(s.app.StatePubkey, false, false),
		solana.NewAccountMeta(s.app.CachePubkey, false, false),
		solana.NewAccountMeta(margin, true, false),
		solana.NewAccountMeta(s.app.Payer.PublicKey(), true, true),
	}
	ix := solana.NewInstruction(s.app.ProgramID, metas, data)
	_, err := chain.Dispatch(ctx, s.app.RPC, s.app.Payer, []solana.Instruction{ix})
	return err
}
