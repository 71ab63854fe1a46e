// Package consumer implements the event-queue consumer: one independent
// loop per live perp market, batching consume_events/crank_pnl dispatch
// with hysteresis and fingerprint-based de-duplication (§4.4).
package consumer

import (
	"context"
	"encoding/binary"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// Config carries the §4.4/§6 tunables.
type Config struct {
	ToConsume      int
	MaxWait        time.Duration
	MaxQueueLength int
	TickInterval   time.Duration
}

// DefaultConfig returns the §4.4 defaults.
func DefaultConfig() Config {
	return Config{
		ToConsume:      12,
		MaxWait:        60 * time.Second,
		MaxQueueLength: 1,
		TickInterval:   250 * time.Millisecond,
	}
}

// Consumer owns one loop per live perp market.
type Consumer struct {
	app *chain.AppState
	cfg Config
	d   *chain.Dispatcher
}

// New builds a Consumer against the given AppState.
func New(app *chain.AppState, cfg Config, dispatcher *chain.Dispatcher) *Consumer {
	return &Consumer{app: app, cfg: cfg, d: dispatcher}
}

// Run starts one independent goroutine per live market; markets never
// interact (§5: "Across markets, loops are independent").
func (c *Consumer) Run(ctx context.Context) error {
	dexMarkets, err := c.app.LoadDexMarkets(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for idx, dm := range dexMarkets {
		idx, dm := idx, dm
		loop := &marketLoop{
			app:       c.app,
			cfg:       c.cfg,
			d:         c.d,
			marketIdx: idx,
			dexMarket: dm,
			lastHead:  accounts.SentinelHead,
			pdaCache:  map[solana.PublicKey]pdaPair{},
		}
		g.Go(func() error { return loop.run(ctx) })
	}
	return g.Wait()
}

type pdaPair struct {
	openOrders solana.PublicKey
	margin     solana.PublicKey
}

type marketLoop struct {
	app       *chain.AppState
	cfg       Config
	d         *chain.Dispatcher
	marketIdx int
	dexMarket *accounts.DexMarket

	lastHead      uint64
	lastCrankedAt time.Time
	pdaCache      map[solana.PublicKey]pdaPair
}

func (m *marketLoop) run(ctx context.Context) error {
	ticker := chain.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.tick(ctx); err != nil {
				m.app.Logger.Warn("consumer: tick failed",
					zap.String("symbol", m.app.State.PerpMarkets[m.marketIdx].Symbol), zap.Error(err))
			}
		}
	}
}

func (m *marketLoop) tick(ctx context.Context) error {
	info, err := m.app.RPC.GetAccountInfoWithOpts(ctx, m.dexMarket.EventQ, &rpc.GetAccountInfoOpts{Commitment: rpc.CommitmentConfirmed})
	if err != nil {
		return err
	}
	data := info.Value.Data.GetBinary()

	header, err := accounts.DecodeEventQueueHeader(data)
	if err != nil {
		return err
	}

	// Step 2: empty queue skips without dispatch (S1).
	if header.Count == 0 {
		return nil
	}

	now := time.Now()
	// Step 3: head unchanged and within max_wait of the last crank.
	if header.Head == m.lastHead && now.Sub(m.lastCrankedAt) < m.cfg.MaxWait {
		return nil
	}
	// Step 4: below the hysteresis threshold and still within max_wait.
	elapsed := now.Sub(m.lastCrankedAt)
	if elapsed < m.cfg.MaxWait && int(header.Count) < m.cfg.MaxQueueLength {
		return nil
	}

	events, err := accounts.DecodeEventQueueEvents(data, header.Count)
	if err != nil {
		return err
	}

	controls := dedupCapSorted(events, m.cfg.ToConsume)
	if len(controls) == 0 {
		return nil
	}

	orders := make([]solana.PublicKey, len(controls))
	for i, ctrl := range controls {
		pair, ok := m.pdaCache[ctrl]
		if !ok {
			oo, _, err := chain.OpenOrdersPDA(m.app.DexProgram, ctrl, m.dexMarket.OwnAddress)
			if err != nil {
				return err
			}
			authority, err := m.controlAuthority(ctx, ctrl)
			if err != nil {
				return err
			}
			margin, _, err := chain.MarginPDA(m.app.ProgramID, authority, m.app.StatePubkey)
			if err != nil {
				return err
			}
			pair = pdaPair{openOrders: oo, margin: margin}
			m.pdaCache[ctrl] = pair
		}
		orders[i] = pair.openOrders
	}

	err = m.d.Run(ctx, func() error {
		return m.dispatchConsumeAndCrank(ctx, controls, orders)
	})
	if err != nil {
		return err
	}

	m.lastHead = header.Head
	m.lastCrankedAt = now
	return nil
}

// controlAuthority fetches and decodes a Control account to resolve its
// authority, the field margin_pda derivation needs. Resolving a PDA is
// pure-computational but non-trivially expensive in a tight consumer
// loop (§9), so the caller memoizes the resulting pair per Control for
// the life of the loop; this fetch only happens once per never-before-seen
// control.
func (m *marketLoop) controlAuthority(ctx context.Context, ctrl solana.PublicKey) (solana.PublicKey, error) {
	info, err := m.app.RPC.GetAccountInfoWithOpts(ctx, ctrl, &rpc.GetAccountInfoOpts{Commitment: rpc.CommitmentConfirmed})
	if err != nil {
		return solana.PublicKey{}, err
	}
	control, err := accounts.DecodeControl(info.Value.Data.GetBinary())
	if err != nil {
		return solana.PublicKey{}, err
	}
	return control.Authority, nil
}

func (m *marketLoop) dispatchConsumeAndCrank(ctx context.Context, controls, orders []solana.PublicKey) error {
	consumeAccounts := make(solana.AccountMetaSlice, 0, len(controls)+len(orders))
	for _, c := range controls {
		consumeAccounts = append(consumeAccounts, solana.NewAccountMeta(c, true, false))
	}
	for _, o := range orders {
		consumeAccounts = append(consumeAccounts, solana.NewAccountMeta(o, false, false))
	}
	limitData := make([]byte, 8)
	binary.LittleEndian.PutUint64(limitData, uint64(m.cfg.ToConsume))
	consumeIx := solana.NewInstruction(m.app.DexProgram, consumeAccounts, append(append([]byte{}, accounts.IxConsumeEvents[:]...), limitData...))

	if _, err := chain.Dispatch(ctx, m.app.RPC, m.app.Payer, []solana.Instruction{consumeIx}); err != nil {
		return err
	}

	// crank_pnl split first-half/second-half to stay under the
	// transaction account-list limit; the list is always split in two,
	// whatever its length.
	combined := append(append([]solana.PublicKey{}, controls...), orders...)
	mid := len(combined) / 2
	if mid == 0 {
		return nil
	}
	if err := m.crankPnl(ctx, combined[:mid]); err != nil {
		return err
	}
	return m.crankPnl(ctx, combined[mid:])
}

func (m *marketLoop) crankPnl(ctx context.Context, keys []solana.PublicKey) error {
	if len(keys) == 0 {
		return nil
	}
	accountsMeta := make(solana.AccountMetaSlice, 0, len(keys))
	for _, k := range keys {
		accountsMeta = append(accountsMeta, solana.NewAccountMeta(k, true, false))
	}
	ix := solana.NewInstruction(m.app.DexProgram, accountsMeta, append([]byte{}, accounts.IxCrankPnl[:]...))
	_, err := chain.Dispatch(ctx, m.app.RPC, m.app.Payer, []solana.Instruction{ix})
	return err
}

// dedupCapSorted builds the sorted-unique-capped control set of §4.4 step
// 5 and the S2 seed test: sort key is the pubkey's u64[4] representation,
// giving stable ordering independent of how the event set is iterated.
func dedupCapSorted(events []accounts.FillEvent, cap_ int) []solana.PublicKey {
	seen := map[solana.PublicKey]bool{}
	unique := make([]solana.PublicKey, 0, len(events))
	for _, ev := range events {
		if seen[ev.Control] {
			continue
		}
		seen[ev.Control] = true
		unique = append(unique, ev.Control)
	}
	sort.Slice(unique, func(i, j int) bool {
		for w := 0; w < 32; w += 8 {
			x := binary.LittleEndian.Uint64(unique[i][w : w+8])
			y := binary.LittleEndian.Uint64(unique[j][w : w+8])
			if x != y {
				return x < y
			}
		}
		return false
	})
	if cap_ > 0 && len(unique) > cap_ {
		unique = unique[:cap_]
	}
	return unique
}
