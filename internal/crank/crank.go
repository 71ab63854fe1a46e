// Package crank implements the periodic maintenance-transaction dispatcher:
// oracle caching, interest-rate caching, and perpetual funding updates
// (§4.2). Each stream is independently scheduled and fire-and-forget onto
// the blocking pool — there is no back-pressure between periods and no
// persistent state to reconcile on failure.
package crank

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// Config carries the tunables of §4.2 and §6's `crank` subcommand flags.
type Config struct {
	CacheOracleInterval   time.Duration
	CacheInterestInterval time.Duration
	UpdateFundingInterval time.Duration
	OracleChunkSize       int
	FundingChunkSize      int

	// OracleSource maps an oracle symbol to its read-only source account,
	// e.g. a Pyth price-update account.
	OracleSource map[accounts.Symbol]solana.PublicKey
}

// DefaultConfig returns the §4.2 interval/chunk defaults.
func DefaultConfig() Config {
	return Config{
		CacheOracleInterval:   2500 * time.Millisecond,
		CacheInterestInterval: 5 * time.Second,
		UpdateFundingInterval: 15 * time.Second,
		OracleChunkSize:       28,
		FundingChunkSize:      4,
		OracleSource:          map[accounts.Symbol]solana.PublicKey{},
	}
}

// Crank owns the three independent periodic streams.
type Crank struct {
	app *chain.AppState
	cfg Config
	d   *chain.Dispatcher
}

// New builds a Crank against the given AppState.
func New(app *chain.AppState, cfg Config, dispatcher *chain.Dispatcher) *Crank {
	return &Crank{app: app, cfg: cfg, d: dispatcher}
}

// Run joins the three streams, matching the source's
// `futures::join!(cache_oracle_loop, cache_interest_loop,
// update_funding_loop)` — the Go idiom for that structured-concurrency
// join is an errgroup of three never-returning loops.
func (c *Crank) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.cacheOracleLoop(ctx) })
	g.Go(func() error { return c.cacheInterestLoop(ctx) })
	g.Go(func() error { return c.updateFundingLoop(ctx) })
	return g.Wait()
}

func (c *Crank) cacheOracleLoop(ctx context.Context) error {
	symbols := c.app.IterOracles()
	chunks := chunkSymbols(symbols, c.cfg.OracleChunkSize)

	ticker := chain.NewTicker(c.cfg.CacheOracleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, chunk := range chunks {
				chunk := chunk
				c.d.Go(func() { c.dispatchCacheOracle(ctx, chunk) })
			}
		}
	}
}

func (c *Crank) dispatchCacheOracle(ctx context.Context, symbols []accounts.Symbol) {
	units := uint32(1_400_000 / max(1, len(symbols)))
	cuIx, err := chain.ComputeUnitLimitInstruction(units * uint32(len(symbols)))
	if err != nil {
		c.app.Logger.Warn("crank: build compute budget ix failed", zap.Error(err))
		return
	}

	accountsMeta := make(solana.AccountMetaSlice, 0, len(symbols)*2)
	inChunk := make(map[accounts.Symbol]bool, len(symbols))
	for _, sym := range symbols {
		inChunk[sym] = true
		if src, ok := c.cfg.OracleSource[sym]; ok {
			accountsMeta = append(accountsMeta, solana.NewAccountMeta(src, false, false))
		}
	}
	for _, idx := range c.app.IterMarkets() {
		pm := c.app.State.PerpMarkets[idx]
		if inChunk[pm.OracleSymbol] {
			accountsMeta = append(accountsMeta, solana.NewAccountMeta(pm.DexMarket, true, false))
		}
	}

	ix := solana.NewInstruction(c.app.ProgramID, accountsMeta, append([]byte{}, accounts.IxCacheOracle[:]...))

	_, err = chain.Dispatch(ctx, c.app.RPC, c.app.Payer, []solana.Instruction{cuIx, ix})
	if err != nil {
		c.app.Logger.Warn("crank: cache_oracle dispatch failed", zap.Int("chunk_size", len(symbols)), zap.Error(err))
	}
}

func (c *Crank) cacheInterestLoop(ctx context.Context) error {
	ticker := chain.NewTicker(c.cfg.CacheInterestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.d.Go(func() { c.dispatchCacheInterest(ctx) })
		}
	}
}

func (c *Crank) dispatchCacheInterest(ctx context.Context) {
	total := int(c.app.State.TotalCollaterals)
	units := uint32(1_400_000 * total / accounts.MaxCollaterals)
	cuIx, err := chain.ComputeUnitLimitInstruction(units)
	if err != nil {
		c.app.Logger.Warn("crank: build compute budget ix failed", zap.Error(err))
		return
	}

	accountsMeta := make(solana.AccountMetaSlice, 0, total)
	for i := 0; i < total; i++ {
		accountsMeta = append(accountsMeta, solana.NewAccountMeta(c.app.State.Collaterals[i].Mint, false, false))
	}
	ix := solana.NewInstruction(c.app.ProgramID, accountsMeta, append([]byte{}, accounts.IxCacheInterestRates[:]...))

	if _, err := chain.Dispatch(ctx, c.app.RPC, c.app.Payer, []solana.Instruction{cuIx, ix}); err != nil {
		c.app.Logger.Warn("crank: cache_interest_rates dispatch failed", zap.Error(err))
	}
}

func (c *Crank) updateFundingLoop(ctx context.Context) error {
	dexMarkets, err := c.app.LoadDexMarkets(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return err
	}

	markets := c.app.IterMarkets()
	chunks := chunkInts(markets, c.cfg.FundingChunkSize)

	ticker := chain.NewTicker(c.cfg.UpdateFundingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, chunk := range chunks {
				chunk := chunk
				c.d.Go(func() { c.dispatchUpdateFunding(ctx, chunk, dexMarkets) })
			}
		}
	}
}

func (c *Crank) dispatchUpdateFunding(ctx context.Context, marketIdxs []int, dexMarkets map[int]*accounts.DexMarket) {
	units := uint32(1_400_000 / max(1, len(marketIdxs)))
	cuIx, err := chain.ComputeUnitLimitInstruction(units * uint32(len(marketIdxs)))
	if err != nil {
		c.app.Logger.Warn("crank: build compute budget ix failed", zap.Error(err))
		return
	}

	instructions := []solana.Instruction{cuIx}
	for _, idx := range marketIdxs {
		dm, ok := dexMarkets[idx]
		if !ok {
			continue
		}
		accountsMeta := solana.AccountMetaSlice{
			solana.NewAccountMeta(dm.OwnAddress, true, false),
			solana.NewAccountMeta(dm.Bids, false, false),
			solana.NewAccountMeta(dm.Asks, false, false),
		}
		instructions = append(instructions, solana.NewInstruction(c.app.DexProgram, accountsMeta, append([]byte{}, accounts.IxUpdatePerpFunding[:]...)))
	}

	if _, err := chain.Dispatch(ctx, c.app.RPC, c.app.Payer, instructions); err != nil {
		c.app.Logger.Warn("crank: update_perp_funding dispatch failed", zap.Ints("markets", marketIdxs), zap.Error(err))
	}
}

func chunkSymbols(xs []accounts.Symbol, size int) [][]accounts.Symbol {
	if size <= 0 {
		size = len(xs)
	}
	var out [][]accounts.Symbol
	for i := 0; i < len(xs); i += size {
		end := i + size
		if end > len(xs) {
			end = len(xs)
		}
		out = append(out, xs[i:end])
	}
	return out
}

func chunkInts(xs []int, size int) [][]int {
	if size <= 0 {
		size = len(xs)
	}
	var out [][]int
	for i := 0; i < len(xs); i += size {
		end := i + size
		if end > len(xs) {
			end = len(xs)
		}
		out = append(out, xs[i:end])
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
