package liquidator

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
	"github.com/zo-protocol/zo-keeper-go/internal/chain"
)

// SpotMarketInfo is a swappable collateral's Serum spot market snapshot
// plus its deterministically-derived vault-signer PDA (§4.3.2).
type SpotMarketInfo struct {
	Market       solana.PublicKey
	Bids, Asks   solana.PublicKey
	VaultSigner  solana.PublicKey
	CoinLotSize  uint64
	PcLotSize    uint64
}

// AccountTable is the continuously-refreshed mirror of this worker's
// shard of Margin and Control accounts, plus market/spot snapshots (§3,
// §4.3.2). All mutation serializes through a single coarse lock (§5).
type AccountTable struct {
	mu sync.Mutex

	MarginTable  map[solana.PublicKey]*accounts.Margin
	ControlTable map[solana.PublicKey]*accounts.Control
	MarketState  map[int]*accounts.DexMarket
	SpotMarkets  map[int]*SpotMarketInfo

	PayerMargin  *accounts.Margin
	PayerControl *accounts.Control
}

// NewAccountTable returns an empty table ready for LoadInitial.
func NewAccountTable() *AccountTable {
	return &AccountTable{
		MarginTable:  map[solana.PublicKey]*accounts.Margin{},
		ControlTable: map[solana.PublicKey]*accounts.Control{},
		MarketState:  map[int]*accounts.DexMarket{},
		SpotMarkets:  map[int]*SpotMarketInfo{},
	}
}

// LoadInitial performs the §4.3.2 full scan: one GetProgramAccounts call
// per account type, filtered by discriminator only (no size filter),
// shard-filtered into the table; plus the live dex-market snapshots.
// SpotMarkets, PayerMargin and PayerControl are left empty.
func LoadInitial(ctx context.Context, app *chain.AppState, workerIndex, workerCount int) (*AccountTable, error) {
	t := NewAccountTable()

	margins, err := app.RPC.GetProgramAccountsWithOpts(ctx, app.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(accounts.DiscriminatorMargin[:])}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getProgramAccounts margins: %w", err)
	}
	for _, item := range margins {
		if item == nil || item.Account == nil {
			continue
		}
		m, err := accounts.DecodeMargin(item.Account.Data.GetBinary())
		if err != nil {
			app.Logger.Warn("liquidator: skipping undecodable margin", zap.Stringer("pubkey", item.Pubkey), zap.Error(err))
			continue
		}
		if !Owns(m.ControlKey, workerIndex, workerCount) {
			continue
		}
		t.MarginTable[item.Pubkey] = m
	}

	controls, err := app.RPC.GetProgramAccountsWithOpts(ctx, app.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(accounts.DiscriminatorControl[:])}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getProgramAccounts controls: %w", err)
	}
	for _, item := range controls {
		if item == nil || item.Account == nil {
			continue
		}
		c, err := accounts.DecodeControl(item.Account.Data.GetBinary())
		if err != nil {
			app.Logger.Warn("liquidator: skipping undecodable control", zap.Stringer("pubkey", item.Pubkey), zap.Error(err))
			continue
		}
		if !Owns(item.Pubkey, workerIndex, workerCount) {
			continue
		}
		t.ControlTable[item.Pubkey] = c
	}

	dexMarkets, err := app.LoadDexMarkets(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	t.MarketState = dexMarkets

	return t, nil
}

// Refresh rebuilds the entire table from scratch to heal from any dropped
// subscription events (§4.3.2's ~5 min default periodic refresh).
func Refresh(ctx context.Context, app *chain.AppState, workerIndex, workerCount int) (*AccountTable, error) {
	return LoadInitial(ctx, app, workerIndex, workerCount)
}

// ApplyMarginUpdate applies a streamed Margin account update under the
// table's coarse lock, discarding it if outside this worker's shard.
func (t *AccountTable) ApplyMarginUpdate(pubkey solana.PublicKey, m *accounts.Margin, workerIndex, workerCount int) {
	if !Owns(m.ControlKey, workerIndex, workerCount) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.MarginTable[pubkey] = m
}

// ApplyControlUpdate applies a streamed Control account update.
func (t *AccountTable) ApplyControlUpdate(pubkey solana.PublicKey, c *accounts.Control, workerIndex, workerCount int) {
	if !Owns(pubkey, workerIndex, workerCount) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ControlTable[pubkey] = c
}

// Snapshot copies the current Margin shard under lock, then releases it
// before the caller spawns per-account evaluation (§5: "Evaluation copies
// the shard of Margin entries under the lock, then releases it").
func (t *AccountTable) Snapshot() map[solana.PublicKey]*accounts.Margin {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[solana.PublicKey]*accounts.Margin, len(t.MarginTable))
	for k, v := range t.MarginTable {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Control looks up a Control by key under lock.
func (t *AccountTable) Control(key solana.PublicKey) (*accounts.Control, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.ControlTable[key]
	return c, ok
}

// Replace swaps in a freshly rebuilt table's contents wholesale, used
// after a periodic Refresh.
func (t *AccountTable) Replace(fresh *AccountTable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.MarginTable = fresh.MarginTable
	t.ControlTable = fresh.ControlTable
	t.MarketState = fresh.MarketState
	t.SpotMarkets = fresh.SpotMarkets
	t.PayerMargin = fresh.PayerMargin
	t.PayerControl = fresh.PayerControl
}
