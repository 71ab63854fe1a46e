package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/zo-protocol/zo-keeper-go/internal/accounts"
)

// AppState is the process-wide, initialize-once handle every worker is
// built against: connection, payer identity, and a point-in-time
// State/Cache snapshot taken at startup (§3, §9 "Global mutable state").
// Nothing in this struct is mutated after New returns.
type AppState struct {
	RPC    *rpc.Client
	WS     func(ctx context.Context) (*ws.Client, error)
	Payer  solana.PrivateKey
	Logger *zap.Logger

	ProgramID  solana.PublicKey
	DexProgram solana.PublicKey

	StatePubkey  solana.PublicKey
	CachePubkey  solana.PublicKey
	StateSigner  solana.PublicKey

	State *accounts.State
	Cache *accounts.Cache
}

// Config bundles everything New needs to assemble an AppState.
type Config struct {
	RPCURL, WSURL        string
	Payer                solana.PrivateKey
	ProgramID, DexProgram solana.PublicKey
	StatePubkey, CachePubkey solana.PublicKey
	OracleCount          int
	Commitment           rpc.CommitmentType
	Logger               *zap.Logger
}

// New builds an AppState: fetches State and Cache, derives the state
// signer, and fails fast on a signer_nonce mismatch (§9: "failing fast is
// intentional").
func New(ctx context.Context, cfg Config) (*AppState, error) {
	client := rpc.New(cfg.RPCURL)

	stateInfo, err := client.GetAccountInfoWithOpts(ctx, cfg.StatePubkey, &rpc.GetAccountInfoOpts{Commitment: cfg.Commitment})
	if err != nil {
		return nil, fmt.Errorf("fetch state account: %w", err)
	}
	state, err := accounts.DecodeState(stateInfo.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode state account: %w", err)
	}

	cacheInfo, err := client.GetAccountInfoWithOpts(ctx, cfg.CachePubkey, &rpc.GetAccountInfoOpts{Commitment: cfg.Commitment})
	if err != nil {
		return nil, fmt.Errorf("fetch cache account: %w", err)
	}
	cache, err := accounts.DecodeCache(cacheInfo.Value.Data.GetBinary(), cfg.OracleCount)
	if err != nil {
		return nil, fmt.Errorf("decode cache account: %w", err)
	}

	signer, err := StateSignerPDA(cfg.ProgramID, cfg.StatePubkey, state.SignerNonce)
	if err != nil {
		return nil, fmt.Errorf("validate state signer: %w", err)
	}

	wsURL := cfg.WSURL
	return &AppState{
		RPC:         client,
		WS:          func(ctx context.Context) (*ws.Client, error) { return ws.Connect(ctx, wsURL) },
		Payer:       cfg.Payer,
		Logger:      cfg.Logger,
		ProgramID:   cfg.ProgramID,
		DexProgram:  cfg.DexProgram,
		StatePubkey: cfg.StatePubkey,
		CachePubkey: cfg.CachePubkey,
		StateSigner: signer,
		State:       state,
		Cache:       cache,
	}, nil
}

// IterMarkets yields the index of every live perp market (§3: "Filtered: a
// market is 'live' iff dex_market != default").
func (a *AppState) IterMarkets() []int {
	return a.State.LiveMarkets()
}

// IterOracles yields every oracle symbol currently cached.
func (a *AppState) IterOracles() []accounts.Symbol {
	out := make([]accounts.Symbol, 0, len(a.Cache.Oracles))
	for _, o := range a.Cache.Oracles {
		out = append(out, o.Symbol)
	}
	return out
}

// FetchCache re-fetches and decodes the Cache account fresh, since the
// Cache snapshot taken in New is a point-in-time read, not a live view
// (§9: "Global mutable state"). Pollers that need current oracle, mark,
// or funding data call this instead of reading AppState.Cache.
func (a *AppState) FetchCache(ctx context.Context, commitment rpc.CommitmentType) (*accounts.Cache, error) {
	info, err := a.RPC.GetAccountInfoWithOpts(ctx, a.CachePubkey, &rpc.GetAccountInfoOpts{Commitment: commitment})
	if err != nil {
		return nil, fmt.Errorf("fetch cache account: %w", err)
	}
	cache, err := accounts.DecodeCache(info.Value.Data.GetBinary(), len(a.Cache.Oracles))
	if err != nil {
		return nil, fmt.Errorf("decode cache account: %w", err)
	}
	return cache, nil
}

// LoadDexMarkets fetches and decodes every live perp market's DexMarket
// account, index-aligned to state.perp_markets.
func (a *AppState) LoadDexMarkets(ctx context.Context, commitment rpc.CommitmentType) (map[int]*accounts.DexMarket, error) {
	out := make(map[int]*accounts.DexMarket)
	for _, idx := range a.IterMarkets() {
		pm := a.State.PerpMarkets[idx]
		info, err := a.RPC.GetAccountInfoWithOpts(ctx, pm.DexMarket, &rpc.GetAccountInfoOpts{Commitment: commitment})
		if err != nil {
			return nil, fmt.Errorf("fetch dex market %s (%s): %w", pm.Symbol, pm.DexMarket, err)
		}
		dm, err := accounts.DecodeDexMarket(info.Value.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("decode dex market %s: %w", pm.Symbol, err)
		}
		out[idx] = dm
	}
	return out, nil
}
