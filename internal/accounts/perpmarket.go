package accounts

import "github.com/gagliardetto/solana-go"

// PerpType distinguishes linear ("Future") from inverse/squared
// ("Square") perp markets; Square notional scales as oracle^2/strike.
type PerpType uint8

const (
	PerpTypeFuture PerpType = iota
	PerpTypeSquare
)

// PerpMarketInfo is one slot of State.PerpMarkets.
type PerpMarketInfo struct {
	Symbol        Symbol
	DexMarket     solana.PublicKey
	OracleSymbol  Symbol
	AssetDecimals uint8
	PerpType      PerpType
	BaseIMF       uint16
	Strike        *uint64 // nil unless PerpType == PerpTypeSquare
}

// IsLive reports whether this slot names a real market (§3: "a market is
// 'live' iff dex_market != default").
func (p PerpMarketInfo) IsLive() bool {
	return p.DexMarket != solana.PublicKey{}
}
