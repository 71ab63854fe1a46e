// Package accounts decodes the exchange program's on-chain account types
// (State, Cache, Margin, Control, DexMarket) and exposes the fixed
// dimensions (MAX_COLLATERALS, MAX_MARKETS) the rest of the keeper is
// written against.
package accounts

import "crypto/sha256"

// MaxCollaterals and MaxMarkets bound the dense arrays carried on Margin
// and Control accounts; both are protocol constants, not runtime-derived.
const (
	MaxCollaterals = 25
	MaxMarkets     = 50
)

// Discriminator is the 8-byte tag every account type is prefixed with,
// letting a zero-copy cast be guarded by an equality check before the
// remaining bytes are trusted.
type Discriminator [8]byte

// accountDiscriminator reproduces the Anchor account-discriminator
// convention (sha256("account:"+TypeName")[:8]), the same hashing scheme
// this corpus uses for instruction discriminators.
func accountDiscriminator(typeName string) Discriminator {
	h := sha256.Sum256([]byte("account:" + typeName))
	var d Discriminator
	copy(d[:], h[:8])
	return d
}

var (
	DiscriminatorState     = accountDiscriminator("State")
	DiscriminatorCache     = accountDiscriminator("Cache")
	DiscriminatorMargin    = accountDiscriminator("Margin")
	DiscriminatorControl   = accountDiscriminator("Control")
	DiscriminatorDexMarket = accountDiscriminator("DexMarket")
)

// instructionDiscriminator reproduces the Anchor instruction-discriminator
// convention (sha256("global:"+name)[:8]).
func instructionDiscriminator(name string) Discriminator {
	h := sha256.Sum256([]byte("global:" + name))
	var d Discriminator
	copy(d[:], h[:8])
	return d
}

// Instruction name → discriminator table for every instruction this
// keeper produces (§6 of the spec).
var (
	IxCacheOracle               = instructionDiscriminator("cache_oracle")
	IxCacheInterestRates        = instructionDiscriminator("cache_interest_rates")
	IxUpdatePerpFunding         = instructionDiscriminator("update_perp_funding")
	IxConsumeEvents             = instructionDiscriminator("consume_events")
	IxCrankPnl                  = instructionDiscriminator("crank_pnl")
	IxForceCancelAllPerpOrders  = instructionDiscriminator("force_cancel_all_perp_orders")
	IxLiquidatePerpPosition     = instructionDiscriminator("liquidate_perp_position")
	IxLiquidateSpotPosition     = instructionDiscriminator("liquidate_spot_position")
	IxSettleBankruptcy          = instructionDiscriminator("settle_bankruptcy")
	IxSwap                      = instructionDiscriminator("swap")
	IxPlacePerpOrder            = instructionDiscriminator("place_perp_order")
	IxExecuteSpecialOrder       = instructionDiscriminator("execute_special_order")
)
