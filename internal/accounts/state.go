package accounts

import "github.com/gagliardetto/solana-go"

// CollateralInfo is one slot of State.Collaterals.
type CollateralInfo struct {
	Mint   solana.PublicKey
	Weight uint16 // basis-1000 weight; effective weight = Weight/1000
	LiqFee uint16 // basis-1000 liquidation fee; effective fee = LiqFee/1000
}

// State is the program's top-level configuration account.
type State struct {
	SignerNonce      uint8
	Admin            solana.PublicKey
	Cache            solana.PublicKey
	TotalCollaterals uint8
	TotalMarkets     uint8
	Collaterals      [MaxCollaterals]CollateralInfo
	PerpMarkets      [MaxMarkets]PerpMarketInfo
}

// DecodeState casts raw account data into a State.
func DecodeState(data []byte) (*State, error) {
	c := newCursor(data)
	d := c.discriminator()
	if d != DiscriminatorState {
		return nil, &ErrWrongDiscriminator{Want: DiscriminatorState, Got: d}
	}
	s := &State{
		SignerNonce:      c.u8(),
		Admin:            c.pubkey(),
		Cache:            c.pubkey(),
		TotalCollaterals: c.u8(),
		TotalMarkets:     c.u8(),
	}
	for i := range s.Collaterals {
		s.Collaterals[i] = CollateralInfo{
			Mint:   c.pubkey(),
			Weight: c.u16(),
			LiqFee: c.u16(),
		}
	}
	for i := range s.PerpMarkets {
		symbol := fixedString(c.bytes(symbolBytes))
		dexMarket := c.pubkey()
		oracleSymbol := fixedString(c.bytes(symbolBytes))
		assetDecimals := c.u8()
		perpType := PerpType(c.u8())
		baseIMF := c.u16()
		var strike *uint64
		if v := c.u64(); perpType == PerpTypeSquare {
			strike = &v
		}
		s.PerpMarkets[i] = PerpMarketInfo{
			Symbol:        symbol,
			DexMarket:     dexMarket,
			OracleSymbol:  oracleSymbol,
			AssetDecimals: assetDecimals,
			PerpType:      perpType,
			BaseIMF:       baseIMF,
			Strike:        strike,
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return s, nil
}

// LiveMarkets returns indices of every perp market with dex_market set.
func (s *State) LiveMarkets() []int {
	out := make([]int, 0, s.TotalMarkets)
	for i := 0; i < int(s.TotalMarkets) && i < len(s.PerpMarkets); i++ {
		if s.PerpMarkets[i].IsLive() {
			out = append(out, i)
		}
	}
	return out
}
