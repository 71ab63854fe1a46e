package accounts

import "github.com/zo-protocol/zo-keeper-go/internal/fixedq"

// Symbol is a fixed-width oracle/market ticker, e.g. "BTC-PERP".
type Symbol = string

const symbolBytes = 24

// OraclePrice is one cached oracle observation.
type OraclePrice struct {
	Symbol Symbol
	Price  fixedq.Q
}

// MarkTwapSample is one mark-price TWAP window sample for a perp market.
type MarkTwapSample struct {
	Open, Close, High, Low   fixedq.Q
	LastSampleStartTime int64
}

// BorrowCacheEntry carries the supply/borrow multipliers for one
// collateral index (invariant 3 of §3).
type BorrowCacheEntry struct {
	SupplyMultiplier fixedq.Q
	BorrowMultiplier fixedq.Q
}

// Cache is the program's oracle/mark/borrow/funding snapshot account.
type Cache struct {
	Oracles      []OraclePrice
	MarkPrices   [MaxMarkets]MarkTwapSample
	BorrowCache  [MaxCollaterals]BorrowCacheEntry
	FundingCache [MaxMarkets]fixedq.Q
}

// DecodeCache casts raw account data into a Cache.
func DecodeCache(data []byte, oracleCount int) (*Cache, error) {
	c := newCursor(data)
	d := c.discriminator()
	if d != DiscriminatorCache {
		return nil, &ErrWrongDiscriminator{Want: DiscriminatorCache, Got: d}
	}
	cache := &Cache{Oracles: make([]OraclePrice, 0, oracleCount)}
	for i := 0; i < oracleCount; i++ {
		sym := fixedString(c.bytes(symbolBytes))
		price := fixedq.FromBits(bigFromLEBytes(c.i128()))
		cache.Oracles = append(cache.Oracles, OraclePrice{Symbol: sym, Price: price})
	}
	for i := range cache.MarkPrices {
		cache.MarkPrices[i] = MarkTwapSample{
			Open:                fixedq.FromBits(bigFromLEBytes(c.i128())),
			Close:               fixedq.FromBits(bigFromLEBytes(c.i128())),
			High:                fixedq.FromBits(bigFromLEBytes(c.i128())),
			Low:                 fixedq.FromBits(bigFromLEBytes(c.i128())),
			LastSampleStartTime: c.i64(),
		}
	}
	for i := range cache.BorrowCache {
		cache.BorrowCache[i] = BorrowCacheEntry{
			SupplyMultiplier: fixedq.FromBits(bigFromLEBytes(c.i128())),
			BorrowMultiplier: fixedq.FromBits(bigFromLEBytes(c.i128())),
		}
	}
	for i := range cache.FundingCache {
		cache.FundingCache[i] = fixedq.FromBits(bigFromLEBytes(c.i128()))
	}
	if c.err != nil {
		return nil, c.err
	}
	return cache, nil
}

// OracleBySymbol looks up the most recently decoded oracle price.
func (c *Cache) OracleBySymbol(symbol Symbol) (fixedq.Q, bool) {
	for _, o := range c.Oracles {
		if o.Symbol == symbol {
			return o.Price, true
		}
	}
	return fixedq.Zero(), false
}

// MarkTwap computes the §4.5 poll_mark_twap formula:
// (open+close+high+low)/4 * 10^(assetDecimals-6).
func (s MarkTwapSample) MarkTwap(assetDecimals uint8) fixedq.Q {
	sum := s.Open.Add(s.Close).Add(s.High).Add(s.Low)
	avg := sum.Div(fixedq.FromInt64(4))
	shift := int64(assetDecimals) - 6
	if shift == 0 {
		return avg
	}
	scale := fixedq.FromFloat64(pow10(shift))
	return avg.Mul(scale)
}

func pow10(exp int64) float64 {
	v := 1.0
	if exp >= 0 {
		for i := int64(0); i < exp; i++ {
			v *= 10
		}
		return v
	}
	for i := int64(0); i < -exp; i++ {
		v /= 10
	}
	return v
}
