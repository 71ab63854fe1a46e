package recorder

import "time"

// Trade is one matching-engine fill replayed from an event queue.
type Trade struct {
	Market    string    `bson:"market"`
	SeqNum    uint64    `bson:"seq_num"`
	IsBid     bool      `bson:"is_bid"`
	Maker     bool      `bson:"maker"`
	Control   string    `bson:"control"`
	Price     float64   `bson:"price"`
	Size      float64   `bson:"size"`
	Fee       float64   `bson:"fee"`
	Timestamp time.Time `bson:"timestamp"`
}

// Funding is one funding-index observation for a perp market; it is
// upserted keyed on market, so the collection holds one document per
// market with the latest observation.
type Funding struct {
	Market    string    `bson:"market"`
	Index     float64   `bson:"index"`
	Timestamp time.Time `bson:"timestamp"`
}

// RealizedPnl is a per-Control realized PnL snapshot taken after a
// crank_pnl dispatch.
type RealizedPnl struct {
	Control   string    `bson:"control"`
	Market    string    `bson:"market"`
	Amount    float64   `bson:"amount"`
	Timestamp time.Time `bson:"timestamp"`
}

// Liquidation records one liquidate_perp_position or liquidate_spot_position
// dispatch.
type Liquidation struct {
	Signature string    `bson:"signature"`
	Margin    string    `bson:"margin"`
	Market    string    `bson:"market,omitempty"`
	Qty       float64   `bson:"qty"`
	Timestamp time.Time `bson:"timestamp"`
}

// Bankruptcy records one settle_bankruptcy dispatch.
type Bankruptcy struct {
	Signature string    `bson:"signature"`
	Margin    string    `bson:"margin"`
	Timestamp time.Time `bson:"timestamp"`
}

// BalanceChange records a Margin collateral delta observed between two
// polls, for audit trail purposes.
type BalanceChange struct {
	Signature string    `bson:"signature"`
	Margin    string    `bson:"margin"`
	Mint      string    `bson:"mint"`
	Delta     float64   `bson:"delta"`
	Timestamp time.Time `bson:"timestamp"`
}

// Swap records a dex swap instruction's execution.
type Swap struct {
	Signature string    `bson:"signature"`
	Margin    string    `bson:"margin"`
	Timestamp time.Time `bson:"timestamp"`
}

// OpenInterest is a periodic per-market open-interest scan result.
type OpenInterest struct {
	Market    string    `bson:"market"`
	Long      float64   `bson:"long"`
	Short     float64   `bson:"short"`
	Timestamp time.Time `bson:"timestamp"`
}

// MarkTwap is a periodic mark-price TWAP sample.
type MarkTwap struct {
	Market    string    `bson:"market"`
	Twap      float64   `bson:"twap"`
	Timestamp time.Time `bson:"timestamp"`
}

// OtcFill records an off-book execute_special_order fill.
type OtcFill struct {
	Signature string    `bson:"signature"`
	Margin    string    `bson:"margin"`
	Timestamp time.Time `bson:"timestamp"`
}
