package liquidator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zo-protocol/zo-keeper-go/internal/fixedq"
)

func TestSizeClampsToMaxQty(t *testing.T) {
	qty, ok := Size(SpotSizeInputs{
		Shortfall:   fixedq.FromFloat64(1_000_000),
		AssetWeight: fixedq.FromFloat64(0.8),
		QuoteWeight: fixedq.FromInt64(1),
		AssetPrice:  fixedq.FromFloat64(20000),
		LiqFee:      fixedq.FromFloat64(0.02),
		MaxQty:      fixedq.FromFloat64(0.5),
	})
	assert.True(t, ok)
	assert.True(t, qty.LessThan(fixedq.FromFloat64(0.50001)))
}

func TestSizeNoTradeNearDegenerateD(t *testing.T) {
	// asset_weight chosen so D = quote_weight - asset_weight*(1-fee) is
	// within the no-trade band around zero.
	_, ok := Size(SpotSizeInputs{
		Shortfall:   fixedq.FromFloat64(100),
		AssetWeight: fixedq.FromFloat64(1.0),
		QuoteWeight: fixedq.FromInt64(1),
		AssetPrice:  fixedq.FromFloat64(1),
		LiqFee:      fixedq.FromFloat64(0),
		MaxQty:      fixedq.FromFloat64(1000),
	})
	assert.False(t, ok, "D ~= 0 must suppress the trade rather than divide by a near-zero denominator")
}

func TestSizeNeverNegative(t *testing.T) {
	qty, ok := Size(SpotSizeInputs{
		Shortfall:   fixedq.FromFloat64(-100),
		AssetWeight: fixedq.FromFloat64(0.8),
		QuoteWeight: fixedq.FromInt64(1),
		AssetPrice:  fixedq.FromFloat64(10),
		LiqFee:      fixedq.FromFloat64(0.02),
		MaxQty:      fixedq.FromFloat64(50),
	})
	if ok {
		assert.True(t, qty.Sign() >= 0)
	}
}
