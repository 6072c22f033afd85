package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateImpact_ReferenceBuy(t *testing.T) {
	// amountIn = 1000 × 10% = 100
	// newStable = 10000 + 100×0.997 = 10099.7
	// newToken  = 1e8 / 10099.7 ≈ 9901.284
	// price     ≈ 10099.7 / 9901.284 ≈ 1.02004
	price, ok := EstimateImpact(10000, 10000, 1000, 10, true, DefaultFee)
	require.True(t, ok)

	newStable := 10099.7
	newToken := 1e8 / newStable
	assert.InDelta(t, newStable/newToken, price, 1e-9)
	assert.InDelta(t, 1.02004, price, 1e-5)
}

func TestEstimateImpact_BuyRaisesPrice(t *testing.T) {
	spot := SpotPrice(5000, 250000)
	for _, pct := range DefaultCandidatePcts {
		price, ok := EstimateImpact(5000, 250000, 800, pct, true, DefaultFee)
		require.True(t, ok, "pct=%v", pct)
		assert.Greater(t, price, spot, "comprar debe subir el precio (pct=%v)", pct)
		assert.False(t, math.IsInf(price, 0) || math.IsNaN(price))
	}
}

func TestEstimateImpact_SellLowersPrice(t *testing.T) {
	spot := SpotPrice(5000, 250000)
	for _, pct := range DefaultCandidatePcts {
		price, ok := EstimateImpact(5000, 250000, 40000, pct, false, DefaultFee)
		require.True(t, ok, "pct=%v", pct)
		assert.Less(t, price, spot, "vender debe bajar el precio (pct=%v)", pct)
		assert.Greater(t, price, 0.0)
	}
}

func TestEstimateImpact_LargerTradeMoreImpact(t *testing.T) {
	small, ok1 := EstimateImpact(10000, 10000, 1000, 1, true, DefaultFee)
	large, ok2 := EstimateImpact(10000, 10000, 1000, 10, true, DefaultFee)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Greater(t, large, small)
}

func TestEstimateImpact_NotComputable(t *testing.T) {
	cases := []struct {
		name                      string
		base, quote, balance, pct float64
	}{
		{"zero base reserve", 0, 10000, 1000, 10},
		{"negative quote reserve", 10000, -1, 1000, 10},
		{"zero balance", 10000, 10000, 0, 10},
		{"negative balance", 10000, 10000, -50, 10},
		{"zero percentage", 10000, 10000, 1000, 0},
		{"percentage above 100", 10000, 10000, 1000, 150},
		{"nan reserve", math.NaN(), 10000, 1000, 10},
		{"inf balance", 10000, 10000, math.Inf(1), 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, isBuy := range []bool{true, false} {
				assert.NotPanics(t, func() {
					_, ok := EstimateImpact(tc.base, tc.quote, tc.balance, tc.pct, isBuy, DefaultFee)
					assert.False(t, ok)
				})
			}
		})
	}
}

func TestEstimateImpact_InvalidFee(t *testing.T) {
	_, ok := EstimateImpact(10000, 10000, 1000, 10, true, 0)
	assert.False(t, ok)
	_, ok = EstimateImpact(10000, 10000, 1000, 10, true, 1.5)
	assert.False(t, ok)
}

// --- TradeAmount ---

func TestTradeAmount_AppliesMultiplierAndSafety(t *testing.T) {
	// 1000 × 5% × 0.5 × 0.999 = 24.975
	assert.InDelta(t, 24.975, TradeAmount(1000, 5, 0.5), 1e-9)
}

func TestTradeAmount_DefaultMultiplier(t *testing.T) {
	assert.InDelta(t, 49.95, TradeAmount(1000, 5, 0), 1e-9)
}

func TestTradeAmount_ZeroInputs(t *testing.T) {
	assert.Equal(t, 0.0, TradeAmount(0, 5, 1))
	assert.Equal(t, 0.0, TradeAmount(1000, 0, 1))
}
