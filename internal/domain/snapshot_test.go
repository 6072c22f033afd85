package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeInfo(stableLP, tokenLP float64) MarketInfo {
	return MarketInfo{
		Token:         "0xabc",
		StableBalance: 1000,
		TokenBalance:  500,
		StableLP:      stableLP,
		TokenLP:       tokenLP,
	}
}

func TestBuildSnapshot_AppendsPrice(t *testing.T) {
	r := NewRound("r1", "0xabc", time.Now())

	snap, err := BuildSnapshot(makeInfo(10000, 5000), r, SnapshotOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, snap.Price, 1e-12)
	assert.Equal(t, 0, snap.Hour)
	assert.Equal(t, 1, r.Prices.Len())
	require.Len(t, snap.PriceWindow, 1)
	assert.Equal(t, 0, snap.PriceWindow[0].Index)
}

func TestBuildSnapshot_ZeroReserveSkipsHistory(t *testing.T) {
	r := NewRound("r1", "0xabc", time.Now())

	_, err := BuildSnapshot(makeInfo(0, 5000), r, SnapshotOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidReserves)
	assert.Equal(t, 0, r.Prices.Len())

	_, err = BuildSnapshot(makeInfo(10000, -1), r, SnapshotOptions{})
	assert.ErrorIs(t, err, ErrInvalidReserves)
	assert.Equal(t, 0, r.Prices.Len())
}

func TestBuildSnapshot_WindowKeepsAbsoluteIndex(t *testing.T) {
	r := NewRound("r1", "0xabc", time.Now())
	for i := 0; i < 15; i++ {
		r.RecordDecision(TradeDecision{Action: ActionBuy, Percentage: float64(i)}, time.Now())
		_, err := BuildSnapshot(makeInfo(10000+float64(i), 5000), r, SnapshotOptions{Window: 10})
		require.NoError(t, err)
	}

	snap, err := BuildSnapshot(makeInfo(20000, 5000), r, SnapshotOptions{Window: 10})
	require.NoError(t, err)

	require.Len(t, snap.PriceWindow, 10)
	assert.Equal(t, 6, snap.PriceWindow[0].Index)
	assert.Equal(t, 15, snap.PriceWindow[9].Index)
	assert.Equal(t, 15, snap.Hour)

	require.Len(t, snap.TradeWindow, 10)
	assert.Equal(t, 5, snap.TradeWindow[0].Index)
	assert.Equal(t, 5.0, snap.TradeWindow[0].Value.Percentage)

	summary := snap.Summary()
	assert.Contains(t, summary, "Hour 16:")
	assert.Contains(t, summary, "Hour 7:")
	assert.NotContains(t, summary, "Hour 1:")
}

func TestBuildSnapshot_ImpactTable(t *testing.T) {
	r := NewRound("r1", "0xabc", time.Now())
	info := makeInfo(10000, 10000)
	info.TokenBalance = 0

	snap, err := BuildSnapshot(info, r, SnapshotOptions{CandidatePcts: []float64{1, 10}})
	require.NoError(t, err)
	require.Len(t, snap.Impacts, 2)

	assert.True(t, snap.Impacts[1].BuyOK)
	assert.InDelta(t, 1.02004, snap.Impacts[1].BuyPrice, 1e-5)
	// Sin tokens no hay impacto de venta calculable
	assert.False(t, snap.Impacts[1].SellOK)
	assert.Contains(t, snap.Summary(), "sell -> n/a")
}

func TestRound_ResetClearsHistories(t *testing.T) {
	r := NewRound("r1", "0xabc", time.Now())
	r.RecordDecision(TradeDecision{Action: ActionSell, Percentage: 3}, time.Now())
	_, err := BuildSnapshot(makeInfo(10000, 5000), r, SnapshotOptions{})
	require.NoError(t, err)

	r.Reset()
	assert.Equal(t, 0, r.Prices.Len())
	assert.Equal(t, 0, r.Trades.Len())
	assert.Empty(t, r.Trades.Window(10))
}

func TestIsZeroToken(t *testing.T) {
	assert.True(t, IsZeroToken(""))
	assert.True(t, IsZeroToken("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroToken("0x4A7b5Da61326A6379179b40d00F57E5bbDC962c2"))
	assert.True(t, SameToken("0xAbC", "0xabc"))
}

func TestHistory_DropLast(t *testing.T) {
	var h History[int]
	h.DropLast()
	assert.Equal(t, 0, h.Len())

	h.Append(1)
	h.Append(2)
	h.DropLast()
	require.Equal(t, 1, h.Len())
	last, _ := h.Last()
	assert.Equal(t, 1, last)
}
