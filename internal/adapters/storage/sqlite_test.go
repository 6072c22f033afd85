package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/roundbot/internal/adapters/storage"
	"github.com/alejandrodnm/roundbot/internal/domain"
)

func newJournal(t *testing.T) *storage.SQLiteJournal {
	t.Helper()
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLiteJournal_RoundLifecycle(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	started := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	r := domain.NewRound("round-1", "0xabc", started)
	require.NoError(t, j.SaveRound(ctx, r))

	decisions := []domain.TradeDecision{
		{Action: domain.ActionBuy, Percentage: 5, Source: domain.SourceAI},
		{Action: domain.ActionSell, Percentage: 3, Source: domain.SourceFallback},
		{Action: domain.ActionBuy, Percentage: 0, Source: domain.SourceAI},
	}
	for i, d := range decisions {
		_, err := domain.BuildSnapshot(domain.MarketInfo{
			StableBalance: 100, TokenBalance: 100, StableLP: 1000 + float64(i), TokenLP: 1000,
		}, r, domain.SnapshotOptions{})
		require.NoError(t, err)
		r.RecordDecision(d, time.Now())
		require.NoError(t, j.SaveDecision(ctx, r.ID, i, 1, d))
	}

	require.NoError(t, j.SaveOutcome(ctx, r.ID, 0, domain.TradeOutcome{
		Action: domain.ActionBuy, AmountIn: 5, AmountOut: 4.9, TxHash: "0x01", GasUsed: 120000, Success: true,
	}))
	r.Executed = 1
	r.Failed = 1
	require.NoError(t, j.CloseRound(ctx, r))

	sums, err := j.RoundSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sums, 1)

	s := sums[0]
	assert.Equal(t, "round-1", s.ID)
	assert.Equal(t, "0xabc", s.Token)
	assert.True(t, started.Equal(s.StartedAt))
	require.NotNil(t, s.EndedAt)
	assert.Equal(t, 3, s.Cycles)
	assert.Equal(t, 1, s.Executed)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 1.0, s.FirstPrice, 1e-9)
	assert.InDelta(t, 1.002, s.LastPrice, 1e-9)
	assert.Equal(t, 1, s.Buys)
	assert.Equal(t, 1, s.Sells)
	assert.Equal(t, 1, s.NoTrades)
}

func TestSQLiteJournal_SaveRoundIdempotent(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)
	r := domain.NewRound("round-1", "0xabc", time.Now())

	require.NoError(t, j.SaveRound(ctx, r))
	require.NoError(t, j.SaveRound(ctx, r))

	sums, err := j.RoundSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Nil(t, sums[0].EndedAt)
	assert.Equal(t, 0, sums[0].Buys)
}

func TestSQLiteJournal_SummariesNewestFirst(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)
	base := time.Now().UTC().Add(-3 * time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		r := domain.NewRound(id, "0x"+id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, j.SaveRound(ctx, r))
	}

	sums, err := j.RoundSummaries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "c", sums[0].ID)
	assert.Equal(t, "b", sums[1].ID)
}

func TestSQLiteJournal_FailedOutcome(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	err := j.SaveOutcome(ctx, "round-x", 2, domain.TradeOutcome{
		Action: domain.ActionSell, AmountIn: 1, Success: false, Error: "transaction reverted on-chain",
	})
	assert.NoError(t, err)
}
