package decision_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/roundbot/internal/application/decision"
	"github.com/alejandrodnm/roundbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSource struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockSource) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

type fixedDecider struct {
	d   domain.TradeDecision
	err error
}

func (f *fixedDecider) Decide(_ context.Context, _ domain.MarketSnapshot) (domain.TradeDecision, error) {
	return f.d, f.err
}

// --- helpers ---

func makeSnapshot(t *testing.T) domain.MarketSnapshot {
	t.Helper()
	r := domain.NewRound("r1", "0xtoken", time.Now())
	snap, err := domain.BuildSnapshot(domain.MarketInfo{
		Token:         "0xtoken",
		StableBalance: 1000,
		TokenBalance:  200,
		StableLP:      10000,
		TokenLP:       10000,
	}, r, domain.SnapshotOptions{})
	require.NoError(t, err)
	return snap
}

func newTestChain(t *testing.T, src *mockSource) *decision.Chain {
	t.Helper()
	ai, err := decision.NewAI(src, "Decide for {{.Token}} at hour {{.Hour}}.\n{{.Summary}}")
	require.NoError(t, err)
	return decision.NewChain(ai, decision.NewRandom(rand.New(rand.NewPCG(1, 2))))
}

// --- tests ---

func TestChain_UsesAIReply(t *testing.T) {
	src := &mockSource{reply: `{"action":"sell","percentage":4}`}
	d, err := newTestChain(t, src).Decide(context.Background(), makeSnapshot(t))

	require.NoError(t, err)
	assert.Equal(t, domain.ActionSell, d.Action)
	assert.Equal(t, 4.0, d.Percentage)
	assert.Equal(t, domain.SourceAI, d.Source)

	require.Len(t, src.prompts, 1)
	assert.Contains(t, src.prompts[0], "Decide for 0xtoken at hour 1.")
	assert.Contains(t, src.prompts[0], "Pool USDM reserve")
}

func TestChain_FallbackOnSourceError(t *testing.T) {
	src := &mockSource{err: errors.New("503 from upstream")}
	d, err := newTestChain(t, src).Decide(context.Background(), makeSnapshot(t))

	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, d.Source)
	assert.GreaterOrEqual(t, d.Percentage, 1.0)
	assert.LessOrEqual(t, d.Percentage, 10.0)
}

func TestChain_FallbackOnInvalidReply(t *testing.T) {
	for _, reply := range []string{
		`{"action":"HOLD","percentage":50}`,
		`{"action":"buy","percentage":150}`,
		`{"action":"buy","percentage":"many"}`,
		`not json at all`,
	} {
		src := &mockSource{reply: reply}
		d, err := newTestChain(t, src).Decide(context.Background(), makeSnapshot(t))

		require.NoError(t, err, reply)
		assert.Equal(t, domain.SourceFallback, d.Source, reply)
		assert.Contains(t, []domain.Action{domain.ActionBuy, domain.ActionSell}, d.Action)
		assert.NotEqual(t, 150.0, d.Percentage)
	}
}

func TestChain_NilPrimaryAlwaysFallback(t *testing.T) {
	c := decision.NewChain(nil, &fixedDecider{d: domain.TradeDecision{Action: domain.ActionBuy, Percentage: 3}})
	d, err := c.Decide(context.Background(), makeSnapshot(t))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, d.Source)
	assert.Equal(t, 3.0, d.Percentage)
}

func TestChain_FallbackErrorPropagates(t *testing.T) {
	c := decision.NewChain(&fixedDecider{err: errors.New("down")}, &fixedDecider{err: errors.New("also down")})
	_, err := c.Decide(context.Background(), makeSnapshot(t))
	assert.Error(t, err)
}

func TestChain_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := decision.NewChain(&fixedDecider{err: context.Canceled}, decision.NewRandom(nil))
	_, err := c.Decide(ctx, makeSnapshot(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandom_Range(t *testing.T) {
	r := decision.NewRandom(rand.New(rand.NewPCG(42, 7)))
	seen := map[domain.Action]bool{}
	for i := 0; i < 500; i++ {
		d, err := r.Decide(context.Background(), domain.MarketSnapshot{})
		require.NoError(t, err)
		seen[d.Action] = true
		assert.GreaterOrEqual(t, d.Percentage, 1.0)
		assert.LessOrEqual(t, d.Percentage, 10.0)
		assert.Equal(t, d.Percentage, float64(int(d.Percentage)))
	}
	assert.True(t, seen[domain.ActionBuy])
	assert.True(t, seen[domain.ActionSell])
}

func TestNewAI_TemplateWithoutActionsAppendsSummary(t *testing.T) {
	src := &mockSource{reply: `{"action":"buy","percentage":1}`}
	ai, err := decision.NewAI(src, "Plain instructions only.")
	require.NoError(t, err)

	prompt, err := ai.Prompt(makeSnapshot(t))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "Plain instructions only."))
	assert.Contains(t, prompt, "Current price (USDM per token)")
}

func TestNewAI_BadTemplate(t *testing.T) {
	_, err := decision.NewAI(&mockSource{}, "{{.Summary")
	assert.Error(t, err)

	_, err = decision.NewAI(&mockSource{}, "Balance: {{.Balance}}")
	assert.Error(t, err, "unknown field is rejected up front")
}
