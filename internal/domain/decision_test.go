package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision_JSON(t *testing.T) {
	d, err := ParseDecision(`{"action": "BUY", "percentage": 7}`)
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, 7.0, d.Percentage)
	assert.Equal(t, SourceAI, d.Source)
}

func TestParseDecision_CodeFence(t *testing.T) {
	d, err := ParseDecision("```json\n{\"action\":\"sell\",\"percentage\":2.5}\n```")
	require.NoError(t, err)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, 2.5, d.Percentage)
}

func TestParseDecision_StringPercentage(t *testing.T) {
	d, err := ParseDecision(`{"action":"sell","percentage":"4%"}`)
	require.NoError(t, err)
	assert.Equal(t, 4.0, d.Percentage)
}

func TestParseDecision_ZeroIsValidNoTrade(t *testing.T) {
	d, err := ParseDecision(`{"action":"buy","percentage":0}`)
	require.NoError(t, err)
	assert.True(t, d.IsNoTrade())
}

func TestParseDecision_LabelledText(t *testing.T) {
	d, err := ParseDecision("Reasoning: momentum is up.\nAction: Sell\nPercentage: 3.5")
	require.NoError(t, err)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, 3.5, d.Percentage)
}

func TestParseDecision_Invalid(t *testing.T) {
	cases := map[string]string{
		"hold action":          `{"action":"HOLD","percentage":50}`,
		"out of range":         `{"action":"buy","percentage":150}`,
		"negative":             `{"action":"buy","percentage":-1}`,
		"non numeric":          `{"action":"buy","percentage":"lots"}`,
		"missing action":       `{"percentage":5}`,
		"missing percentage":   `{"action":"buy"}`,
		"null percentage":      `{"action":"buy","percentage":null}`,
		"empty":                "   ",
		"free text":            "I would rather wait",
		"labelled hold":        "Action: hold\nPercentage: 5",
		"labelled out of range": "Action: buy\nPercentage: 101",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDecision(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDecision)
		})
	}
}

func TestNewTradeDecision_CoercesOutOfRange(t *testing.T) {
	assert.Equal(t, 0.0, NewTradeDecision(ActionBuy, 150, SourceAI).Percentage)
	assert.Equal(t, 0.0, NewTradeDecision(ActionBuy, -3, SourceAI).Percentage)
	assert.Equal(t, 0.0, NewTradeDecision(ActionBuy, math.NaN(), SourceAI).Percentage)
	assert.Equal(t, 0.0, NewTradeDecision(ActionBuy, math.Inf(1), SourceAI).Percentage)
	assert.Equal(t, 42.0, NewTradeDecision(ActionSell, 42, SourceAI).Percentage)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("  Buy ")
	assert.True(t, ok)
	assert.Equal(t, ActionBuy, a)

	_, ok = ParseAction("hold")
	assert.False(t, ok)
}
