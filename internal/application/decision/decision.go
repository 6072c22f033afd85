// Package decision contains the trade-decision strategies: an AI-backed
// decider, a random fallback and the Chain that selects between them.
package decision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/roundbot/internal/domain"
	"github.com/alejandrodnm/roundbot/internal/ports"
)

// Chain asks the primary decider first and falls back on any error.
// The fallback is expected to be infallible (see Random).
type Chain struct {
	primary  ports.Decider
	fallback ports.Decider
}

// NewChain builds the decision boundary. primary may be nil, in which case
// every decision comes from the fallback.
func NewChain(primary, fallback ports.Decider) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Decide implements ports.Decider.
func (c *Chain) Decide(ctx context.Context, snap domain.MarketSnapshot) (domain.TradeDecision, error) {
	if c.primary != nil {
		d, err := c.primary.Decide(ctx, snap)
		if err == nil {
			return d, nil
		}
		if ctx.Err() != nil {
			return domain.TradeDecision{}, ctx.Err()
		}
		slog.Warn("decision: source failed, using fallback", "hour", snap.Hour+1, "err", err)
	}

	d, err := c.fallback.Decide(ctx, snap)
	if err != nil {
		return domain.TradeDecision{}, fmt.Errorf("decision.Chain: fallback: %w", err)
	}
	d.Source = domain.SourceFallback
	return d, nil
}
