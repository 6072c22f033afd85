package ports

import (
	"context"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// Decider turns a market snapshot into a trade decision.
type Decider interface {
	Decide(ctx context.Context, snapshot domain.MarketSnapshot) (domain.TradeDecision, error)
}

// DecisionSource is an external text-generation service constrained to
// answer with a {action, percentage} object. It returns the raw reply text.
type DecisionSource interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
