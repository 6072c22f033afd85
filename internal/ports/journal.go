package ports

import (
	"context"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// Journal is an append-only audit log of rounds, decisions and swap outcomes.
// It is never read back to rebuild round state.
type Journal interface {
	SaveRound(ctx context.Context, round *domain.Round) error
	CloseRound(ctx context.Context, round *domain.Round) error
	SaveDecision(ctx context.Context, roundID string, hour int, price float64, d domain.TradeDecision) error
	SaveOutcome(ctx context.Context, roundID string, hour int, o domain.TradeOutcome) error
	Close() error
}
