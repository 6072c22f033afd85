package ports

import (
	"context"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// RoundQuerier reads the competition's round and pool state from chain.
type RoundQuerier interface {
	// ActiveToken returns the current round's token address, or the zero
	// address / "" when no round is running.
	ActiveToken(ctx context.Context) (string, error)

	// MarketInfo returns balances of the trading account and the pool
	// reserves for the given round token.
	MarketInfo(ctx context.Context, token string) (domain.MarketInfo, error)
}
