package ports

import (
	"context"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// SwapExecutor submits swaps through the router and manages its allowances.
type SwapExecutor interface {
	// EnsureAllowance approves the router for token if the current allowance
	// is below the configured threshold. Blocks until the approval is mined.
	EnsureAllowance(ctx context.Context, token string) error

	// Quote returns the router's expected output for amountIn of tokenIn.
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (float64, error)

	// Swap submits swapExactTokensForTokens and waits for the receipt.
	// A reverted transaction returns an outcome with Success=false and an error.
	Swap(ctx context.Context, req domain.SwapRequest) (domain.TradeOutcome, error)
}

// RoundCloser finalizes a round on-chain once its token has rotated.
type RoundCloser interface {
	EndRound(ctx context.Context) error
}
