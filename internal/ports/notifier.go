package ports

import (
	"context"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// Notifier delivers best-effort messages (Discord, console).
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// SnapshotPrinter renders the per-cycle market snapshot for an operator.
type SnapshotPrinter interface {
	PrintSnapshot(snapshot domain.MarketSnapshot, decision domain.TradeDecision)
}
