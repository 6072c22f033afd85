package decision

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

const (
	fallbackMinPct = 1
	fallbackMaxPct = 10
)

// Random picks buy or sell with equal probability and an integer
// percentage uniformly in [1, 10].
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates the fallback decider. A nil rng uses a PCG seeded from
// the runtime's random source.
func NewRandom(rng *rand.Rand) *Random {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Random{rng: rng}
}

// Decide implements ports.Decider. It never fails.
func (r *Random) Decide(_ context.Context, _ domain.MarketSnapshot) (domain.TradeDecision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	action := domain.ActionSell
	if r.rng.IntN(2) == 0 {
		action = domain.ActionBuy
	}
	pct := fallbackMinPct + r.rng.IntN(fallbackMaxPct-fallbackMinPct+1)
	return domain.NewTradeDecision(action, float64(pct), domain.SourceFallback), nil
}
