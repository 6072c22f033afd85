package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/roundbot/internal/application/engine"
	"github.com/alejandrodnm/roundbot/internal/domain"
	"github.com/alejandrodnm/roundbot/internal/observability"
	"github.com/alejandrodnm/roundbot/internal/ports"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultCycleInterval = 15 * time.Second
	defaultRetryDelay    = 5 * time.Second
	defaultDeadline      = 10 * time.Minute

	notifyQueueSize = 32
	notifyTimeout   = 20 * time.Second
	notifyDrainWait = 5 * time.Second
)

// Skip reasons reported in CycleResult.Skipped.
const (
	SkipQueryError = "query_error"
	SkipReserves   = "invalid_reserves"
	SkipDecision   = "decision_error"
	SkipNoTrade    = "no_trade"
	SkipDust       = "below_dust"
	SkipApproval   = "approval_missing"
	SkipQuote      = "quote_error"
	SkipSwapFailed = "swap_failed"
)

// Config holds configuration for the round loop.
type Config struct {
	Account       string // recipient of every swap
	StableToken   string // USDM address
	PollInterval  time.Duration
	CycleInterval time.Duration
	RetryDelay    time.Duration
	Deadline      time.Duration
	DustThreshold float64
	SlippageBps   int     // 0 = amountOutMin 0
	Multiplier    float64 // from the prompt file, (0, 1]
	HistoryWindow int
	CandidatePcts []float64
	Fee           float64
	CloseRounds   bool

	NotifyUsername  string
	NotifyAvatarURL string
}

// Deps are the collaborators of the controller. Querier, Executor and
// Decider are required; the rest may be nil.
type Deps struct {
	Querier  ports.RoundQuerier
	Executor ports.SwapExecutor
	Decider  ports.Decider
	Closer   ports.RoundCloser
	Notifier ports.Notifier
	Printer  ports.SnapshotPrinter
	Journal  ports.Journal
	Metrics  *observability.Metrics

	Now   func() time.Time
	NewID func() string
}

// StepResult is what one call to Step did and how long Run should wait.
type StepResult struct {
	State domain.RoundState // state after the step
	Wait  time.Duration
	Cycle *CycleResult // set when a RoundActive cycle ran
}

// CycleResult contains everything produced by one decision cycle.
type CycleResult struct {
	Hour     int // 0-based cycle index within the round
	Price    float64
	Decision *domain.TradeDecision
	AmountIn float64
	Outcome  *domain.TradeOutcome
	Skipped  string
}

// Controller is the round state machine: it waits for a round, runs the
// decision cycle while the round's token stays active and closes the round
// when the token rotates. All state is owned by the single Run goroutine.
type Controller struct {
	cfg  Config
	deps Deps

	state      domain.RoundState
	round      *domain.Round
	endedToken string

	// notes is non-nil while Run is active and drained by its own goroutine.
	notes chan domain.Notification
}

// New creates a controller in the WaitingForRound state.
func New(cfg Config, deps Deps) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = defaultCycleInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	if cfg.DustThreshold <= 0 {
		cfg.DustThreshold = domain.DefaultDustThreshold
	}
	if cfg.Multiplier <= 0 || cfg.Multiplier > 1 {
		cfg.Multiplier = 1
	}
	if cfg.Fee <= 0 {
		cfg.Fee = domain.DefaultFee
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Controller{cfg: cfg, deps: deps, state: domain.StateWaitingForRound}
}

// State returns the current state.
func (c *Controller) State() domain.RoundState { return c.state }

// Round returns the active round, or nil while waiting.
func (c *Controller) Round() *domain.Round { return c.round }

// Run drives the state machine until ctx is cancelled. No cycle error stops it.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("round loop starting",
		"account", c.cfg.Account,
		"stable", c.cfg.StableToken,
		"poll", c.cfg.PollInterval,
		"cycle", c.cfg.CycleInterval,
		"multiplier", c.cfg.Multiplier,
		"close_rounds", c.cfg.CloseRounds,
	)

	stop := c.startNotifier()
	defer stop()

	for {
		res := c.Step(ctx)
		if !engine.Wait(ctx, res.Wait) {
			slog.Info("round loop stopped", "state", c.state.String())
			return nil
		}
	}
}

// Step executes one unit of work for the current state: a poll while
// waiting, a full cycle while a round is active, or the round closing.
func (c *Controller) Step(ctx context.Context) StepResult {
	switch c.state {
	case domain.StateRoundActive:
		return c.cycle(ctx)
	case domain.StateEndingRound:
		c.endRound(ctx)
		return StepResult{State: c.state}
	default:
		return c.waitForRound(ctx)
	}
}

// --- WaitingForRound ---

func (c *Controller) waitForRound(ctx context.Context) StepResult {
	token, err := c.deps.Querier.ActiveToken(ctx)
	if err != nil {
		c.deps.Metrics.QueryError("active_token")
		slog.Warn("round: failed to query active token", "err", err)
		return StepResult{State: c.state, Wait: c.cfg.RetryDelay}
	}

	if domain.IsZeroToken(token) {
		c.endedToken = ""
		slog.Debug("round: waiting for round to start")
		return StepResult{State: c.state, Wait: c.cfg.PollInterval}
	}
	if c.endedToken != "" && domain.SameToken(token, c.endedToken) {
		slog.Debug("round: previous token still active, waiting", "token", token)
		return StepResult{State: c.state, Wait: c.cfg.PollInterval}
	}

	c.startRound(ctx, token)
	return StepResult{State: c.state}
}

func (c *Controller) startRound(ctx context.Context, token string) {
	r := domain.NewRound(c.deps.NewID(), token, c.deps.Now())
	c.round = r
	c.state = domain.StateRoundActive
	c.deps.Metrics.RoundStarted()

	slog.Info("round: started", "round", r.ID, "token", token)

	if c.deps.Journal != nil {
		if err := c.deps.Journal.SaveRound(ctx, r); err != nil {
			slog.Warn("round: journal error", "err", err)
		}
	}

	r.Approved = c.ensureApprovals(ctx, token)

	c.notify(fmt.Sprintf("🚀 New round started: token `%s`", token))
}

// ensureApprovals makes sure the router can spend both the stable asset and
// the round token. Failures are logged; the cycle retries before trading.
func (c *Controller) ensureApprovals(ctx context.Context, token string) bool {
	for _, t := range []string{c.cfg.StableToken, token} {
		if domain.IsZeroToken(t) {
			continue
		}
		if err := c.deps.Executor.EnsureAllowance(ctx, t); err != nil {
			slog.Warn("round: approval failed", "token", t, "err", err)
			return false
		}
	}
	return true
}

// --- RoundActive ---

func (c *Controller) cycle(ctx context.Context) StepResult {
	r := c.round
	res := &CycleResult{Hour: r.Prices.Len()}
	out := StepResult{State: c.state, Wait: c.cfg.CycleInterval, Cycle: res}

	// 1. Round still active?
	token, err := c.deps.Querier.ActiveToken(ctx)
	if err != nil {
		c.deps.Metrics.QueryError("active_token")
		c.deps.Metrics.Cycle(SkipQueryError)
		slog.Warn("round: failed to query active token", "round", r.ID, "err", err)
		res.Skipped = SkipQueryError
		out.Wait = c.cfg.RetryDelay
		return out
	}
	if !domain.SameToken(token, r.Token) {
		slog.Info("round: ended", "round", r.ID, "token", r.Token, "next", token)
		c.state = domain.StateEndingRound
		return StepResult{State: c.state, Cycle: nil}
	}

	// 2. Balances + reserves
	info, err := c.deps.Querier.MarketInfo(ctx, r.Token)
	if err != nil {
		c.deps.Metrics.QueryError("market_info")
		c.deps.Metrics.Cycle(SkipQueryError)
		slog.Warn("round: failed to query market info", "round", r.ID, "err", err)
		res.Skipped = SkipQueryError
		out.Wait = c.cfg.RetryDelay
		return out
	}

	// 3. Snapshot → decision → history
	snap, err := domain.BuildSnapshot(info, r, domain.SnapshotOptions{
		Window:        c.cfg.HistoryWindow,
		CandidatePcts: c.cfg.CandidatePcts,
		Fee:           c.cfg.Fee,
		Now:           c.deps.Now(),
	})
	if err != nil {
		c.deps.Metrics.Cycle(SkipReserves)
		slog.Warn("round: unusable pool state, skipping cycle", "round", r.ID, "err", err)
		res.Skipped = SkipReserves
		if errors.Is(err, domain.ErrInvalidReserves) {
			out.Wait = c.cfg.RetryDelay
		}
		return out
	}
	res.Price = snap.Price
	c.deps.Metrics.Observe(snap.Price, snap.Hour)

	started := time.Now()
	d, err := c.deps.Decider.Decide(ctx, snap)
	if err != nil {
		// No trade entry for this hour, so the price must go too.
		r.Prices.DropLast()
		c.deps.Metrics.Cycle(SkipDecision)
		slog.Error("round: no decision available", "round", r.ID, "hour", res.Hour+1, "err", err)
		res.Skipped = SkipDecision
		return out
	}
	c.deps.Metrics.Decision(d.Source, string(d.Action), time.Since(started))
	c.deps.Metrics.Cycle("decided")

	r.RecordDecision(d, c.deps.Now())
	res.Decision = &d

	slog.Info("round: decision",
		"round", r.ID,
		"hour", res.Hour+1,
		"price", fmt.Sprintf("%.8f", snap.Price),
		"action", d.Action,
		"pct", d.Percentage,
		"source", d.Source,
	)

	if c.deps.Printer != nil {
		c.deps.Printer.PrintSnapshot(snap, d)
	}
	if c.deps.Journal != nil {
		if err := c.deps.Journal.SaveDecision(ctx, r.ID, res.Hour, snap.Price, d); err != nil {
			slog.Warn("round: journal error", "err", err)
		}
	}

	// 4-6. Execution
	c.execute(ctx, info, d, res)
	return out
}

func (c *Controller) execute(ctx context.Context, info domain.MarketInfo, d domain.TradeDecision, res *CycleResult) {
	r := c.round

	if d.IsNoTrade() {
		c.deps.Metrics.Swap(string(d.Action), "skipped", 0)
		slog.Info("round: no trade this cycle", "round", r.ID, "hour", res.Hour+1)
		res.Skipped = SkipNoTrade
		return
	}

	balance, tokenIn, tokenOut := info.TokenBalance, r.Token, c.cfg.StableToken
	if d.Action.IsBuy() {
		balance, tokenIn, tokenOut = info.StableBalance, c.cfg.StableToken, r.Token
	}

	amount := domain.TradeAmount(balance, d.Percentage, c.cfg.Multiplier)
	res.AmountIn = amount
	if amount < c.cfg.DustThreshold {
		c.deps.Metrics.Swap(string(d.Action), "skipped", 0)
		slog.Info("round: amount below dust threshold, skipping",
			"round", r.ID, "action", d.Action, "amount", amount, "balance", balance)
		res.Skipped = SkipDust
		return
	}

	if !r.Approved {
		r.Approved = c.ensureApprovals(ctx, r.Token)
		if !r.Approved {
			c.deps.Metrics.Swap(string(d.Action), "skipped", 0)
			res.Skipped = SkipApproval
			return
		}
	}

	minOut := 0.0
	if c.cfg.SlippageBps > 0 {
		quote, err := c.deps.Executor.Quote(ctx, tokenIn, tokenOut, amount)
		if err != nil {
			c.deps.Metrics.QueryError("quote")
			c.deps.Metrics.Swap(string(d.Action), "skipped", 0)
			slog.Warn("round: quote failed, skipping swap", "round", r.ID, "err", err)
			res.Skipped = SkipQuote
			return
		}
		minOut = quote * float64(10_000-c.cfg.SlippageBps) / 10_000
	}

	req := domain.SwapRequest{
		Action:       d.Action,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amount,
		MinAmountOut: minOut,
		Recipient:    c.cfg.Account,
		Deadline:     c.deps.Now().Add(c.cfg.Deadline),
	}

	outcome, err := c.deps.Executor.Swap(ctx, req)
	if err == nil && !outcome.Success {
		err = errors.New(outcome.Error)
	}
	outcome.Action = d.Action
	outcome.AmountIn = amount
	res.Outcome = &outcome

	if c.deps.Journal != nil {
		if jerr := c.deps.Journal.SaveOutcome(ctx, r.ID, res.Hour, outcome); jerr != nil {
			slog.Warn("round: journal error", "err", jerr)
		}
	}

	if err != nil {
		r.Failed++
		res.Skipped = SkipSwapFailed
		c.deps.Metrics.Swap(string(d.Action), "failed", amount)
		slog.Error("round: swap failed",
			"round", r.ID, "hour", res.Hour+1, "action", d.Action, "amount", amount, "tx", outcome.TxHash, "err", err)
		c.notify(fmt.Sprintf("⚠️ Hour %d: %s of %.4f %s failed: %s",
			res.Hour+1, d.Action, amount, c.symbol(d.Action), engine.TruncateStr(err.Error(), 120)))
		return
	}

	r.Executed++
	c.deps.Metrics.Swap(string(d.Action), "success", amount)
	slog.Info("round: swapped",
		"round", r.ID,
		"hour", res.Hour+1,
		"action", d.Action,
		"amount_in", amount,
		"amount_out", outcome.AmountOut,
		"tx", outcome.TxHash,
	)
	c.notify(fmt.Sprintf("✅ Hour %d: %s %.4g%%, swapped %.4f %s (tx %s)",
		res.Hour+1, d.Action, d.Percentage, amount, c.symbol(d.Action), engine.ShortAddr(outcome.TxHash)))
}

// --- EndingRound ---

func (c *Controller) endRound(ctx context.Context) {
	r := c.round

	result := "skipped"
	if c.cfg.CloseRounds && c.deps.Closer != nil {
		if err := c.deps.Closer.EndRound(ctx); err != nil {
			result = "error"
			slog.Warn("round: endRound failed, continuing", "round", r.ID, "err", err)
		} else {
			result = "ok"
			slog.Info("round: endRound confirmed", "round", r.ID)
		}
	}
	c.deps.Metrics.RoundClosed(result)

	if c.deps.Journal != nil {
		if err := c.deps.Journal.CloseRound(ctx, r); err != nil {
			slog.Warn("round: journal error", "err", err)
		}
	}

	first, _ := r.Prices.First()
	last, _ := r.Prices.Last()
	c.notify(fmt.Sprintf("🏁 Round ended for token `%s`: %d cycles, %d swaps (%d failed), price %.6f → %.6f",
		r.Token, r.Trades.Len(), r.Executed, r.Failed, first.Price, last.Price))

	c.endedToken = r.Token
	r.Reset()
	c.round = nil
	c.state = domain.StateWaitingForRound
}

// --- helpers ---

func (c *Controller) notify(msg string) {
	if c.deps.Notifier == nil {
		return
	}
	n := domain.Notification{
		Content:   msg,
		Username:  c.cfg.NotifyUsername,
		AvatarURL: c.cfg.NotifyAvatarURL,
	}
	if c.notes == nil {
		c.deliver(n)
		return
	}
	select {
	case c.notes <- n:
	default:
		slog.Warn("round: notification queue full, dropping message")
	}
}

// deliver sends one notification with its own deadline, detached from the
// loop's context so messages queued at shutdown still go out.
func (c *Controller) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := c.deps.Notifier.Notify(ctx, n); err != nil {
		slog.Warn("round: notification failed", "err", err)
	}
}

// startNotifier starts the delivery goroutine and returns the function that
// closes the queue and waits (bounded) for it to drain.
func (c *Controller) startNotifier() func() {
	if c.deps.Notifier == nil {
		return func() {}
	}
	notes := make(chan domain.Notification, notifyQueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := range notes {
			c.deliver(n)
		}
	}()
	c.notes = notes

	return func() {
		c.notes = nil
		close(notes)
		select {
		case <-done:
		case <-time.After(notifyDrainWait):
			slog.Warn("round: pending notifications not delivered before shutdown")
		}
	}
}

func (c *Controller) symbol(a domain.Action) string {
	if a.IsBuy() {
		return "USDM"
	}
	return "Token"
}
