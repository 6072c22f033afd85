// Package observability provides Prometheus metrics for the round loop.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RoundsStarted prometheus.Counter
	RoundsClosed  *prometheus.CounterVec // result: ok | error | skipped

	Cycles          *prometheus.CounterVec // result: decided | invalid_reserves | query_error | decision_error
	Decisions       *prometheus.CounterVec // source, action
	Swaps           *prometheus.CounterVec // action, status: success | failed | skipped
	SwapVolume      *prometheus.CounterVec // action; in units of the input token
	QueryErrors     *prometheus.CounterVec // op
	DecisionLatency prometheus.Histogram

	Price     prometheus.Gauge
	RoundHour prometheus.Gauge
}

// NewMetrics registers every metric on reg. Pass prometheus.NewRegistry()
// in tests to avoid collisions with the default registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "roundbot"
	}
	f := promauto.With(reg)

	return &Metrics{
		RoundsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "round",
			Name:      "started_total",
			Help:      "Total number of rounds observed starting",
		}),
		RoundsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "round",
			Name:      "closed_total",
			Help:      "Total number of rounds ended, by endRound result",
		}, []string{"result"}),
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Total number of decision cycles by result",
		}, []string{"result"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "total",
			Help:      "Total number of trade decisions by source and action",
		}, []string{"source", "action"}),
		Swaps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "total",
			Help:      "Total number of swaps by action and status",
		}, []string{"action", "status"}),
		SwapVolume: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "amount_in_total",
			Help:      "Sum of confirmed swap input amounts, in input-token units",
		}, []string{"action"}),
		QueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "query_errors_total",
			Help:      "Total number of failed chain queries by operation",
		}, []string{"op"}),
		DecisionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "duration_seconds",
			Help:      "Time spent obtaining a trade decision",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		Price: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "spot_price",
			Help:      "Last observed spot price (stable per token)",
		}),
		RoundHour: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "round",
			Name:      "cycle_index",
			Help:      "Index of the last completed cycle in the current round",
		}),
	}
}

func (m *Metrics) RoundStarted() {
	if m == nil {
		return
	}
	m.RoundsStarted.Inc()
	m.RoundHour.Set(0)
}

func (m *Metrics) RoundClosed(result string) {
	if m == nil {
		return
	}
	m.RoundsClosed.WithLabelValues(result).Inc()
}

func (m *Metrics) Cycle(result string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) QueryError(op string) {
	if m == nil {
		return
	}
	m.QueryErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Decision(source, action string, took time.Duration) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(source, action).Inc()
	m.DecisionLatency.Observe(took.Seconds())
}

func (m *Metrics) Observe(price float64, hour int) {
	if m == nil {
		return
	}
	m.Price.Set(price)
	m.RoundHour.Set(float64(hour))
}

func (m *Metrics) Swap(action, status string, amountIn float64) {
	if m == nil {
		return
	}
	m.Swaps.WithLabelValues(action, status).Inc()
	if status == "success" {
		m.SwapVolume.WithLabelValues(action).Add(amountIn)
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics: serving", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
