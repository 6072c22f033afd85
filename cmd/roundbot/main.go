package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alejandrodnm/roundbot/config"
	"github.com/alejandrodnm/roundbot/internal/adapters/llm"
	"github.com/alejandrodnm/roundbot/internal/adapters/notify"
	"github.com/alejandrodnm/roundbot/internal/adapters/onchain"
	"github.com/alejandrodnm/roundbot/internal/adapters/storage"
	"github.com/alejandrodnm/roundbot/internal/application/decision"
	"github.com/alejandrodnm/roundbot/internal/application/engine"
	"github.com/alejandrodnm/roundbot/internal/application/engine/round"
	"github.com/alejandrodnm/roundbot/internal/observability"
	"github.com/alejandrodnm/roundbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full impact table per cycle (default: compact 1-line)")
	report := flag.Int("report", 0, "print the last N rounds from the journal and exit")
	noWait := flag.Bool("yes", false, "skip the 5s abort window before trading")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report > 0 {
		if err := runReport(ctx, cfg.Storage.DSN, *report, os.Stdout); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	prompt, err := config.LoadPrompt(cfg.Bot.PromptFile)
	if err != nil {
		slog.Error("failed to load prompt", "err", err, "path", cfg.Bot.PromptFile)
		os.Exit(1)
	}

	slog.Info("roundbot starting",
		"config", *configPath,
		"query_mode", cfg.Bot.QueryMode,
		"cycle_interval", cfg.CycleInterval(),
		"llm", cfg.LLM.Enabled,
		"multiplier", prompt.Multiplier,
		"close_rounds", cfg.Bot.CloseRounds,
	)

	client, err := onchain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.ChainID, cfg.Chain.GasLimit)
	if err != nil {
		slog.Error("failed to connect to chain", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	trader, err := onchain.NewTrader(client, cfg.Chain.Competition, cfg.Chain.Router)
	if err != nil {
		slog.Error("failed to create trader", "err", err)
		os.Exit(1)
	}

	stable, err := trader.StableToken(ctx)
	if err != nil {
		slog.Error("failed to read USDM address from competition", "err", err)
		os.Exit(1)
	}

	querier, err := newQuerier(cfg, client, stable)
	if err != nil {
		slog.Error("failed to create querier", "err", err)
		os.Exit(1)
	}

	decider, err := newDecider(cfg, prompt)
	if err != nil {
		slog.Error("failed to create decider", "err", err)
		os.Exit(1)
	}

	console := notify.NewConsole(*table)
	notifiers := []ports.Notifier{console}
	if cfg.Discord.WebhookURL != "" {
		d, err := notify.NewDiscord(cfg.Discord.WebhookURL, cfg.Discord.Username, cfg.Discord.AvatarURL)
		if err != nil {
			slog.Error("failed to create discord notifier", "err", err)
			os.Exit(1)
		}
		notifiers = append(notifiers, d)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg, "roundbot")
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observability.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	deps := round.Deps{
		Querier:  querier,
		Executor: trader,
		Decider:  decider,
		Notifier: notify.NewMulti(notifiers...),
		Printer:  console,
		Metrics:  metrics,
	}
	if cfg.Bot.CloseRounds {
		deps.Closer = trader
	}
	if cfg.Storage.DSN != "" {
		journal, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open journal", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer journal.Close()
		deps.Journal = journal
	}

	account := client.Address().Hex()
	if !*noWait && !confirmStart(ctx, account) {
		slog.Info("trading aborted by user")
		return
	}

	ctrl := round.New(round.Config{
		Account:         account,
		StableToken:     stable,
		PollInterval:    cfg.PollInterval(),
		CycleInterval:   cfg.CycleInterval(),
		RetryDelay:      cfg.RetryDelay(),
		Deadline:        cfg.Deadline(),
		DustThreshold:   cfg.Bot.DustThreshold,
		SlippageBps:     cfg.Bot.SlippageBps,
		Multiplier:      prompt.Multiplier,
		HistoryWindow:   cfg.Bot.HistoryWindow,
		CandidatePcts:   cfg.Bot.CandidatePcts,
		Fee:             cfg.Bot.Fee,
		CloseRounds:     cfg.Bot.CloseRounds,
		NotifyUsername:  cfg.Discord.Username,
		NotifyAvatarURL: cfg.Discord.AvatarURL,
	}, deps)

	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("round loop exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("roundbot stopped cleanly")
}

func newQuerier(cfg *config.Config, client *onchain.Client, stable string) (ports.RoundQuerier, error) {
	if cfg.Bot.QueryMode == config.QueryModePeriphery {
		return onchain.NewPeripheryQuerier(client, cfg.Chain.Periphery, cfg.Chain.Competition, stable)
	}
	return onchain.NewCompetitionQuerier(client, cfg.Chain.Competition, cfg.Chain.Router, stable)
}

// newDecider arma la cadena AI -> random. Sin LLM todas las decisiones son random.
func newDecider(cfg *config.Config, prompt config.Prompt) (*decision.Chain, error) {
	fallback := decision.NewRandom(nil)
	if !cfg.LLM.Enabled {
		return decision.NewChain(nil, fallback), nil
	}

	gemini := llm.NewGemini(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey,
		Temperature:       cfg.LLM.Temperature,
		TopP:              cfg.LLM.TopP,
		TopK:              cfg.LLM.TopK,
		MaxOutputTokens:   cfg.LLM.MaxOutputTokens,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	})
	ai, err := decision.NewAI(gemini, prompt.Template)
	if err != nil {
		slog.Warn("invalid prompt template, using built-in prompt", "err", err)
		ai, err = decision.NewAI(gemini, config.DefaultPrompt)
		if err != nil {
			return nil, err
		}
	}
	return decision.NewChain(ai, fallback), nil
}

// confirmStart da 5 segundos para abortar con Ctrl+C antes de operar con fondos reales.
func confirmStart(ctx context.Context, account string) bool {
	fmt.Printf("\n⚠️  LIVE TRADING: swaps will be signed by %s\n", engine.ShortAddr(account))
	fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

	abortTimer := time.NewTimer(5 * time.Second)
	defer abortTimer.Stop()
	select {
	case <-abortTimer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
