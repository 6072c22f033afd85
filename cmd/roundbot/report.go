package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/roundbot/internal/adapters/storage"
	"github.com/alejandrodnm/roundbot/internal/application/engine"
)

// runReport imprime las últimas limit rondas del journal.
func runReport(ctx context.Context, dsn string, limit int, out io.Writer) error {
	if dsn == "" {
		return errors.New("storage.dsn is required for -report (or STORAGE_DSN)")
	}

	journal, err := storage.NewSQLiteJournal(dsn)
	if err != nil {
		return err
	}
	defer journal.Close()

	sums, err := journal.RoundSummaries(ctx, limit)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Fprintln(out, "no rounds recorded")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Started", "Token", "Dur", "Cycles", "Buy/Sell/Hold", "Swaps ok", "Failed", "First", "Last", "Δ")
	for _, s := range sums {
		dur := "open"
		if s.EndedAt != nil {
			dur = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		change := "n/a"
		if s.FirstPrice > 0 && s.LastPrice > 0 {
			change = fmt.Sprintf("%+.2f%%", (s.LastPrice/s.FirstPrice-1)*100)
		}
		table.Append(
			s.StartedAt.Local().Format("01-02 15:04"),
			engine.ShortAddr(s.Token),
			dur,
			fmt.Sprintf("%d", s.Cycles),
			fmt.Sprintf("%d/%d/%d", s.Buys, s.Sells, s.NoTrades),
			fmt.Sprintf("%d", s.Executed),
			fmt.Sprintf("%d", s.Failed),
			fmt.Sprintf("%.6f", s.FirstPrice),
			fmt.Sprintf("%.6f", s.LastPrice),
			change,
		)
	}
	table.Render()
	return nil
}
