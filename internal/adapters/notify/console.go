package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/roundbot/internal/domain"
)

// Console implementa ports.Notifier y ports.SnapshotPrinter sobre un io.Writer.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
// table=true imprime la tabla de impacto en cada ciclo; false una línea compacta.
func NewConsole(table bool) *Console {
	return NewConsoleWriter(os.Stdout, table)
}

// NewConsoleWriter crea un notificador sobre w (tests).
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// Notify imprime el mensaje con timestamp.
func (c *Console) Notify(_ context.Context, n domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", c.now().Format("15:04:05"), n.Content)
	return err
}

// PrintSnapshot imprime el estado del ciclo y la decisión tomada.
func (c *Console) PrintSnapshot(s domain.MarketSnapshot, d domain.TradeDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table {
		c.printFull(s, d)
	} else {
		c.printCompact(s, d)
	}
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(s domain.MarketSnapshot, d domain.TradeDecision) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s h%d price %.6f | USDM %.4f token %.4f | %s",
		c.now().Format("15:04:05"), shortToken(s.Token), s.Hour+1, s.Price,
		s.Info.StableBalance, s.Info.TokenBalance, decisionLabel(d))
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime balances, historial y la tabla de impacto.
func (c *Console) printFull(s domain.MarketSnapshot, d domain.TradeDecision) {
	fmt.Fprintf(c.out, "\n[%s] %s hour %d: price %.8f USDM\n",
		c.now().Format("15:04:05"), shortToken(s.Token), s.Hour+1, s.Price)
	fmt.Fprintf(c.out, "  balances: %.6f USDM | %.6f token   pool: %.4f USDM / %.4f token\n",
		s.Info.StableBalance, s.Info.TokenBalance, s.Info.StableLP, s.Info.TokenLP)

	if len(s.Impacts) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("%", "Buy → price", "Δ buy", "Sell → price", "Δ sell")
		for _, im := range s.Impacts {
			table.Append(
				fmt.Sprintf("%g%%", im.Percentage),
				impactCell(im.BuyPrice, im.BuyOK),
				deltaCell(s.Price, im.BuyPrice, im.BuyOK),
				impactCell(im.SellPrice, im.SellOK),
				deltaCell(s.Price, im.SellPrice, im.SellOK),
			)
		}
		table.Render()
	}

	fmt.Fprintf(c.out, "  decision: %s\n", decisionLabel(d))
}

func decisionLabel(d domain.TradeDecision) string {
	if d.IsNoTrade() {
		return fmt.Sprintf("%s 0%% (no trade) [%s]", d.Action, d.Source)
	}
	return fmt.Sprintf("%s %.4g%% [%s]", strings.ToUpper(string(d.Action)), d.Percentage, d.Source)
}

func impactCell(price float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.8f", price)
}

func deltaCell(spot, price float64, ok bool) string {
	if !ok || spot <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%+.3f%%", (price/spot-1)*100)
}

func shortToken(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
