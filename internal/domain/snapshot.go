package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidReserves indica un pool con alguna reserva <= 0; el ciclo se salta.
var ErrInvalidReserves = errors.New("invalid pool reserves")

// DefaultHistoryWindow es la cantidad de entradas recientes que entran en el snapshot.
const DefaultHistoryWindow = 10

// DefaultCandidatePcts son los tamaños de trade (en % del balance) para la tabla de impacto.
var DefaultCandidatePcts = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10}

// SnapshotOptions controla cómo se construye el snapshot.
type SnapshotOptions struct {
	Window        int
	CandidatePcts []float64
	Fee           float64
	Now           time.Time
}

// ImpactEstimate es una fila de la tabla de impacto: precio post-trade
// estimado para comprar o vender Percentage% del balance correspondiente.
type ImpactEstimate struct {
	Percentage float64
	BuyPrice   float64
	BuyOK      bool
	SellPrice  float64
	SellOK     bool
}

// MarketSnapshot es el resumen del mercado que recibe el decisor en cada ciclo.
type MarketSnapshot struct {
	Token       string
	Hour        int // índice absoluto del ciclo dentro de la ronda (0-based)
	Info        MarketInfo
	Price       float64
	PriceWindow []Indexed[PricePoint]
	TradeWindow []Indexed[TradeRecord]
	Impacts     []ImpactEstimate
}

// BuildSnapshot calcula el precio spot, lo añade al PriceHistory de la ronda
// y arma el snapshot con las ventanas de historial y la tabla de impacto.
//
// Si alguna reserva es <= 0 devuelve ErrInvalidReserves sin tocar el historial.
func BuildSnapshot(info MarketInfo, round *Round, opts SnapshotOptions) (MarketSnapshot, error) {
	if !info.ReservesValid() {
		return MarketSnapshot{}, fmt.Errorf("%w: stable=%v token=%v", ErrInvalidReserves, info.StableLP, info.TokenLP)
	}
	if opts.Window <= 0 {
		opts.Window = DefaultHistoryWindow
	}
	if opts.CandidatePcts == nil {
		opts.CandidatePcts = DefaultCandidatePcts
	}
	if opts.Fee <= 0 {
		opts.Fee = DefaultFee
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	price := SpotPrice(info.StableLP, info.TokenLP)
	round.Prices.Append(PricePoint{Price: price, ObservedAt: opts.Now})

	impacts := make([]ImpactEstimate, 0, len(opts.CandidatePcts))
	for _, pct := range opts.CandidatePcts {
		est := ImpactEstimate{Percentage: pct}
		est.BuyPrice, est.BuyOK = EstimateImpact(info.StableLP, info.TokenLP, info.StableBalance, pct, true, opts.Fee)
		est.SellPrice, est.SellOK = EstimateImpact(info.StableLP, info.TokenLP, info.TokenBalance, pct, false, opts.Fee)
		impacts = append(impacts, est)
	}

	return MarketSnapshot{
		Token:       round.Token,
		Hour:        round.Prices.Len() - 1,
		Info:        info,
		Price:       price,
		PriceWindow: round.Prices.Window(opts.Window),
		TradeWindow: round.Trades.Window(opts.Window),
		Impacts:     impacts,
	}, nil
}

// Summary devuelve el texto legible (humano / LLM) del snapshot.
func (s MarketSnapshot) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Token: %s\n", s.Token)
	fmt.Fprintf(&sb, "Hour: %d\n", s.Hour+1)
	fmt.Fprintf(&sb, "Your USDM balance: %.6f\n", s.Info.StableBalance)
	fmt.Fprintf(&sb, "Your token balance: %.6f\n", s.Info.TokenBalance)
	fmt.Fprintf(&sb, "Pool USDM reserve: %.6f\n", s.Info.StableLP)
	fmt.Fprintf(&sb, "Pool token reserve: %.6f\n", s.Info.TokenLP)
	fmt.Fprintf(&sb, "Current price (USDM per token): %.8f\n", s.Price)

	sb.WriteString("\nPrice history (most recent last):\n")
	for _, p := range s.PriceWindow {
		fmt.Fprintf(&sb, "  Hour %d: %.8f\n", p.Index+1, p.Value.Price)
	}

	sb.WriteString("\nYour previous decisions (most recent last):\n")
	if len(s.TradeWindow) == 0 {
		sb.WriteString("  none yet\n")
	}
	for _, t := range s.TradeWindow {
		fmt.Fprintf(&sb, "  Hour %d: %s %.4g%%\n", t.Index+1, t.Value.Action, t.Value.Percentage)
	}

	sb.WriteString("\nEstimated price after trade (constant-product approximation):\n")
	for _, imp := range s.Impacts {
		fmt.Fprintf(&sb, "  %6.2f%%: buy -> %s | sell -> %s\n",
			imp.Percentage, formatImpact(imp.BuyPrice, imp.BuyOK), formatImpact(imp.SellPrice, imp.SellOK))
	}
	return sb.String()
}

func formatImpact(price float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.8f", price)
}
