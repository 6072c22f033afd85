package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidDecision indica una respuesta del decisor que no pasa la validación.
var ErrInvalidDecision = errors.New("invalid trade decision")

// Action es la dirección del trade.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// ParseAction normaliza (case-insensitive) a buy o sell.
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return ActionBuy, true
	case "sell":
		return ActionSell, true
	}
	return "", false
}

// IsBuy devuelve true si la acción gasta el stable para comprar el token.
func (a Action) IsBuy() bool { return a == ActionBuy }

// Origen de una decisión.
const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// TradeDecision es lo que devuelve el decisor en cada ciclo.
type TradeDecision struct {
	Action     Action
	Percentage float64 // 0..100; 0 = no operar
	Source     string  // "ai" | "fallback"
}

// NewTradeDecision construye una decisión forzando Percentage a 0 si no es
// finito o está fuera de [0, 100].
func NewTradeDecision(action Action, percentage float64, source string) TradeDecision {
	if !validPercentage(percentage) {
		percentage = 0
	}
	return TradeDecision{Action: action, Percentage: percentage, Source: source}
}

// IsNoTrade devuelve true si la decisión no debe ejecutar un swap.
func (d TradeDecision) IsNoTrade() bool {
	return d.Percentage <= 0
}

func (d TradeDecision) String() string {
	return fmt.Sprintf("%s %.4g%%", d.Action, d.Percentage)
}

var (
	actionRe     = regexp.MustCompile(`(?i)Action:\s*(buy|sell)`)
	percentageRe = regexp.MustCompile(`(?i)Percentage:\s*(\d+(?:\.\d+)?)`)
)

// ParseDecision interpreta la respuesta cruda del decisor.
//
// Primero intenta JSON {"action": "...", "percentage": N}; si el texto no es
// JSON, prueba el formato etiquetado "Action: buy / Percentage: 5".
// Cualquier violación devuelve ErrInvalidDecision envuelto.
func ParseDecision(text string) (TradeDecision, error) {
	text = strings.TrimSpace(stripCodeFence(text))
	if text == "" {
		return TradeDecision{}, fmt.Errorf("%w: empty response", ErrInvalidDecision)
	}

	var raw struct {
		Action     *string         `json:"action"`
		Percentage json.RawMessage `json:"percentage"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		if raw.Action == nil {
			return TradeDecision{}, fmt.Errorf("%w: missing action", ErrInvalidDecision)
		}
		pct, err := parsePercentage(raw.Percentage)
		if err != nil {
			return TradeDecision{}, err
		}
		return validateDecision(*raw.Action, pct)
	}

	am := actionRe.FindStringSubmatch(text)
	pm := percentageRe.FindStringSubmatch(text)
	if am == nil || pm == nil {
		return TradeDecision{}, fmt.Errorf("%w: unrecognized response %q", ErrInvalidDecision, truncate(text, 80))
	}
	pct, err := strconv.ParseFloat(pm[1], 64)
	if err != nil {
		return TradeDecision{}, fmt.Errorf("%w: percentage %q", ErrInvalidDecision, pm[1])
	}
	return validateDecision(am[1], pct)
}

func validateDecision(action string, pct float64) (TradeDecision, error) {
	a, ok := ParseAction(action)
	if !ok {
		return TradeDecision{}, fmt.Errorf("%w: unknown action %q", ErrInvalidDecision, action)
	}
	if !validPercentage(pct) {
		return TradeDecision{}, fmt.Errorf("%w: percentage %v out of range", ErrInvalidDecision, pct)
	}
	return TradeDecision{Action: a, Percentage: pct, Source: SourceAI}, nil
}

// parsePercentage acepta un número JSON o un string numérico ("5", "5.5").
func parsePercentage(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("%w: missing percentage", ErrInvalidDecision)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: non-numeric percentage %s", ErrInvalidDecision, raw)
}

func validPercentage(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0 && p <= 100
}

// stripCodeFence quita ```json ... ``` si el modelo envolvió la respuesta.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
