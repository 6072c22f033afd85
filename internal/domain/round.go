package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrNoRound indica que la competición no tiene token activo.
var ErrNoRound = errors.New("no active round")

// RoundState es el estado del controlador de rondas.
type RoundState int

const (
	StateWaitingForRound RoundState = iota
	StateRoundActive
	StateEndingRound
)

func (s RoundState) String() string {
	switch s {
	case StateWaitingForRound:
		return "waiting_for_round"
	case StateRoundActive:
		return "round_active"
	case StateEndingRound:
		return "ending_round"
	}
	return "unknown"
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

// IsZeroToken devuelve true para "" o la dirección cero (sin ronda).
func IsZeroToken(token string) bool {
	t := strings.TrimSpace(token)
	return t == "" || strings.EqualFold(t, zeroAddress)
}

// SameToken compara direcciones sin distinguir mayúsculas (checksum vs lower).
func SameToken(a, b string) bool {
	if IsZeroToken(a) && IsZeroToken(b) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// MarketInfo es el estado on-chain leído en cada ciclo.
// Los montos están en unidades del token (no wei).
type MarketInfo struct {
	Token         string
	StableBalance float64
	TokenBalance  float64
	StableLP      float64 // reserva de stable en el pool
	TokenLP       float64 // reserva del token en el pool
}

// ReservesValid devuelve true si ambas reservas son positivas.
func (m MarketInfo) ReservesValid() bool {
	return positive(m.StableLP) && positive(m.TokenLP)
}

// PricePoint es un precio observado en un ciclo.
type PricePoint struct {
	Price      float64
	ObservedAt time.Time
}

// TradeRecord es una decisión tomada en un ciclo, se haya ejecutado o no.
type TradeRecord struct {
	Action     Action
	Percentage float64
	Source     string
	DecidedAt  time.Time
}

// Indexed envuelve un elemento con su posición absoluta dentro de la ronda.
type Indexed[T any] struct {
	Index int // 0-based dentro de la ronda
	Value T
}

// History es la secuencia de entradas de una ronda.
type History[T any] struct {
	items []T
}

// Append añade un elemento al final.
func (h *History[T]) Append(v T) {
	h.items = append(h.items, v)
}

// DropLast descarta el último elemento, si hay. Se usa cuando un ciclo se
// aborta después de registrar el precio.
func (h *History[T]) DropLast() {
	if len(h.items) > 0 {
		h.items = h.items[:len(h.items)-1]
	}
}

// Len devuelve la cantidad de elementos.
func (h *History[T]) Len() int {
	return len(h.items)
}

// Last devuelve el último elemento.
func (h *History[T]) Last() (T, bool) {
	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	return h.items[len(h.items)-1], true
}

// First devuelve el primer elemento.
func (h *History[T]) First() (T, bool) {
	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	return h.items[0], true
}

// Window devuelve los últimos min(n, Len) elementos con su índice absoluto.
func (h *History[T]) Window(n int) []Indexed[T] {
	if n <= 0 || len(h.items) == 0 {
		return nil
	}
	start := len(h.items) - n
	if start < 0 {
		start = 0
	}
	out := make([]Indexed[T], 0, len(h.items)-start)
	for i := start; i < len(h.items); i++ {
		out = append(out, Indexed[T]{Index: i, Value: h.items[i]})
	}
	return out
}

// Reset descarta todo el historial.
func (h *History[T]) Reset() {
	h.items = nil
}

// PriceHistory y TradeHistory son los historiales por ronda.
type (
	PriceHistory = History[PricePoint]
	TradeHistory = History[TradeRecord]
)

// Round es una ronda de la competición, identificada por el token activo.
type Round struct {
	ID        string
	Token     string
	StartedAt time.Time
	Prices    PriceHistory
	Trades    TradeHistory
	Approved  bool // allowances del router confirmadas para esta ronda
	Executed  int  // swaps confirmados
	Failed    int  // swaps fallidos
}

// NewRound crea una ronda con historiales vacíos.
func NewRound(id, token string, startedAt time.Time) *Round {
	return &Round{ID: id, Token: token, StartedAt: startedAt}
}

// RecordDecision añade la decisión al TradeHistory, incondicionalmente.
func (r *Round) RecordDecision(d TradeDecision, at time.Time) {
	r.Trades.Append(TradeRecord{
		Action:     d.Action,
		Percentage: d.Percentage,
		Source:     d.Source,
		DecidedAt:  at,
	})
}

// Reset vacía ambos historiales y los contadores.
func (r *Round) Reset() {
	r.Prices.Reset()
	r.Trades.Reset()
	r.Executed = 0
	r.Failed = 0
}
