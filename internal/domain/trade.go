package domain

import "time"

// SafetyFactor es el recorte fijo aplicado a cada monto para evitar que el
// redondeo deje el swap por encima del balance real.
const SafetyFactor = 0.999

// DefaultDustThreshold es el monto mínimo (en unidades del token) que vale la pena enviar.
const DefaultDustThreshold = 0.0001

// TradeAmount calcula el monto a gastar:
//
//	amount = balance × percentage/100 × multiplier × SafetyFactor
//
// multiplier <= 0 se trata como 1.
func TradeAmount(balance, percentage, multiplier float64) float64 {
	if !positive(balance) || !positive(percentage) {
		return 0
	}
	if !positive(multiplier) {
		multiplier = 1
	}
	return balance * percentage / 100 * multiplier * SafetyFactor
}

// SwapRequest es un swap exacto de entrada por el router.
type SwapRequest struct {
	Action       Action
	TokenIn      string
	TokenOut     string
	AmountIn     float64 // unidades de TokenIn
	MinAmountOut float64 // 0 = sin protección (máximo slippage)
	Recipient    string
	Deadline     time.Time
}

// TradeOutcome es el resultado de enviar un swap.
type TradeOutcome struct {
	Action     Action
	AmountIn   float64
	AmountOut  float64 // realizado, leído de los logs Transfer del receipt
	TxHash     string
	GasUsed    uint64
	Success    bool
	Error      string
	ExecutedAt time.Time
}

// Notification es un mensaje best-effort para el canal de avisos.
type Notification struct {
	Content   string
	Username  string // display name
	AvatarURL string
}
