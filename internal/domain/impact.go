package domain

import "math"

// DefaultFee es el multiplicador de fee del pool (0.3% → 0.997).
const DefaultFee = 0.997

// EstimateImpact estima el precio (stable/token) que quedaría en un pool de
// producto constante después de un trade hipotético.
//
// Es una APROXIMACIÓN, no una consulta al router: ignora tokens con
// fee-on-transfer y el redondeo entero del pool real.
//
// Fórmula:
//
//	amountIn = userBalance × percentage / 100
//	k        = poolBase × poolQuote
//	buy:  newBase  = poolBase  + amountIn × fee ; newQuote = k / newBase
//	sell: newQuote = poolQuote + amountIn × fee ; newBase  = k / newQuote
//	price    = newBase / newQuote
//
// Devuelve ok=false si las reservas o el monto no son positivos, si percentage
// está fuera de (0, 100], o si algún valor intermedio no es finito.
func EstimateImpact(poolBase, poolQuote, userBalance, percentage float64, isBuy bool, fee float64) (float64, bool) {
	if !positive(poolBase) || !positive(poolQuote) {
		return 0, false
	}
	if !positive(percentage) || percentage > 100 {
		return 0, false
	}
	if !positive(fee) || fee > 1 {
		return 0, false
	}

	amountIn := userBalance * percentage / 100
	if !positive(amountIn) {
		return 0, false
	}

	k := poolBase * poolQuote
	var newBase, newQuote float64
	if isBuy {
		newBase = poolBase + amountIn*fee
		if !positive(newBase) {
			return 0, false
		}
		newQuote = k / newBase
	} else {
		newQuote = poolQuote + amountIn*fee
		if !positive(newQuote) {
			return 0, false
		}
		newBase = k / newQuote
	}

	if !positive(newBase) || !positive(newQuote) {
		return 0, false
	}
	price := newBase / newQuote
	if !positive(price) {
		return 0, false
	}
	return price, true
}

// SpotPrice devuelve stable/token. Las reservas deben validarse antes.
func SpotPrice(stableLP, tokenLP float64) float64 {
	return stableLP / tokenLP
}

// positive es true para valores finitos > 0.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
