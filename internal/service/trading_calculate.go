package service

import (
	"fmt"
	"math"

	"position-monitor/internal/dto"

	"github.com/shopspring/decimal"
)

const (
	minLeverage = 1
	minPercent  = 1
	maxPercent  = 100
)

func isValidPrice(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// EvaluateThreshold decides whether currentPrice crossed the take profit or
// stop loss of a position. A threshold that is not a positive finite number
// counts as unset. When both are crossed the take profit wins.
func EvaluateThreshold(direction dto.Direction, currentPrice, takeProfit, stopLoss float64) dto.ThresholdHit {
	if !isValidPrice(currentPrice) {
		return dto.ThresholdNone
	}

	var tpHit, slHit bool
	switch direction {
	case dto.DirectionLong:
		tpHit = isValidPrice(takeProfit) && currentPrice >= takeProfit
		slHit = isValidPrice(stopLoss) && currentPrice <= stopLoss
	case dto.DirectionShort:
		tpHit = isValidPrice(takeProfit) && currentPrice <= takeProfit
		slHit = isValidPrice(stopLoss) && currentPrice >= stopLoss
	default:
		return dto.ThresholdNone
	}

	switch {
	case tpHit:
		return dto.ThresholdTPHit
	case slHit:
		return dto.ThresholdSLHit
	}
	return dto.ThresholdNone
}

// ComputePnL returns the realized return of a position in percent, rounded to
// two places half away from zero:
//
//	(current - entry) / entry * sign * leverage * percent/100 * 100
func ComputePnL(entryPrice, currentPrice float64, direction dto.Direction, leverage, percent int) (float64, error) {
	if !isValidPrice(entryPrice) {
		return 0, fmt.Errorf("%w: entry price %v", dto.ErrInvalidInput, entryPrice)
	}
	if !isValidPrice(currentPrice) {
		return 0, fmt.Errorf("%w: current price %v", dto.ErrInvalidInput, currentPrice)
	}
	if leverage < minLeverage {
		return 0, fmt.Errorf("%w: leverage %d", dto.ErrInvalidInput, leverage)
	}
	if percent < minPercent || percent > maxPercent {
		return 0, fmt.Errorf("%w: percent %d", dto.ErrInvalidInput, percent)
	}

	var sign int64
	switch direction {
	case dto.DirectionLong:
		sign = 1
	case dto.DirectionShort:
		sign = -1
	default:
		return 0, fmt.Errorf("%w: direction %q", dto.ErrInvalidInput, direction)
	}

	entry := decimal.NewFromFloat(entryPrice)
	current := decimal.NewFromFloat(currentPrice)

	// percent/100 and the x100 to percent units cancel out.
	pnl := current.Sub(entry).
		Mul(decimal.NewFromInt(sign * int64(leverage) * int64(percent))).
		Div(entry).
		Round(2)

	return pnl.InexactFloat64(), nil
}
