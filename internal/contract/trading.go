package contract

import "position-monitor/internal/dto"

// PositionCalculator holds the pure TP/SL and PnL rules.
type PositionCalculator interface {
	EvaluateThreshold(direction dto.Direction, currentPrice, takeProfit, stopLoss float64) dto.ThresholdHit
	ComputePnL(entryPrice, currentPrice float64, direction dto.Direction, leverage, percent int) (float64, error)
}
