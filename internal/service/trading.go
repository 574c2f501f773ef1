package service

import (
	"position-monitor/internal/contract"
	"position-monitor/internal/dto"
)

type TradingService interface {
	contract.PositionCalculator
}

type tradingService struct{}

func NewTradingService() TradingService {
	return &tradingService{}
}

func (s *tradingService) EvaluateThreshold(direction dto.Direction, currentPrice, takeProfit, stopLoss float64) dto.ThresholdHit {
	return EvaluateThreshold(direction, currentPrice, takeProfit, stopLoss)
}

func (s *tradingService) ComputePnL(entryPrice, currentPrice float64, direction dto.Direction, leverage, percent int) (float64, error) {
	return ComputePnL(entryPrice, currentPrice, direction, leverage, percent)
}
