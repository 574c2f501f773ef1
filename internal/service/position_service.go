package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"position-monitor/internal/contract"
	"position-monitor/internal/dto"
	"position-monitor/internal/model"
	"position-monitor/pkg/exchange"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/metrics"
	"position-monitor/pkg/utils"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// PositionService is the entry and manual-close workflow shared by the HTTP
// API and the Telegram bot.
type PositionService interface {
	CreatePosition(ctx context.Context, req dto.CreatePositionRequest) (*model.Position, error)
	ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error)
	FindPositionsByName(ctx context.Context, name string) ([]model.Position, error)
	GetPosition(ctx context.Context, id uint) (*model.Position, error)
	ClosePositionManually(ctx context.Context, id uint) (*dto.CloseEvent, error)
	GetPositionLogs(ctx context.Context, id uint) ([]dto.PositionLogResponse, error)
	GetExchangeLinks(ctx context.Context, id uint) ([]exchange.Link, error)
	DeletePosition(ctx context.Context, id uint) error
}

type positionService struct {
	log      *logger.Logger
	store    contract.PositionStore
	quotes   contract.QuoteFetcher
	notifier contract.Notifier
	validate *validator.Validate
}

func NewPositionService(
	log *logger.Logger,
	store contract.PositionStore,
	quotes contract.QuoteFetcher,
	notifier contract.Notifier,
	validate *validator.Validate,
) PositionService {
	return &positionService{
		log:      log,
		store:    store,
		quotes:   quotes,
		notifier: notifier,
		validate: validate,
	}
}

func (s *positionService) CreatePosition(ctx context.Context, req dto.CreatePositionRequest) (*model.Position, error) {
	req.Name = strings.ToUpper(strings.TrimSpace(req.Name))

	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrInvalidInput, err)
	}
	if err := validateThresholdOrder(req.Direction, req.TakeProfit, req.StopLoss); err != nil {
		return nil, err
	}

	quote, err := s.quotes.Fetch(ctx, req.Name)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to fetch entry price", logger.StringField("symbol", req.Name), logger.ErrorField(err))
		return nil, fmt.Errorf("%w: %s: %v", dto.ErrQuoteUnavailable, req.Name, err)
	}
	if !quote.Found {
		return nil, fmt.Errorf("%w: %s", dto.ErrQuoteUnavailable, req.Name)
	}

	position := &model.Position{
		Name:       req.Name,
		Direction:  string(req.Direction),
		Percent:    req.Percent,
		Leverage:   req.Leverage,
		EntryPrice: quote.Price,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		IsActive:   true,
	}

	if hit := EvaluateThreshold(req.Direction, quote.Price, req.TakeProfit, req.StopLoss); hit != dto.ThresholdNone {
		s.log.WarnContext(ctx, "Position opened past its threshold, it will close on the next cycle",
			logger.StringField("symbol", req.Name),
			logger.StringField("hit", string(hit)),
			logger.FloatField("entry_price", quote.Price))
	}

	if _, err := s.store.CreatePosition(ctx, position); err != nil {
		s.log.ErrorContext(ctx, "Failed to create position", logger.StringField("symbol", req.Name), logger.ErrorField(err))
		return nil, err
	}

	s.log.InfoContext(ctx, "Position created",
		logger.UintField("position_id", position.ID),
		logger.StringField("symbol", position.Name),
		logger.StringField("direction", position.Direction),
		logger.FloatField("entry_price", position.EntryPrice))
	return position, nil
}

func validateThresholdOrder(direction dto.Direction, takeProfit, stopLoss float64) error {
	switch {
	case takeProfit == stopLoss:
		return fmt.Errorf("%w: take profit must differ from stop loss", dto.ErrInvalidInput)
	case direction == dto.DirectionLong && takeProfit < stopLoss:
		return fmt.Errorf("%w: long take profit must be above stop loss", dto.ErrInvalidInput)
	case direction == dto.DirectionShort && takeProfit > stopLoss:
		return fmt.Errorf("%w: short take profit must be below stop loss", dto.ErrInvalidInput)
	}
	return nil
}

func (s *positionService) ListPositions(ctx context.Context, activeOnly bool) ([]model.Position, error) {
	return s.store.ListPositions(ctx, activeOnly)
}

func (s *positionService) FindPositionsByName(ctx context.Context, name string) ([]model.Position, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("%w: empty symbol", dto.ErrInvalidInput)
	}
	return s.store.FindPositionsByName(ctx, name)
}

// DeletePosition removes a position of any status together with its audit
// log. The monitor never sees it again.
func (s *positionService) DeletePosition(ctx context.Context, id uint) error {
	if err := s.store.DeletePosition(ctx, id); err != nil {
		if !errors.Is(err, dto.ErrPositionNotFound) {
			s.log.ErrorContext(ctx, "Failed to delete position", logger.UintField("position_id", id), logger.ErrorField(err))
		}
		return err
	}
	s.log.InfoContext(ctx, "Position deleted", logger.UintField("position_id", id))
	return nil
}

func (s *positionService) GetPosition(ctx context.Context, id uint) (*model.Position, error) {
	return s.store.GetPosition(ctx, id)
}

// ClosePositionManually closes an active position at the live price with
// reason manual.
func (s *positionService) ClosePositionManually(ctx context.Context, id uint) (*dto.CloseEvent, error) {
	position, err := s.store.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}
	if !position.IsActive {
		return nil, dto.ErrPositionAlreadyClosed
	}

	quote, err := s.quotes.Fetch(ctx, position.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dto.ErrQuoteUnavailable, position.Name, err)
	}
	if !quote.Found {
		return nil, fmt.Errorf("%w: %s", dto.ErrQuoteUnavailable, position.Name)
	}

	pnl, err := ComputePnL(position.EntryPrice, quote.Price, dto.Direction(position.Direction), position.Leverage, position.Percent)
	if err != nil {
		return nil, err
	}

	closeReq := dto.PositionClose{
		Reason:   dto.CloseReasonManual,
		ClosedAt: utils.TimeNow(),
		FinalPnL: pnl,
		Price:    quote.Price,
	}
	if err := s.store.ClosePosition(ctx, id, closeReq); err != nil {
		if !errors.Is(err, dto.ErrPositionAlreadyClosed) {
			s.log.ErrorContext(ctx, "Failed to close position manually", logger.UintField("position_id", id), logger.ErrorField(err))
		}
		return nil, err
	}

	metrics.PositionsClosedTotal.WithLabelValues(string(dto.CloseReasonManual)).Inc()
	s.log.InfoContext(ctx, "Position closed manually",
		logger.UintField("position_id", id),
		logger.FloatField("price", quote.Price),
		logger.FloatField("final_pnl", pnl))

	event := dto.NewCloseEvent(*position, closeReq)
	s.notifier.Notify(ctx, event)
	return &event, nil
}

func (s *positionService) GetPositionLogs(ctx context.Context, id uint) ([]dto.PositionLogResponse, error) {
	if _, err := s.store.GetPosition(ctx, id); err != nil {
		return nil, err
	}

	logs, err := s.store.ListPositionLogs(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := make([]dto.PositionLogResponse, 0, len(logs))
	for _, l := range logs {
		details := map[string]interface{}{}
		if len(l.Details) > 0 {
			if err := jsoniter.Unmarshal(l.Details, &details); err != nil {
				s.log.WarnContext(ctx, "Malformed position log details", logger.UintField("log_id", l.ID), logger.ErrorField(err))
			}
		}
		resp = append(resp, dto.PositionLogResponse{
			ID:        l.ID,
			Action:    l.Action,
			Details:   details,
			CreatedAt: l.CreatedAt,
		})
	}
	return resp, nil
}

func (s *positionService) GetExchangeLinks(ctx context.Context, id uint) ([]exchange.Link, error) {
	position, err := s.store.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}
	return exchange.Links(position.Name), nil
}
