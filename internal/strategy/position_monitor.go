package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"position-monitor/config"
	"position-monitor/internal/contract"
	"position-monitor/internal/dto"
	"position-monitor/internal/model"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/metrics"
	"position-monitor/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
)

// PositionMonitorStrategy runs one TP/SL cycle: load active positions, fetch
// one quote per symbol, close every position whose threshold was crossed and
// notify about it.
type PositionMonitorStrategy struct {
	cfg        config.Monitor
	log        *logger.Logger
	store      contract.PositionStore
	quotes     contract.QuoteFetcher
	notifier   contract.Notifier
	calculator contract.PositionCalculator
}

func NewPositionMonitorStrategy(
	cfg config.Monitor,
	log *logger.Logger,
	store contract.PositionStore,
	quotes contract.QuoteFetcher,
	notifier contract.Notifier,
	calculator contract.PositionCalculator,
) *PositionMonitorStrategy {
	return &PositionMonitorStrategy{
		cfg:        cfg,
		log:        log,
		store:      store,
		quotes:     quotes,
		notifier:   notifier,
		calculator: calculator,
	}
}

func (s *PositionMonitorStrategy) GetType() JobType {
	return JobTypePositionMonitor
}

func (s *PositionMonitorStrategy) Execute(ctx context.Context, run JobRun) (JobResult, error) {
	ctx = logger.NewContext(ctx, s.log.FromContext(ctx).With(logger.Uint64Field("cycle", run.ID)))

	positions, err := s.store.ListPositions(ctx, true)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to load active positions", logger.ErrorField(err))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to load active positions: %v", err)}, fmt.Errorf("failed to load active positions: %w", err)
	}
	metrics.ActivePositions.Set(float64(len(positions)))

	if len(positions) == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no active positions"}, nil
	}

	symbols := uniqueSymbols(positions)
	quotes := s.FetchQuotes(ctx, symbols)

	output := dto.MonitorCycleOutput{
		Cycle:           run.ID,
		ActivePositions: len(positions),
		Symbols:         len(symbols),
		Closed:          []dto.ClosedPositionOutput{},
	}
	for _, symbol := range symbols {
		if quotes[symbol].Found {
			output.QuotesFound++
			continue
		}
		output.Errors = append(output.Errors, dto.PositionErrorOutput{
			Symbol: symbol,
			Error:  dto.ErrQuoteUnavailable.Error(),
		})
	}

	for i, position := range positions {
		if !utils.ShouldContinue(ctx, s.log) {
			// the rest of the snapshot stays active and is retried next cycle
			cause := context.Cause(ctx)
			s.log.WarnContext(ctx, "Cycle ended before every position was evaluated",
				logger.IntField("unevaluated", len(positions)-i),
				logger.ErrorField(cause))
			for _, skipped := range positions[i:] {
				output.Errors = append(output.Errors, dto.PositionErrorOutput{
					PositionID: skipped.ID,
					Symbol:     skipped.Name,
					Error:      fmt.Sprintf("not evaluated: %v", cause),
				})
			}
			break
		}

		event, err := s.ProcessPosition(ctx, position, quotes[position.Name])
		if err != nil {
			output.Errors = append(output.Errors, dto.PositionErrorOutput{
				PositionID: position.ID,
				Symbol:     position.Name,
				Error:      err.Error(),
			})
			continue
		}
		if event == nil {
			continue
		}
		output.Closed = append(output.Closed, dto.ClosedPositionOutput{
			PositionID: event.PositionID,
			Name:       event.Name,
			Reason:     event.Reason,
			Price:      event.Price,
			FinalPnL:   event.FinalPnL,
		})
	}

	res, err := jsoniter.Marshal(output)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal results: %v", err)}, fmt.Errorf("failed to marshal results: %w", err)
	}

	exitCode := int32(JOB_EXIT_CODE_SUCCESS)
	if len(output.Errors) > 0 {
		exitCode = JOB_EXIT_CODE_PARTIAL_SUCCESS
	}
	return JobResult{ExitCode: exitCode, Output: string(res)}, nil
}

// FetchQuotes looks up every symbol once through a bounded pool. A failed
// lookup only affects its own symbol and is reported as not found.
func (s *PositionMonitorStrategy) FetchQuotes(ctx context.Context, symbols []string) map[string]dto.QuoteResult {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]dto.QuoteResult, len(symbols))
	)

	limit := s.cfg.MaxConcurrentFetch
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			quote, err := s.fetchQuote(ctx, symbol)
			if err != nil {
				metrics.QuoteFetchFailuresTotal.WithLabelValues("error").Inc()
				s.log.WarnContext(ctx, "Quote unavailable",
					logger.StringField("symbol", symbol),
					logger.ErrorField(err))
				quote = dto.QuoteResult{Symbol: symbol}
			} else if !quote.Found {
				metrics.QuoteFetchFailuresTotal.WithLabelValues("not_found").Inc()
				s.log.DebugContext(ctx, "Quote not found", logger.StringField("symbol", symbol))
			}

			mu.Lock()
			results[symbol] = quote
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *PositionMonitorStrategy) fetchQuote(ctx context.Context, symbol string) (q dto.QuoteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while fetching %s: %v", dto.ErrQuoteUnavailable, symbol, r)
		}
	}()
	return s.quotes.Fetch(ctx, symbol)
}

// ProcessPosition evaluates one position snapshot against its quote. It
// returns the close event when the position was closed by this call, nil when
// nothing happened, and an error for a store failure or malformed data.
func (s *PositionMonitorStrategy) ProcessPosition(ctx context.Context, position model.Position, quote dto.QuoteResult) (*dto.CloseEvent, error) {
	if !position.IsActive || !quote.Found {
		return nil, nil
	}

	direction := dto.Direction(position.Direction)
	hit := s.calculator.EvaluateThreshold(direction, quote.Price, position.TakeProfit, position.StopLoss)
	if hit == dto.ThresholdNone {
		return nil, nil
	}

	pnl, err := s.calculator.ComputePnL(position.EntryPrice, quote.Price, direction, position.Leverage, position.Percent)
	if err != nil {
		s.log.WarnContextWithAlert(ctx, "Skipping position with invalid data",
			logger.UintField("position_id", position.ID),
			logger.StringField("symbol", position.Name),
			logger.ErrorField(err))
		return nil, err
	}

	closeReq := dto.PositionClose{
		Reason:   hit.CloseReason(),
		ClosedAt: utils.TimeNow(),
		FinalPnL: pnl,
		Price:    quote.Price,
	}

	if s.cfg.ConditionalClose {
		err = s.store.ClosePosition(ctx, position.ID, closeReq)
	} else {
		err = s.store.UpdatePosition(ctx, position.ID, closeReq.Update())
	}
	if errors.Is(err, dto.ErrPositionAlreadyClosed) {
		s.log.InfoContext(ctx, "Position already closed elsewhere", logger.UintField("position_id", position.ID))
		return nil, nil
	}
	if err != nil {
		metrics.StoreWriteFailuresTotal.Inc()
		if !errors.Is(err, dto.ErrStoreWriteFailed) {
			err = fmt.Errorf("%w: %v", dto.ErrStoreWriteFailed, err)
		}
		s.log.ErrorContext(ctx, "Failed to close position",
			logger.UintField("position_id", position.ID),
			logger.StringField("symbol", position.Name),
			logger.ErrorField(err))
		return nil, err
	}

	metrics.PositionsClosedTotal.WithLabelValues(string(closeReq.Reason)).Inc()
	s.log.InfoContext(ctx, "Position closed",
		logger.UintField("position_id", position.ID),
		logger.StringField("symbol", position.Name),
		logger.StringField("reason", string(closeReq.Reason)),
		logger.FloatField("price", quote.Price),
		logger.FloatField("final_pnl", pnl))

	event := dto.NewCloseEvent(position, closeReq)
	s.notifier.Notify(ctx, event)
	return &event, nil
}

// uniqueSymbols keeps the first-seen order of position names.
func uniqueSymbols(positions []model.Position) []string {
	seen := make(map[string]struct{}, len(positions))
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		symbols = append(symbols, p.Name)
	}
	return symbols
}
