package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"position-monitor/config"
	"position-monitor/internal/dto"
	"position-monitor/pkg/httpclient"
	"position-monitor/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const bybitTickersEndpoint = "/v5/market/tickers"

// BybitRepository is the live quote source (Bybit v5 linear futures tickers).
type BybitRepository interface {
	Fetch(ctx context.Context, symbol string) (dto.QuoteResult, error)
}

type bybitRepository struct {
	httpClient     httpclient.HTTPClient
	category       string
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

func NewBybitRepository(cfg config.Bybit, log *logger.Logger) BybitRepository {
	return newBybitRepository(httpclient.New(cfg.BaseURL, cfg.Timeout), cfg, log)
}

func newBybitRepository(client httpclient.HTTPClient, cfg config.Bybit, log *logger.Logger) *bybitRepository {
	perRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	category := cfg.Category
	if category == "" {
		category = "linear"
	}

	return &bybitRepository{
		httpClient:     client,
		category:       category,
		logger:         log,
		requestLimiter: rate.NewLimiter(rate.Every(perRequest), burst),
	}
}

// Fetch returns Found false when Bybit rejects the symbol (non-zero retCode),
// returns no ticker, or returns a price that is not a positive number.
func (r *bybitRepository) Fetch(ctx context.Context, symbol string) (dto.QuoteResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	notFound := dto.QuoteResult{Symbol: symbol}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return notFound, err
	}

	var body dto.BybitTickerResponse
	resp, err := r.httpClient.Get(ctx, bybitTickersEndpoint, map[string]string{
		"category": r.category,
		"symbol":   symbol,
	}, nil, &body)
	if err != nil {
		return notFound, fmt.Errorf("failed to fetch %s ticker from bybit: %w", symbol, err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.WarnContext(ctx, "Bybit API returned Non-OK status for ticker",
			logger.StringField("symbol", symbol),
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return notFound, fmt.Errorf("bybit api returned status: %d", resp.StatusCode)
	}

	if body.RetCode != 0 {
		r.logger.DebugContext(ctx, "Bybit rejected ticker request",
			logger.StringField("symbol", symbol),
			logger.IntField("ret_code", body.RetCode),
			logger.StringField("ret_msg", body.RetMsg))
		return notFound, nil
	}

	if len(body.Result.List) == 0 {
		return notFound, nil
	}

	price, err := decimal.NewFromString(body.Result.List[0].LastPrice)
	if err != nil || !price.IsPositive() {
		r.logger.WarnContext(ctx, "Bybit returned unusable last price",
			logger.StringField("symbol", symbol),
			logger.StringField("last_price", body.Result.List[0].LastPrice))
		return notFound, nil
	}

	return dto.QuoteResult{
		Symbol: symbol,
		Price:  price.InexactFloat64(),
		Found:  true,
	}, nil
}
