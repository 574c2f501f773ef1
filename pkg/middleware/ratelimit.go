package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Response is the body returned when a request is throttled.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	RequestPerSecond float64
	Burst            int
	ExpiresIn        time.Duration
	// Skip bypasses throttling, e.g. for /metrics scrapes.
	Skip func(c echo.Context) bool
}

func NewRateLimiterMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	skipper := middleware.DefaultSkipper
	if cfg.Skip != nil {
		skipper = cfg.Skip
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: skipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RequestPerSecond),
				Burst:     cfg.Burst,
				ExpiresIn: cfg.ExpiresIn,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, Response{
				Code:    http.StatusForbidden,
				Message: "rate limiter error",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, Response{
				Code:    http.StatusTooManyRequests,
				Message: "too many requests, try again later",
			})
		},
	})
}
