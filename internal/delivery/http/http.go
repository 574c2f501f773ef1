package http

import (
	"errors"
	"net/http"

	"position-monitor/internal/dto"
	"position-monitor/internal/service"
	"position-monitor/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HttpAPIHandler struct {
	echo    *echo.Echo
	log     *logger.Logger
	service *service.Service
}

func NewHttpAPIHandler(echo *echo.Echo, log *logger.Logger, service *service.Service) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:    echo,
		log:     log,
		service: service,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	h.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	base := h.echo.Group("/api")
	h.SetupPositions(base)
	h.SetupMonitor(base)
}

// errorResponse maps service errors to HTTP status codes.
func (h *HttpAPIHandler) errorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, dto.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, dto.ErrPositionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, dto.ErrPositionAlreadyClosed):
		code = http.StatusConflict
	case errors.Is(err, dto.ErrQuoteUnavailable):
		code = http.StatusBadGateway
	}

	if code == http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "Request failed",
			logger.StringField("path", c.Path()),
			logger.ErrorField(err))
	}
	return c.JSON(code, dto.NewErrorResponse(code, err))
}
