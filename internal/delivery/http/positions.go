package http

import (
	"fmt"
	"net/http"
	"strconv"

	"position-monitor/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupPositions(base *echo.Group) {
	v1 := base.Group("/v1/positions")
	{
		v1.POST("", h.CreatePosition)
		v1.GET("", h.ListPositions)
		v1.GET("/:id", h.GetPosition)
		v1.DELETE("/:id", h.DeletePosition)
		v1.POST("/:id/close", h.ClosePosition)
		v1.GET("/:id/logs", h.GetPositionLogs)
		v1.GET("/:id/links", h.GetPositionLinks)
	}
}

func (h *HttpAPIHandler) CreatePosition(c echo.Context) error {
	var req dto.CreatePositionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}

	position, err := h.service.PositionService.CreatePosition(c.Request().Context(), req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "position created", position))
}

// ListPositions returns active positions by default. With ?name= it returns
// every position of that symbol regardless of status.
func (h *HttpAPIHandler) ListPositions(c echo.Context) error {
	if name := c.QueryParam("name"); name != "" {
		positions, err := h.service.PositionService.FindPositionsByName(c.Request().Context(), name)
		if err != nil {
			return h.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", positions))
	}

	activeOnly := true
	if raw := c.QueryParam("active_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("active_only must be true or false"))
		}
		activeOnly = v
	}

	positions, err := h.service.PositionService.ListPositions(c.Request().Context(), activeOnly)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", positions))
}

func (h *HttpAPIHandler) GetPosition(c echo.Context) error {
	id, err := positionID(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	position, err := h.service.PositionService.GetPosition(c.Request().Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", position))
}

func (h *HttpAPIHandler) DeletePosition(c echo.Context) error {
	id, err := positionID(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	if err := h.service.PositionService.DeletePosition(c.Request().Context(), id); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("position deleted", nil))
}

func (h *HttpAPIHandler) ClosePosition(c echo.Context) error {
	id, err := positionID(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	event, err := h.service.PositionService.ClosePositionManually(c.Request().Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("position closed", event))
}

func (h *HttpAPIHandler) GetPositionLogs(c echo.Context) error {
	id, err := positionID(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	logs, err := h.service.PositionService.GetPositionLogs(c.Request().Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", logs))
}

func (h *HttpAPIHandler) GetPositionLinks(c echo.Context) error {
	id, err := positionID(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	links, err := h.service.PositionService.GetExchangeLinks(c.Request().Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", links))
}

func positionID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: position id %q", dto.ErrInvalidInput, c.Param("id"))
	}
	return uint(id), nil
}
