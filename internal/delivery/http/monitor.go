package http

import (
	"net/http"

	"position-monitor/internal/dto"

	"github.com/labstack/echo/v4"
	jsoniter "github.com/json-iterator/go"
)

func (h *HttpAPIHandler) SetupMonitor(base *echo.Group) {
	v1 := base.Group("/v1/monitor")
	{
		v1.POST("/run", h.RunMonitor)
	}
}

// RunMonitor runs one cycle synchronously and returns its report.
func (h *HttpAPIHandler) RunMonitor(c echo.Context) error {
	result, err := h.service.SchedulerService.RunMonitorNow(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, err))
	}

	var data interface{} = result.Output
	var report dto.MonitorCycleOutput
	if jsoniter.UnmarshalFromString(result.Output, &report) == nil {
		data = report
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(result.ResultLabel(), data))
}
