package api

import (
	"github.com/labstack/echo/v4"

	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

// SchedulerHandler exposes the reservation expiry scan.
type SchedulerHandler struct {
	logger    *xlogger.Logger
	scheduler *usecase.Scheduler
}

func NewSchedulerHandler(logger *xlogger.Logger, scheduler *usecase.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{logger: logger, scheduler: scheduler}
}

func (h *SchedulerHandler) Register(g *echo.Group) {
	g.GET("/scheduler/last-run", h.LastRun)
	g.POST("/scheduler/run", h.RunNow)
}

func (h *SchedulerHandler) LastRun(c echo.Context) error {
	report, err := h.scheduler.LastReport(c.Request().Context())
	if err != nil {
		return failure(c, h.logger, "scheduler last run", err)
	}
	if report == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no expiry scan has completed yet"))
	}
	return xhttp.SuccessResponse(c, report)
}

// RunNow triggers a scan outside the daily schedule. A scan already running
// on another replica yields 409.
func (h *SchedulerHandler) RunNow(c echo.Context) error {
	report, err := h.scheduler.RunOnce(c.Request().Context())
	if err != nil {
		return failure(c, h.logger, "scheduler run", err)
	}
	if report == nil {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("an expiry scan is already running"))
	}
	h.logger.Info("manual expiry scan finished",
		xlogger.String("actor", xhttp.ActorFromRequest(c).Name),
		xlogger.Int("created", report.Created()))
	return xhttp.SuccessResponse(c, report)
}
