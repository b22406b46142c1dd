package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "PowerLedger/internal/domain/models"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

// StationsHandler serves stations, bars and their power summaries.
type StationsHandler struct {
	logger   *xlogger.Logger
	stations *usecase.StationService
}

func NewStationsHandler(logger *xlogger.Logger, stations *usecase.StationService) *StationsHandler {
	return &StationsHandler{logger: logger, stations: stations}
}

func (h *StationsHandler) Register(g *echo.Group) {
	g.GET("/stations", h.List)
	g.GET("/stations/:id", h.Get)
	g.GET("/stations/:id/summary", h.Summary)
	g.GET("/stations/:id/bars", h.Bars)
	g.GET("/stations/:id/history", h.History)
	g.PUT("/stations/:id/capacity", h.UpdateCapacity)
	g.POST("/stations/:id/recalculate", h.Recalculate)
	g.GET("/bars/:id/summary", h.BarSummary)
}

func (h *StationsHandler) List(c echo.Context) error {
	res, err := h.stations.List(c.Request().Context())
	if err != nil {
		return failure(c, h.logger, "list stations", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *StationsHandler) Get(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.stations.Get(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "get station", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StationsHandler) Summary(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.stations.Summary(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "station summary", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StationsHandler) Bars(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.stations.ListBars(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "list bars", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *StationsHandler) BarSummary(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.stations.BarSummary(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "bar summary", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// History defaults to the last 24 hours.
func (h *StationsHandler) History(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	to := xhttp.ParseTimeDefault(req.To, time.Now().UTC())
	from := xhttp.ParseTimeDefault(req.From, to.Add(-24*time.Hour))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to").WithParam("field", "from"))
	}

	res, err := h.stations.History(c.Request().Context(), id, from, to, req.Limit)
	if err != nil {
		return failure(c, h.logger, "station history", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *StationsHandler) UpdateCapacity(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	req := &models.UpdateCapacityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.stations.UpdateCapacity(c.Request().Context(), xhttp.ActorFromRequest(c), id, req.TransformerCapacityKW)
	if err != nil {
		return failure(c, h.logger, "update capacity", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *StationsHandler) Recalculate(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.stations.Recalculate(c.Request().Context(), xhttp.ActorFromRequest(c), id)
	if err != nil {
		return failure(c, h.logger, "recalculate station", err)
	}
	return xhttp.SuccessResponse(c, res)
}
