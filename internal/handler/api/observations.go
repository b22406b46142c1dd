package api

import (
	"github.com/labstack/echo/v4"

	models "PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

type ObservationsHandler struct {
	logger       *xlogger.Logger
	observations *usecase.ObservationService
}

func NewObservationsHandler(logger *xlogger.Logger, observations *usecase.ObservationService) *ObservationsHandler {
	return &ObservationsHandler{logger: logger, observations: observations}
}

func (h *ObservationsHandler) Register(g *echo.Group) {
	g.GET("/observations", h.List)
	g.POST("/observations", h.Create)
}

func (h *ObservationsHandler) List(c echo.Context) error {
	req := &models.ListObservationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f := drepo.ObservationFilter{Limit: req.Limit}
	if req.CircuitID > 0 {
		f.CircuitID = &req.CircuitID
	}
	if req.SubCircuitID > 0 {
		f.SubCircuitID = &req.SubCircuitID
	}
	if req.BarID > 0 {
		f.BarID = &req.BarID
	}

	res, err := h.observations.List(c.Request().Context(), f)
	if err != nil {
		return failure(c, h.logger, "list observations", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *ObservationsHandler) Create(c echo.Context) error {
	req := &models.CreateObservationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.observations.Create(c.Request().Context(), xhttp.ActorFromRequest(c), usecase.ObservationInput{
		CircuitID:    req.CircuitID,
		SubCircuitID: req.SubCircuitID,
		BarID:        req.BarID,
		Severity:     req.Severity,
		Content:      req.Content,
	})
	if err != nil {
		return failure(c, h.logger, "create observation", err)
	}
	return xhttp.CreatedResponse(c, res)
}
