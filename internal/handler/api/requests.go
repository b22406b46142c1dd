package api

import (
	"github.com/labstack/echo/v4"

	models "PowerLedger/internal/domain/models"
	drepo "PowerLedger/internal/domain/repository"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

// RequestsHandler serves capacity-expansion requests.
type RequestsHandler struct {
	logger   *xlogger.Logger
	requests *usecase.RequestService
}

func NewRequestsHandler(logger *xlogger.Logger, requests *usecase.RequestService) *RequestsHandler {
	return &RequestsHandler{logger: logger, requests: requests}
}

func (h *RequestsHandler) Register(g *echo.Group) {
	g.GET("/requests", h.List)
	g.POST("/requests", h.Create)
	g.GET("/requests/:id", h.Get)
	g.POST("/requests/:id/approve", h.Approve)
	g.POST("/requests/:id/reject", h.Reject)
}

func (h *RequestsHandler) List(c echo.Context) error {
	req := &models.ListRequestsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f := drepo.RequestFilter{Limit: req.Limit}
	if req.StationID > 0 {
		f.StationID = &req.StationID
	}
	if req.Status != "" {
		st := models.RequestStatus(req.Status)
		f.Status = &st
	}

	res, err := h.requests.List(c.Request().Context(), f)
	if err != nil {
		return failure(c, h.logger, "list requests", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *RequestsHandler) Get(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.requests.Get(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "get request", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RequestsHandler) Create(c echo.Context) error {
	req := &models.CreateRequestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.requests.Create(c.Request().Context(), xhttp.ActorFromRequest(c), usecase.RequestInput{
		StationID:             req.StationID,
		BarType:               req.BarType,
		CircuitID:             req.CircuitID,
		LocalItem:             req.LocalItem,
		RequestedLoadKW:       req.RequestedLoadKW,
		Fd:                    req.Fd,
		SubCircuitName:        req.SubCircuitName,
		SubCircuitDescription: req.SubCircuitDescription,
		SubCircuitITM:         req.SubCircuitITM,
		SubCircuitMM2:         req.SubCircuitMM2,
		Justification:         req.Justification,
	})
	if err != nil {
		return failure(c, h.logger, "create request", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *RequestsHandler) Approve(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	force, err := forceParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.requests.Approve(c.Request().Context(), xhttp.ActorFromRequest(c), id, force)
	if err != nil {
		return failure(c, h.logger, "approve request", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RequestsHandler) Reject(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	req := &models.RejectRequestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.requests.Reject(c.Request().Context(), xhttp.ActorFromRequest(c), id, req.Reason)
	if err != nil {
		return failure(c, h.logger, "reject request", err)
	}
	return xhttp.SuccessResponse(c, res)
}
