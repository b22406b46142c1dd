package api

import (
	"github.com/labstack/echo/v4"

	models "PowerLedger/internal/domain/models"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

type SubCircuitsHandler struct {
	logger *xlogger.Logger
	subs   *usecase.SubCircuitService
}

func NewSubCircuitsHandler(logger *xlogger.Logger, subs *usecase.SubCircuitService) *SubCircuitsHandler {
	return &SubCircuitsHandler{logger: logger, subs: subs}
}

func (h *SubCircuitsHandler) Register(g *echo.Group) {
	g.GET("/circuits/:id/sub-circuits", h.ListByCircuit)
	g.POST("/circuits/:id/sub-circuits", h.Create)
	g.GET("/sub-circuits/:id", h.Get)
	g.PATCH("/sub-circuits/:id", h.Update)
	g.PUT("/sub-circuits/:id/status", h.ChangeStatus)
	g.DELETE("/sub-circuits/:id", h.Delete)
}

func (h *SubCircuitsHandler) ListByCircuit(c echo.Context) error {
	circuitID, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.subs.ListByCircuit(c.Request().Context(), circuitID)
	if err != nil {
		return failure(c, h.logger, "list sub-circuits", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *SubCircuitsHandler) Get(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.subs.Get(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "get sub-circuit", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SubCircuitsHandler) Create(c echo.Context) error {
	circuitID, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	force, err := forceParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	req := &models.CreateSubCircuitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.subs.Create(c.Request().Context(), xhttp.ActorFromRequest(c), circuitID, usecase.SubCircuitInput{
		Name:             req.Name,
		Description:      req.Description,
		ITM:              req.ITM,
		MM2:              req.MM2,
		PiKW:             req.PiKW,
		Fd:               req.Fd,
		MdKW:             req.MdKW,
		Status:           req.Status,
		ReserveExpiresAt: req.ReserveExpiresAt,
		Force:            force,
	})
	if err != nil {
		return failure(c, h.logger, "create sub-circuit", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *SubCircuitsHandler) Update(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	force, err := forceParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	req := &models.UpdateSubCircuitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.subs.Update(c.Request().Context(), xhttp.ActorFromRequest(c), id, usecase.SubCircuitPatch{
		Name:               req.Name,
		Description:        req.Description,
		ITM:                req.ITM,
		MM2:                req.MM2,
		PiKW:               req.PiKW,
		Fd:                 req.Fd,
		MdKW:               req.MdKW,
		ReserveExpiresAt:   req.ReserveExpiresAt,
		ClearReserveExpiry: req.ClearReserveExpiry,
		Force:              force,
	})
	if err != nil {
		return failure(c, h.logger, "update sub-circuit", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SubCircuitsHandler) ChangeStatus(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	force, err := forceParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	req := &models.ChangeStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.subs.ChangeStatus(c.Request().Context(), xhttp.ActorFromRequest(c), id, req.Status, force)
	if err != nil {
		return failure(c, h.logger, "change sub-circuit status", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SubCircuitsHandler) Delete(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	if err := h.subs.Delete(c.Request().Context(), xhttp.ActorFromRequest(c), id); err != nil {
		return failure(c, h.logger, "delete sub-circuit", err)
	}
	return xhttp.NoContentResponse(c)
}
