package api

import (
	"github.com/labstack/echo/v4"

	models "PowerLedger/internal/domain/models"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

// CircuitsHandler serves circuit CRUD and admission checks. Routes that add
// load accept ?force=true to override a negative verdict.
type CircuitsHandler struct {
	logger   *xlogger.Logger
	circuits *usecase.CircuitService
}

func NewCircuitsHandler(logger *xlogger.Logger, circuits *usecase.CircuitService) *CircuitsHandler {
	return &CircuitsHandler{logger: logger, circuits: circuits}
}

func (h *CircuitsHandler) Register(g *echo.Group) {
	g.GET("/bars/:id/circuits", h.ListByBar)
	g.POST("/bars/:id/circuits", h.Create)
	g.POST("/circuits/check-capacity", h.CheckCapacity)
	g.GET("/circuits/:id", h.Get)
	g.PATCH("/circuits/:id", h.Update)
	g.PUT("/circuits/:id/status", h.ChangeStatus)
	g.DELETE("/circuits/:id", h.Delete)
}

func (h *CircuitsHandler) ListByBar(c echo.Context) error {
	barID, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.circuits.ListByBar(c.Request().Context(), barID)
	if err != nil {
		return failure(c, h.logger, "list circuits", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *CircuitsHandler) Get(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.circuits.Get(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "get circuit", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// CheckCapacity is read-only: it never reserves the headroom it reports.
func (h *CircuitsHandler) CheckCapacity(c echo.Context) error {
	req := &models.CapacityCheckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.circuits.CheckCapacity(c.Request().Context(), req.BarID, req.ProposedMD)
	if err != nil {
		return failure(c, h.logger, "check capacity", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CircuitsHandler) Create(c echo.Context) error {
	barID, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	force, err := forceParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	req := &models.CreateCircuitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.circuits.Create(c.Request().Context(), xhttp.ActorFromRequest(c), barID, usecase.CircuitInput{
		SecondaryBarID:    req.SecondaryBarID,
		Denomination:      req.Denomination,
		Name:              req.Name,
		Description:       req.Description,
		LocalItem:         req.LocalItem,
		PiKW:              req.PiKW,
		Fd:                req.Fd,
		MdKW:              req.MdKW,
		Status:            req.Status,
		IsUPS:             req.IsUPS,
		ReserveExpiresAt:  req.ReserveExpiresAt,
		ClientLastContact: req.ClientLastContact,
		Force:             force,
	})
	if err != nil {
		return failure(c, h.logger, "create circuit", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *CircuitsHandler) Update(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	force, err := forceParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	req := &models.UpdateCircuitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.circuits.Update(c.Request().Context(), xhttp.ActorFromRequest(c), id, usecase.CircuitPatch{
		Denomination:       req.Denomination,
		Name:               req.Name,
		Description:        req.Description,
		LocalItem:          req.LocalItem,
		PiKW:               req.PiKW,
		Fd:                 req.Fd,
		MdKW:               req.MdKW,
		ReserveExpiresAt:   req.ReserveExpiresAt,
		ClearReserveExpiry: req.ClearReserveExpiry,
		ClientLastContact:  req.ClientLastContact,
		Force:              force,
	})
	if err != nil {
		return failure(c, h.logger, "update circuit", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CircuitsHandler) ChangeStatus(c echo.Context) error {
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
	res, err := h.circuits.ChangeStatus(c.Request().Context(), xhttp.ActorFromRequest(c), id, req.Status, force)
	if err != nil {
		return failure(c, h.logger, "change circuit status", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CircuitsHandler) Delete(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	if err := h.circuits.Delete(c.Request().Context(), xhttp.ActorFromRequest(c), id); err != nil {
		return failure(c, h.logger, "delete circuit", err)
	}
	return xhttp.NoContentResponse(c)
}
