package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	models "PowerLedger/internal/domain/models"
	mid "PowerLedger/internal/middleware"
	"PowerLedger/internal/service/ratelimit"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

// BackupsHandler serves ledger snapshots. Creating and restoring are
// expensive and share one per-caller rate limit.
type BackupsHandler struct {
	logger    *xlogger.Logger
	snapshots *usecase.SnapshotCoordinator
	rl        *ratelimit.Limiter
	rlCfg     mid.RateLimitConfig
	listLimit int
}

func NewBackupsHandler(
	logger *xlogger.Logger,
	snapshots *usecase.SnapshotCoordinator,
	rl *ratelimit.Limiter,
	rlCfg mid.RateLimitConfig,
	listLimit int,
) *BackupsHandler {
	return &BackupsHandler{logger: logger, snapshots: snapshots, rl: rl, rlCfg: rlCfg, listLimit: listLimit}
}

func (h *BackupsHandler) Register(g *echo.Group) {
	g.GET("/backups", h.List)
	g.GET("/backups/:id", h.Get)
	g.GET("/backups/:id/download", h.Download)
	g.DELETE("/backups/:id", h.Delete)

	var limited []echo.MiddlewareFunc
	if h.rl != nil {
		limited = append(limited, mid.RateLimit(h.rl, h.rlCfg, h.logger))
	}
	g.POST("/backups", h.Create, limited...)
	g.POST("/backups/:id/restore", h.Restore, limited...)
}

func (h *BackupsHandler) List(c echo.Context) error {
	req := &models.ListBackupsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	limit := req.Limit
	if limit == 0 || limit > h.listLimit {
		limit = h.listLimit
	}
	res, err := h.snapshots.List(c.Request().Context(), limit)
	if err != nil {
		return failure(c, h.logger, "list backups", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *BackupsHandler) Get(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.snapshots.Get(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "get backup", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Download streams the raw snapshot document.
func (h *BackupsHandler) Download(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.snapshots.Get(c.Request().Context(), id)
	if err != nil {
		return failure(c, h.logger, "download backup", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+res.FileName+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, res.Document)
}

func (h *BackupsHandler) Create(c echo.Context) error {
	req := &models.CreateBackupRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.snapshots.Create(c.Request().Context(), xhttp.ActorFromRequest(c), req.IncludeAudit, req.Description)
	if err != nil {
		return failure(c, h.logger, "create backup", err)
	}
	return xhttp.CreatedResponse(c, res)
}

// Restore replaces the whole ledger with the backup's contents.
func (h *BackupsHandler) Restore(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.snapshots.Restore(c.Request().Context(), xhttp.ActorFromRequest(c), id)
	if err != nil {
		return failure(c, h.logger, "restore backup", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BackupsHandler) Delete(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	if err := h.snapshots.Delete(c.Request().Context(), xhttp.ActorFromRequest(c), id); err != nil {
		return failure(c, h.logger, "delete backup", err)
	}
	return xhttp.NoContentResponse(c)
}
