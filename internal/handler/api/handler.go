package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
	"PowerLedger/pkg/ws"
)

// LedgerHandler mounts every ledger route under /api plus the live feed.
type LedgerHandler struct {
	logger        *xlogger.Logger
	stations      *StationsHandler
	circuits      *CircuitsHandler
	subCircuits   *SubCircuitsHandler
	requests      *RequestsHandler
	observations  *ObservationsHandler
	notifications *NotificationsHandler
	backups       *BackupsHandler
	scheduler     *SchedulerHandler
	hub           *ws.Hub
	startedAt     time.Time
}

var _ xhttp.Handler = (*LedgerHandler)(nil)

func NewLedgerHandler(
	logger *xlogger.Logger,
	stations *StationsHandler,
	circuits *CircuitsHandler,
	subCircuits *SubCircuitsHandler,
	requests *RequestsHandler,
	observations *ObservationsHandler,
	notifications *NotificationsHandler,
	backups *BackupsHandler,
	scheduler *SchedulerHandler,
	hub *ws.Hub,
) *LedgerHandler {
	return &LedgerHandler{
		logger:        logger,
		stations:      stations,
		circuits:      circuits,
		subCircuits:   subCircuits,
		requests:      requests,
		observations:  observations,
		notifications: notifications,
		backups:       backups,
		scheduler:     scheduler,
		hub:           hub,
		startedAt:     time.Now(),
	}
}

func (h *LedgerHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	if h.hub != nil {
		e.GET("/ws", echo.WrapHandler(h.hub))
	}

	g := e.Group("/api")
	h.stations.Register(g)
	h.circuits.Register(g)
	h.subCircuits.Register(g)
	h.requests.Register(g)
	h.observations.Register(g)
	h.notifications.Register(g)
	h.backups.Register(g)
	if h.scheduler != nil {
		h.scheduler.Register(g)
	}
}

func (h *LedgerHandler) Health(c echo.Context) error {
	res := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	}
	if h.hub != nil {
		res["ws_subscribers"] = h.hub.Subscribers()
	}
	return xhttp.DataResponse(c, http.StatusOK, res)
}

// forceParam reads the optional ?force= flag of admission-gated routes.
func forceParam(c echo.Context) (bool, error) {
	v, ok := xhttp.ParseBool(c.QueryParam("force"))
	if !ok {
		return false, xhttp.BadRequestError("force must be a boolean").WithParam("field", "force")
	}
	return v != nil && *v, nil
}

// failure logs unexpected errors and writes the mapped response. Domain
// rejections are expected traffic and only logged at debug.
func failure(c echo.Context, logger *xlogger.Logger, op string, err error) error {
	appErr := xhttp.FromDomainError(err)
	if appErr.Status >= http.StatusInternalServerError {
		logger.Error(op+" usecase error", xlogger.Error(err), xlogger.String("path", c.Path()))
	} else {
		logger.Debug(op+" rejected", xlogger.Error(err), xlogger.String("path", c.Path()))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
