package api

import (
	"github.com/labstack/echo/v4"

	models "PowerLedger/internal/domain/models"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

// NotificationsHandler serves the operator notification inbox.
type NotificationsHandler struct {
	logger        *xlogger.Logger
	notifications *usecase.NotificationService
}

func NewNotificationsHandler(logger *xlogger.Logger, notifications *usecase.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{logger: logger, notifications: notifications}
}

func (h *NotificationsHandler) Register(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/unread-count", h.UnreadCount)
	g.POST("/notifications/:id/read", h.MarkRead)
	g.POST("/notifications/:id/extend", h.Extend)
	g.POST("/notifications/:id/dismiss", h.Dismiss)
}

func (h *NotificationsHandler) List(c echo.Context) error {
	req := &models.ListNotificationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	isRead, _ := xhttp.ParseBool(req.IsRead)
	var typ *models.NotificationType
	if req.Type != "" {
		t := models.NotificationType(req.Type)
		typ = &t
	}

	res, err := h.notifications.List(c.Request().Context(), isRead, typ, req.Limit)
	if err != nil {
		return failure(c, h.logger, "list notifications", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *NotificationsHandler) UnreadCount(c echo.Context) error {
	n, err := h.notifications.UnreadCount(c.Request().Context())
	if err != nil {
		return failure(c, h.logger, "unread count", err)
	}
	return xhttp.SuccessResponse(c, map[string]int{"unread": n})
}

func (h *NotificationsHandler) MarkRead(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.notifications.MarkRead(c.Request().Context(), xhttp.ActorFromRequest(c), id)
	if err != nil {
		return failure(c, h.logger, "mark notification read", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *NotificationsHandler) Extend(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	req := &models.ExtendNotificationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.notifications.Extend(c.Request().Context(), xhttp.ActorFromRequest(c), id, req.ExtendedUntil)
	if err != nil {
		return failure(c, h.logger, "extend notification", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *NotificationsHandler) Dismiss(c echo.Context) error {
	id, err := xhttp.PathID(c, "id")
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	res, err := h.notifications.Dismiss(c.Request().Context(), xhttp.ActorFromRequest(c), id)
	if err != nil {
		return failure(c, h.logger, "dismiss notification", err)
	}
	return xhttp.SuccessResponse(c, res)
}
