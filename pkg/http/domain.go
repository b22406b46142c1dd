package http

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
)

// Actor headers are set by the authentication proxy in front of the service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
)

// FromDomainError translates ledger errors into AppErrors.
func FromDomainError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var nf *errs.NotFoundError
	if errors.As(err, &nf) {
		return NotFoundError(nf.Error()).WithParam("entity", nf.Entity).WithParam("id", nf.ID)
	}

	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		e := BadRequestError(ve.Error())
		e.Code = "ERR_VALIDATION"
		e.Field = ve.Field
		return e
	}

	var ce *errs.CapacityError
	if errors.As(err, &ce) {
		e := ConflictError(ce.Message)
		e.Code = "ERR_CAPACITY_EXCEEDED"
		return e.WithParams(map[string]interface{}{
			"station_id":       ce.StationID,
			"available_before": ce.AvailableBefore.StringFixed(models.PowerPlaces),
			"available_after":  ce.AvailableAfter.StringFixed(models.PowerPlaces),
			"requires_force":   true,
		})
	}

	var cons *errs.ConsistencyError
	if errors.As(err, &cons) {
		e := InternalError(cons.Error())
		e.Code = "ERR_CONSISTENCY"
		return e.WithParam("step", cons.Step).WithError(err)
	}

	return InternalError("Something went wrong").WithError(err)
}

// DomainErrorResponse writes err through FromDomainError.
func DomainErrorResponse(c echo.Context, err error) error {
	return AppErrorResponse(c, FromDomainError(err))
}

// ActorFromRequest reads the acting user from the actor headers. Requests
// without an id are attributed to an anonymous operator.
func ActorFromRequest(c echo.Context) models.Actor {
	h := c.Request().Header
	actor := models.Actor{
		Name: h.Get(HeaderActorName),
		Role: h.Get(HeaderActorRole),
	}
	if id, err := strconv.ParseInt(h.Get(HeaderActorID), 10, 64); err == nil {
		actor.ID = id
	}
	if actor.Name == "" {
		actor.Name = "anonymous"
	}
	if actor.Role == "" {
		actor.Role = "operator"
	}
	return actor
}

// PathID parses a positive int64 path parameter.
func PathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &errs.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}
