package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"PowerLedger/internal/domain/errs"
)

func TestFromDomainError(t *testing.T) {
	capacity := &errs.CapacityError{
		StationID:       3,
		AvailableBefore: decimal.RequireFromString("10"),
		AvailableAfter:  decimal.RequireFromString("-5"),
		Message:         "exceeds available capacity by 5.00 kW",
	}

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: errs.NotFound("circuit", 9), status: http.StatusNotFound, code: "ERR_NOT_FOUND"},
		{name: "validation", err: errs.Invalid("fd", "must be in (0, 1]"), status: http.StatusBadRequest, code: "ERR_VALIDATION"},
		{name: "wrapped capacity", err: fmt.Errorf("create: %w", capacity), status: http.StatusConflict, code: "ERR_CAPACITY_EXCEEDED"},
		{name: "consistency", err: errs.Consistency("insert bars", errors.New("fk")), status: http.StatusInternalServerError, code: "ERR_CONSISTENCY"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "ERR_INTERNAL"},
		{name: "app error", err: BadRequestError("force must be a boolean"), status: http.StatusBadRequest, code: "ERR_BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDomainError(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	got := FromDomainError(capacity)
	assert.Equal(t, "-5.00", got.Params["available_after"])
	assert.Equal(t, true, got.Params["requires_force"])
	assert.Equal(t, "fd", FromDomainError(errs.Invalid("fd", "bad")).Field)
}

func TestActorFromRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderActorID, "12")
	req.Header.Set(HeaderActorName, "luis")
	actor := ActorFromRequest(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, int64(12), actor.ID)
	assert.Equal(t, "luis", actor.Name)
	assert.Equal(t, "operator", actor.Role)

	anon := ActorFromRequest(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	assert.Equal(t, int64(0), anon.ID)
	assert.Equal(t, "anonymous", anon.Name)
}
