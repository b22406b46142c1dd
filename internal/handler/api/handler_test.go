package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerLedger/internal/domain/models"
	mid "PowerLedger/internal/middleware"
	"PowerLedger/internal/repository/memory"
	"PowerLedger/internal/service/ratelimit"
	"PowerLedger/internal/usecase"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
	"PowerLedger/pkg/metrics"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t     *testing.T
	e     *echo.Echo
	barID int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := xlogger.NewNop()
	m := metrics.Nop{}
	store := memory.NewStore()
	engine := usecase.NewRecalculationEngine()
	runner := usecase.NewRunner(store, engine, m, log)
	admission := usecase.NewAdmissionController(m)
	stations := usecase.NewStationService(runner, engine, nil, log)
	snapshots := usecase.NewSnapshotCoordinator(runner, m, log)
	scheduler, err := usecase.NewScheduler(usecase.NewExpiryScanner(runner, m, log), usecase.SchedulerConfig{RunAt: "08:00"}, log)
	require.NoError(t, err)

	_, err = stations.Seed(context.Background(), usecase.SeedPlan{
		Stations:      []usecase.SeedStation{{Code: "E01", Name: "Villa El Salvador"}},
		CapacityKW:    decimal.NewFromInt(100),
		BarCapacityKW: decimal.NewFromInt(60),
		BarCapacityA:  decimal.NewFromInt(90),
	})
	require.NoError(t, err)
	list, err := stations.List(context.Background())
	require.NoError(t, err)
	bars, err := stations.ListBars(context.Background(), list[0].ID)
	require.NoError(t, err)

	var barID int64
	for _, b := range bars {
		if b.BarType == models.BarNormal {
			barID = b.ID
		}
	}

	h := NewLedgerHandler(log,
		NewStationsHandler(log, stations),
		NewCircuitsHandler(log, usecase.NewCircuitService(runner, admission, log)),
		NewSubCircuitsHandler(log, usecase.NewSubCircuitService(runner, admission, log)),
		NewRequestsHandler(log, usecase.NewRequestService(runner, admission, log)),
		NewObservationsHandler(log, usecase.NewObservationService(runner)),
		NewNotificationsHandler(log, usecase.NewNotificationService(runner)),
		NewBackupsHandler(log, snapshots, ratelimit.New(),
			mid.RateLimitConfig{Scope: "backups", Capacity: 1, RefillPerSec: 0.001}, 50),
		NewSchedulerHandler(log, scheduler),
		nil,
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return &testServer{t: t, e: e, barID: barID}
}

func (s *testServer) do(method, target, body string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(xhttp.HeaderActorID, "7")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *testServer) circuitsURL() string {
	return "/api/bars/" + strconv.FormatInt(s.barID, 10) + "/circuits"
}

func appErrors(t *testing.T, env envelope) []xhttp.AppError {
	t.Helper()
	var out []xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out)
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)
}

func TestCreateCircuitRequiresForce(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodPost, s.circuitsURL(), `{"denomination":"C-1","pi_kw":90,"fd":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := s.do(http.MethodPost, s.circuitsURL(), `{"denomination":"C-2","pi_kw":"15","fd":"1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	errs := appErrors(t, env)
	assert.Equal(t, "ERR_CAPACITY_EXCEEDED", errs[0].Code)
	assert.Equal(t, true, errs[0].Params["requires_force"])
	assert.Equal(t, "-5.00", errs[0].Params["available_after"])

	rec, env = s.do(http.MethodPost, s.circuitsURL()+"?force=true", `{"denomination":"C-2","pi_kw":"15","fd":"1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var c models.Circuit
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, "C-2", c.Denomination)
	assert.Equal(t, models.StatusOperativeNormal, c.Status)

	rec, env = s.do(http.MethodGet, "/api/stations/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.Station
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, models.StationRed, st.Status)
}

func TestCheckCapacityEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := `{"bar_id":` + strconv.FormatInt(s.barID, 10) + `,"proposed_md_kw":"120"}`

	rec, env := s.do(http.MethodPost, "/api/circuits/check-capacity", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var check usecase.CapacityCheck
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.False(t, check.CanAdd)
	assert.Equal(t, "-20.00", check.AvailableAfter.StringFixed(2))
}

func TestCreateCircuitValidation(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodPost, s.circuitsURL(), `{"pi_kw":10,"fd":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, s.circuitsURL(), `{"denomination":"C-1","pi_kw":10,"fd":1,"status":"broken"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := s.do(http.MethodPost, s.circuitsURL(), `{"denomination":"C-1","pi_kw":10,"fd":1.5}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := appErrors(t, env)
	assert.Equal(t, "ERR_LTE", errs[0].Code)
	assert.Equal(t, "fd", errs[0].Field)

	rec, _ = s.do(http.MethodPost, s.circuitsURL()+"?force=maybe", `{"denomination":"C-1","pi_kw":10,"fd":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/circuits/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodGet, "/api/circuits/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errs := appErrors(t, env)
	assert.Equal(t, "circuit", errs[0].Params["entity"])

	rec, _ = s.do(http.MethodPost, "/api/bars/999/circuits", `{"denomination":"C-1","pi_kw":10,"fd":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/scheduler/last-run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchedulerRunNow(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodPost, "/api/scheduler/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(http.MethodGet, "/api/scheduler/last-run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report usecase.ScanReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 0, report.Created())
}

func TestBackupCreateIsRateLimited(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/api/backups", `{"include_audit":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var b models.Backup
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.True(t, b.IncludesAudit)

	rec, env = s.do(http.MethodPost, "/api/backups", `{}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "ERR_RATE_LIMITED", appErrors(t, env)[0].Code)

	rec, _ = s.do(http.MethodGet, "/api/backups/"+strconv.FormatInt(b.ID, 10)+"/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), b.FileName)
}
