package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "PowerLedger/pkg/logger"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerCORS(t *testing.T) {
	s := NewServer(pingRoutes{}, applogger.NewNop(), WithMetricsPath(""))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "https://ops.example")
	rec := serve(s, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ops.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), HeaderActorID)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "https://ops.example")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlExposeHeaders), echo.HeaderRetryAfter)
}

func TestServerCORSRestrictedOrigins(t *testing.T) {
	s := NewServer(pingRoutes{}, applogger.NewNop(),
		WithMetricsPath(""), WithCORSOrigins([]string{"https://ops.example"}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "https://elsewhere.example")
	rec := serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(pingRoutes{}, applogger.NewNop(),
		WithHost("127.0.0.1"), WithPort(0), WithMetricsPath("/metrics"))
	require.NoError(t, s.Start())

	addr := s.Echo().Listener.Addr().String()
	res, err := http.Get(fmt.Sprintf("http://%s/ping", addr))
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
