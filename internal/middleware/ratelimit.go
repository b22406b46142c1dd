package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"PowerLedger/internal/service/ratelimit"
	xhttp "PowerLedger/pkg/http"
	xlogger "PowerLedger/pkg/logger"
)

// RateLimitConfig sizes the per-caller token bucket.
type RateLimitConfig struct {
	Scope        string
	Capacity     float64
	RefillPerSec float64
}

// RateLimit throttles callers of the wrapped routes. Callers are keyed by
// the actor id header, falling back to the client IP.
func RateLimit(l *ratelimit.Limiter, cfg RateLimitConfig, logger *xlogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.Scope + ":" + callerKey(c)
			ok, wait := l.Take(key, cfg.Capacity, cfg.RefillPerSec)
			if ok {
				return next(c)
			}
			c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			logger.Warn("rate limit exceeded",
				xlogger.String("scope", cfg.Scope),
				xlogger.String("caller", key),
				xlogger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.RateLimitedError(wait))
		}
	}
}

func callerKey(c echo.Context) string {
	if id := c.Request().Header.Get(xhttp.HeaderActorID); id != "" {
		return "actor:" + id
	}
	return "ip:" + c.RealIP()
}
