package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// MaxClients bounds the number of tracked clients; idle ones expire
	// after ClientTTL.
	MaxClients int
	ClientTTL  time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		MaxClients:        10000,
		ClientTTL:         10 * time.Minute,
	}
}

// RateLimit returns a per-client token bucket limiter keyed by remote IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	def := DefaultRateLimitConfig()
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.ClientTTL <= 0 {
		cfg.ClientTTL = def.ClientTTL
	}
	clients := expirable.NewLRU[string, *rate.Limiter](cfg.MaxClients, nil, cfg.ClientTTL)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			lim, ok := clients.Get(key)
			if !ok {
				lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize)
			}
			// Re-adding renews the idle expiry.
			clients.Add(key, lim)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if !lim.Allow() {
				h.Set("Retry-After", strconv.Itoa(retryAfter(lim)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// retryAfter is the number of whole seconds until one token is available.
func retryAfter(lim *rate.Limiter) int {
	if lim.Limit() <= 0 {
		return 1
	}
	missing := 1 - lim.Tokens()
	if missing <= 0 {
		return 1
	}
	return int(math.Ceil(missing / float64(lim.Limit())))
}
