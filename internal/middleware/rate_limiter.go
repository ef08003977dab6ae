package middleware

import (
	"net/http"
	"sync"
	"time"

	"catalogsync/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// windowEntry counts requests from one IP within a fixed window.
type windowEntry struct {
	count     int
	windowEnd time.Time
}

// limiter is a per-IP fixed-window counter. Expired entries are purged on
// access at most once per window, so no background goroutine is needed.
type limiter struct {
	name      string
	limit     int
	window    time.Duration
	now       func() time.Time
	mu        sync.Mutex
	entries   map[string]*windowEntry
	nextPurge time.Time
}

func newLimiter(name string, limit int, window time.Duration) *limiter {
	return &limiter{
		name:    name,
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*windowEntry),
	}
}

// allow records one request from ip and reports whether it is within limit,
// along with the end of the current window.
func (l *limiter) allow(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextPurge) {
		purged := 0
		for k, e := range l.entries {
			if now.After(e.windowEnd) {
				delete(l.entries, k)
				purged++
			}
		}
		if purged > 0 {
			log.Debug().Str("limiter", l.name).Int("purged", purged).Int("remaining", len(l.entries)).
				Msg("rate limiter entries purged")
		}
		l.nextPurge = now.Add(l.window)
	}

	e, ok := l.entries[ip]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(l.window)}
		l.entries[ip] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

func (l *limiter) handler(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, windowEnd := l.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", windowEnd.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return newLimiter("login", 20, time.Minute).handler("too many login attempts, try again in a minute")
}

// RateLimiter is a general per-IP limiter for the public quote endpoints.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newLimiter("api", limit, window).handler("too many requests, try again shortly")
}
