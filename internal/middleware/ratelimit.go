package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// FixedWindowStore counts requests per identifier in fixed windows that
// start at the identifier's first request.
type FixedWindowStore struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	counters    map[string]*windowCounter
	lastCleanup time.Time
}

type windowCounter struct {
	start time.Time
	count int
}

func NewFixedWindowStore(limit int, window time.Duration, now func() time.Time) *FixedWindowStore {
	if now == nil {
		now = time.Now
	}
	return &FixedWindowStore{
		limit:       limit,
		window:      window,
		now:         now,
		counters:    make(map[string]*windowCounter),
		lastCleanup: now(),
	}
}

// Allow implements echo's middleware.RateLimiterStore.
func (s *FixedWindowStore) Allow(identifier string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastCleanup) >= s.window {
		for id, c := range s.counters {
			if now.Sub(c.start) >= s.window {
				delete(s.counters, id)
			}
		}
		s.lastCleanup = now
	}

	c, ok := s.counters[identifier]
	if !ok || now.Sub(c.start) >= s.window {
		c = &windowCounter{start: now}
		s.counters[identifier] = c
	}

	c.count++
	return c.count <= s.limit, nil
}

// RateLimit rejects requests over the store's budget with 429 and message.
func RateLimit(store echomw.RateLimiterStore, message string) echo.MiddlewareFunc {
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, message)
		},
	})
}
