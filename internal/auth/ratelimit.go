package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Methdul/newkingdom/internal/config"
	"github.com/Methdul/newkingdom/internal/domain"
	"github.com/Methdul/newkingdom/internal/events"
	apperrors "github.com/Methdul/newkingdom/pkg/util"
)

// Limiter is a fixed-window rate limiter. Allow reports whether the request
// fits the key's budget and how long until the window resets when it does
// not. Implementations must count atomically under concurrent access.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, retryAfter time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

type windowCounter struct {
	windowStart time.Time
	count       int
}

// memoryLimiter serializes counter updates under one mutex, so a burst of
// concurrent calls can never exceed the budget.
type memoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
}

// NewMemoryLimiter creates an in-memory fixed-window limiter.
func NewMemoryLimiter() *memoryLimiter {
	return &memoryLimiter{counters: make(map[string]*windowCounter), now: time.Now}
}

// WithClock overrides the limiter's clock. Intended for tests.
func (l *memoryLimiter) WithClock(now func() time.Time) *memoryLimiter {
	l.now = now
	return l
}

func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	counter, ok := l.counters[key]
	if !ok || now.Sub(counter.windowStart) >= window {
		counter = &windowCounter{windowStart: now}
		l.counters[key] = counter
	}

	if counter.count >= limit {
		retryAfter := counter.windowStart.Add(window).Sub(now)
		return false, 0, retryAfter, nil
	}

	counter.count++
	return true, limit - counter.count, 0, nil
}

func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, key)
	return nil
}

// RateLimiter applies the per-identity-class budgets: a resolved identity is
// budgeted by subject under its role's limit, anonymous callers by origin
// IP. Runs after the optional resolver so the identity, when present, is
// already attached.
type RateLimiter struct {
	limiter    Limiter
	cfg        config.RateLimitConfig
	dispatcher events.Dispatcher
}

// NewRateLimiter builds the middleware factory.
func NewRateLimiter(limiter Limiter, cfg config.RateLimitConfig, dispatcher events.Dispatcher) *RateLimiter {
	return &RateLimiter{limiter: limiter, cfg: cfg, dispatcher: dispatcher}
}

// Middleware enforces the general request budget.
func (r *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, limit := r.budgetFor(c)
		return r.enforce(c, key, limit, r.cfg.Window())
	}
}

// AuthMiddleware enforces the much stricter budget on authentication
// endpoints. Keyed by origin IP regardless of any presented identity, since
// the caller is by definition not yet authenticated, or is probing.
func (r *RateLimiter) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "auth:" + c.IP()
		return r.enforce(c, key, r.cfg.AuthPerWindow, r.cfg.AuthWindow())
	}
}

func (r *RateLimiter) budgetFor(c *fiber.Ctx) (string, int) {
	identity, ok := IdentityFromContext(c)
	if !ok {
		return "anon:" + c.IP(), r.cfg.AnonPerWindow
	}
	switch identity.Role() {
	case domain.RoleAdmin:
		return "subject:" + identity.SubjectID(), r.cfg.AdminPerWindow
	case domain.RoleStaff:
		return "subject:" + identity.SubjectID(), r.cfg.StaffPerWindow
	default:
		return "subject:" + identity.SubjectID(), r.cfg.MemberPerWindow
	}
}

func (r *RateLimiter) enforce(c *fiber.Ctx, key string, limit int, window time.Duration) error {
	allowed, _, retryAfter, err := r.limiter.Allow(c.UserContext(), key, limit, window)
	if err != nil {
		// fail closed: a broken limiter must not waive the budget
		return apperrors.NewInternalError(err)
	}
	if !allowed {
		if r.dispatcher != nil {
			_ = r.dispatcher.Publish(c.UserContext(), events.Event{
				Type:      events.EventRateLimited,
				Origin:    c.IP(),
				Reason:    key,
				Timestamp: time.Now().UTC(),
			})
		}
		seconds := int(retryAfter / time.Second)
		if retryAfter%time.Second != 0 {
			seconds++
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
		return apperrors.NewTooManyRequests("rate limit exceeded", nil)
	}
	return c.Next()
}
