package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methdul/newkingdom/internal/config"
	"github.com/Methdul/newkingdom/internal/domain"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter().WithClock(func() time.Time { return clock })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, _, retryAfter, err := limiter.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)

	// a denied call must not consume budget in the next window
	clock = clock.Add(30 * time.Second)
	allowed, _, retryAfter, _ = limiter.Allow(ctx, "k", 3, time.Minute)
	assert.False(t, allowed)
	assert.Equal(t, 30*time.Second, retryAfter)

	clock = clock.Add(30 * time.Second)
	allowed, remaining, _, err := limiter.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "window rollover must reset the budget")
	assert.Equal(t, 2, remaining)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, _ = limiter.Allow(ctx, "a", 1, time.Minute)
	assert.False(t, allowed)

	allowed, _, _, _ = limiter.Allow(ctx, "b", 1, time.Minute)
	assert.True(t, allowed, "key a's exhaustion must not bleed into key b")
}

func TestMemoryLimiterReset(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	_, _, _, _ = limiter.Allow(ctx, "k", 1, time.Minute)
	allowed, _, _, _ := limiter.Allow(ctx, "k", 1, time.Minute)
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "k"))
	allowed, _, _, _ = limiter.Allow(ctx, "k", 1, time.Minute)
	assert.True(t, allowed)
}

func TestMemoryLimiterConcurrentBurst(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	const limit = 50
	const callers = 200

	var granted int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			allowed, _, _, err := limiter.Allow(ctx, "burst", limit, time.Minute)
			if err == nil && allowed {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted, "a concurrent burst must never exceed the budget")
}

func rateLimitTestConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		WindowMinutes:   15,
		AdminPerWindow:  4,
		StaffPerWindow:  3,
		MemberPerWindow: 2,
		AnonPerWindow:   1,
		AuthWindowMin:   15,
		AuthPerWindow:   2,
	}
}

func rateLimitApp(identity domain.Identity, handler fiber.Handler) *fiber.App {
	app := newTestApp()
	app.Get("/resource", func(c *fiber.Ctx) error {
		if identity != nil {
			WithIdentity(c, identity)
		}
		return c.Next()
	}, handler, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func drainBudget(t *testing.T, app *fiber.App, allowedCalls int) {
	t.Helper()
	for i := 0; i < allowedCalls; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/resource", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "call %d should fit the budget", i+1)
	}
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/resource", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestRateLimiterBudgetsByRole(t *testing.T) {
	cfg := rateLimitTestConfig()

	tests := []struct {
		name     string
		identity domain.Identity
		budget   int
	}{
		{"admin", staffIdentity(domain.RoleAdmin, "loc-a"), cfg.AdminPerWindow},
		{"staff", staffIdentity(domain.RoleStaff, "loc-a"), cfg.StaffPerWindow},
		{"member", memberIdentity(domain.MembershipActive, "loc-a", nil), cfg.MemberPerWindow},
		{"anonymous", nil, cfg.AnonPerWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewRateLimiter(NewMemoryLimiter(), cfg, nil)
			app := rateLimitApp(tt.identity, limiter.Middleware())
			drainBudget(t, app, tt.budget)
		})
	}
}

func TestAuthMiddlewareIgnoresIdentity(t *testing.T) {
	cfg := rateLimitTestConfig()
	limiter := NewRateLimiter(NewMemoryLimiter(), cfg, nil)

	// even an admin identity is keyed by IP under the auth budget
	app := rateLimitApp(staffIdentity(domain.RoleAdmin, "loc-a"), limiter.AuthMiddleware())
	drainBudget(t, app, cfg.AuthPerWindow)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (bool, int, time.Duration, error) {
	return false, 0, 0, errors.New("backend unreachable")
}

func (brokenLimiter) Reset(context.Context, string) error { return nil }

func TestRateLimiterFailsClosed(t *testing.T) {
	limiter := NewRateLimiter(brokenLimiter{}, rateLimitTestConfig(), nil)
	app := rateLimitApp(nil, limiter.Middleware())

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/resource", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode,
		"a broken limiter must deny, not waive, the budget")
}
