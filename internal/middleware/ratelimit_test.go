package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitTest(t *testing.T, cfg RateLimitConfig) (*fiber.App, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	app := fiber.New()
	app.Get("/limited", RateLimit(rdb, cfg), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app, mr
}

func TestRateLimit_AllowsWithinWindow(t *testing.T) {
	app, _ := setupRateLimitTest(t, RateLimitConfig{Scope: "show", Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}
}

func TestRateLimit_BlocksOverLimitWithRetryAfter(t *testing.T) {
	app, _ := setupRateLimitTest(t, RateLimitConfig{Scope: "purchase", Limit: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestRateLimit_WindowExpiryResetsCounter(t *testing.T) {
	app, mr := setupRateLimitTest(t, RateLimitConfig{Scope: "show", Limit: 1, Window: time.Minute})

	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	require.Equal(t, 429, resp.StatusCode)

	// Advance past the window; the counter key expires and requests flow again.
	mr.FastForward(2 * time.Minute)
	resp, err = app.Test(httptest.NewRequest("GET", "/limited", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRateLimit_FailsOpenWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Get("/limited", RateLimit(nil, RateLimitConfig{Scope: "show", Limit: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}
}

func TestRateLimit_KeyedByUserWhenAuthenticated(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("viewer", map[string]interface{}{
			"user_id": c.Get("X-Test-User"),
			"role":    "viewer",
		})
		return c.Next()
	})
	app.Get("/limited", RateLimit(rdb, RateLimitConfig{Scope: "show", Limit: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	reqA := httptest.NewRequest("GET", "/limited", nil)
	reqA.Header.Set("X-Test-User", "user-a")
	resp, err := app.Test(reqA)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	// Same user is now over the limit, a different user is not.
	reqA2 := httptest.NewRequest("GET", "/limited", nil)
	reqA2.Header.Set("X-Test-User", "user-a")
	resp, err = app.Test(reqA2)
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)

	reqB := httptest.NewRequest("GET", "/limited", nil)
	reqB.Header.Set("X-Test-User", "user-b")
	resp, err = app.Test(reqB)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
