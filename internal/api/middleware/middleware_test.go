package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.mu.Lock()
	rl.now = func() time.Time { return now }
	rl.mu.Unlock()

	require.True(t, rl.Allow("p1"))
	require.True(t, rl.Allow("p1"))
	require.False(t, rl.Allow("p1"))
	require.True(t, rl.Allow("p2"))

	now = now.Add(61 * time.Second)
	require.True(t, rl.Allow("p1"))

	// Повторный Close не паникует
	rl.Close()
}

func TestRequirePlayerAndRateLimit(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	r := gin.New()
	r.Use(Recovery(), Logger(), RequirePlayer("X-Player-ID"), rl.Middleware())
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, PlayerID(c))
	})

	do := func(player string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if player != "" {
			req.Header.Set("X-Player-ID", player)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusUnauthorized, do("").Code)

	w := do(" p1 ")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "p1", w.Body.String())

	w = do("p1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRequirePlayerRejectsNonText(t *testing.T) {
	r := gin.New()
	r.Use(RequirePlayer("X-Player-ID"))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, PlayerID(c))
	})

	for _, id := range []string{"p\xff", "p\x00x", strings.Repeat("x", maxPlayerIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header["X-Player-Id"] = []string{id}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%q", id)
	}
}

func TestMaxInflight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	r := gin.New()
	r.Use(MaxInflight(1))
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusOK)
	})

	done := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
		done <- w.Code
	}()
	<-entered

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	close(release)
	require.Equal(t, http.StatusOK, <-done)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("бум") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
