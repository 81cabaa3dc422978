package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fakeLimiter 是可编程的限流器
type fakeLimiter struct {
	result *LimitResult
	err    error
	lastN  int64
	keys   []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return f.AllowN(ctx, key, 1)
}

func (f *fakeLimiter) AllowN(_ context.Context, key string, n int64) (*LimitResult, error) {
	f.keys = append(f.keys, key)
	f.lastN = n
	return f.result, f.err
}

func (f *fakeLimiter) Reset(context.Context, string) error { return nil }

func newCartRouter(l Limiter, authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if authed {
		r.Use(func(c *gin.Context) { c.Set("user_id", int64(1)) })
	}
	r.Use(CartRateLimitMiddleware(l, zap.NewNop()))
	r.POST("/cart/items", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCartRateLimit_Allowed(t *testing.T) {
	fake := &fakeLimiter{result: &LimitResult{Allowed: true, Remaining: 5}}
	r := newCartRouter(fake, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart/items", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if len(fake.keys) != 1 || fake.keys[0] != "cart:user:1" {
		t.Errorf("limiter keys = %v, want [cart:user:1]", fake.keys)
	}
}

func TestCartRateLimit_Rejected(t *testing.T) {
	fake := &fakeLimiter{result: &LimitResult{Allowed: false, RetryAfter: 2 * time.Second}}
	r := newCartRouter(fake, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart/items", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want \"2\"", got)
	}
}

func TestCartRateLimit_SkipsAnonymous(t *testing.T) {
	fake := &fakeLimiter{result: &LimitResult{Allowed: false}}
	r := newCartRouter(fake, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart/items", nil))

	// 匿名请求不消耗配额，由认证中间件处理
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if len(fake.keys) != 0 {
		t.Errorf("limiter consulted for anonymous request: %v", fake.keys)
	}
}

func TestCartRateLimit_FailsOpen(t *testing.T) {
	fake := &fakeLimiter{err: context.DeadlineExceeded}
	r := newCartRouter(fake, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart/items", nil))

	// 限流器故障时放行
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
