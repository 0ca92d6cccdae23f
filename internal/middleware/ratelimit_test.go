package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestRateLimiter(t *testing.T, generalBurst, authBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    generalBurst,
		AuthRate:        rate.Limit(0.001),
		AuthBurst:       authBurst,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func requestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestNewRateLimiterConfig_PerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)

	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 || cfg.AuthBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.AuthBurst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}

	if DefaultRateLimiterConfig() != cfg {
		t.Error("DefaultRateLimiterConfig() should be 120/10 per minute")
	}
}

func TestGeneralMiddleware_LimitsPerIP(t *testing.T) {
	rl := newTestRateLimiter(t, 2, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.0.2.1:1000"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1:2000"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", w.Code)
	}

	// 別のIPは独立したバケットを持つ
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.2:1000"))
	if w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", w.Code)
	}
}

// 認証済みリクエストはIPではなくユーザー単位で制限される
func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	asUser := func(userID, remoteAddr string) int {
		req := requestFrom(remoteAddr)
		req = req.WithContext(ContextWithIdentity(req.Context(), testIdentityFor(userID)))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := asUser("user-1", "192.0.2.1:1"); code != http.StatusOK {
		t.Fatalf("first request: status = %d", code)
	}
	// 同じユーザーは別IPからでも制限される
	if code := asUser("user-1", "192.0.2.9:1"); code != http.StatusTooManyRequests {
		t.Errorf("same user other IP: status = %d, want 429", code)
	}
	// 同じIPでも別ユーザーは制限されない
	if code := asUser("user-2", "192.0.2.1:1"); code != http.StatusOK {
		t.Errorf("other user same IP: status = %d, want 200", code)
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", got)
	}
}

func TestAuthMiddleware_LimitsPerIPIndependently(t *testing.T) {
	rl := newTestRateLimiter(t, 100, 1)
	authHandler := rl.AuthMiddleware()(okHandler())
	generalHandler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	authHandler.ServeHTTP(w, requestFrom("198.51.100.1:1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first login: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	authHandler.ServeHTTP(w, requestFrom("198.51.100.1:2"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second login: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	generalHandler.ServeHTTP(w, requestFrom("198.51.100.1:3"))
	if w.Code != http.StatusOK {
		t.Errorf("general request after auth limit: status = %d, want 200", w.Code)
	}

	if rl.AuthLimiterCount() != 1 {
		t.Errorf("AuthLimiterCount() = %d, want 1", rl.AuthLimiterCount())
	}
}

func TestRateLimitResponse_Format(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("203.0.113.5:1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("203.0.113.5:1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Success || body.Code != "rate_limit_exceeded" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteRateLimitResponse_RetryAfter(t *testing.T) {
	tests := []struct {
		limit rate.Limit
		want  string
	}{
		{rate.Limit(2), "1"},
		{rate.Limit(10.0 / 60.0), "6"},
		{rate.Limit(0), "1"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeRateLimitResponse(w, tt.limit)
		if got := w.Header().Get("Retry-After"); got != tt.want {
			t.Errorf("limit %v: Retry-After = %q, want %q", tt.limit, got, tt.want)
		}
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, 10, 10)

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:1"))
	rl.AuthMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:1"))

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 || rl.AuthLimiterCount() != 1 {
		t.Fatal("recent entries should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.GeneralLimiterCount() != 0 || rl.AuthLimiterCount() != 0 {
		t.Errorf("counts after cleanup = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.AuthLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
