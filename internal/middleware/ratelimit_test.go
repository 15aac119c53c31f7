package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(limit int, period time.Duration) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(limit, period)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterAllow(t *testing.T) {
	rl, _ := newTestLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !rl.Allow("key") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("key") {
		t.Error("6th request should be denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl, now := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		rl.Allow("key")
	}
	if rl.Allow("key") {
		t.Error("should be blocked within window")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("key") {
		t.Error("should be allowed after window expires")
	}
}

func TestRateLimiterSeparateKeys(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)

	if !rl.Allow("a") {
		t.Error("first request for a should be allowed")
	}
	if !rl.Allow("b") {
		t.Error("first request for b should be allowed")
	}
	if rl.Allow("a") {
		t.Error("second request for a should be denied")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, now := newTestLimiter(1, time.Minute)
	rl.Allow("a")
	rl.Allow("b")

	if n := rl.Cleanup(); n != 0 {
		t.Errorf("cleanup inside window removed %d", n)
	}
	*now = now.Add(2 * time.Minute)
	if n := rl.Cleanup(); n != 2 {
		t.Errorf("cleanup removed %d, want 2", n)
	}
}

func TestLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(2, 30*time.Second)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/sync/shopping", nil)
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest("POST", "/api/sync/shopping", nil)
	req.RemoteAddr = "127.0.0.1:5001"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"remote addr", "", "10.0.0.1:1234", "10.0.0.1"},
		{"forwarded chain", "1.2.3.4, 10.0.0.1", "127.0.0.1:80", "1.2.3.4"},
		{"forwarded single", " 1.2.3.4 ", "127.0.0.1:80", "1.2.3.4"},
		{"no port", "", "localhost", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := RealIP(req); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}
