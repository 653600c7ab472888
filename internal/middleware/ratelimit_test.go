package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeClock returns a limiter whose time only moves when advanced.
func fakeClock(l *Limiter) func(time.Duration) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestLimiterHit(t *testing.T) {
	l := NewLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Hit("key") {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	if l.Hit("key") {
		t.Error("6th hit should be denied")
	}
	if !l.Hit("other") {
		t.Error("keys are counted separately")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	advance := fakeClock(l)

	for i := 0; i < 3; i++ {
		l.Hit("key")
	}
	if l.Hit("key") {
		t.Error("should be blocked within window")
	}

	advance(time.Minute)
	if !l.Hit("key") {
		t.Error("should be allowed after window expires")
	}
}

func TestLimiterExhausted(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	advance := fakeClock(l)

	if l.Exhausted("key") {
		t.Fatal("unknown key should not be exhausted")
	}
	l.Hit("key")
	if l.Exhausted("key") {
		t.Error("one hit should not exhaust a limit of 2")
	}
	l.Hit("key")
	if !l.Exhausted("key") {
		t.Error("two hits should exhaust a limit of 2")
	}

	advance(2 * time.Minute)
	if l.Exhausted("key") {
		t.Error("expired window should not count")
	}
}

func TestLimiterReset(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	l.Hit("key")
	l.Reset("key")
	if l.Exhausted("key") {
		t.Error("Reset should forget the key")
	}
}

func TestLimiterCleanup(t *testing.T) {
	l := NewLimiter(5, time.Minute)
	advance := fakeClock(l)

	l.Hit("expired")
	advance(2 * time.Minute)
	l.Hit("active")

	l.Cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys["expired"]; ok {
		t.Error("expired entry should have been cleaned up")
	}
	if _, ok := l.keys["active"]; !ok {
		t.Error("active entry should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	handler := RateLimit(l, func(r *http.Request) string { return "test" })(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}
