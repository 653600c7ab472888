package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RealIP returns the client address. Forwarding headers (CF-Connecting-IP,
// then the first X-Forwarded-For hop) are only honoured when the direct peer
// is a loopback address, i.e. a reverse proxy on the same host.
func RealIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return host
	}

	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return host
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts events per key in fixed windows.
type Limiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*window
}

func NewLimiter(limit int, period time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		period: period,
		now:    time.Now,
		keys:   make(map[string]*window),
	}
}

// current returns the live window for key, or nil. Callers hold mu.
func (l *Limiter) current(key string) *window {
	w, ok := l.keys[key]
	if !ok || !l.now().Before(w.resetAt) {
		return nil
	}
	return w
}

// Hit records an event for key and reports whether it is within the limit.
func (l *Limiter) Hit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(key)
	if w == nil {
		w = &window{resetAt: l.now().Add(l.period)}
		l.keys[key] = w
	}
	w.count++
	return w.count <= l.limit
}

// Exhausted reports whether key has used its whole allowance in the current
// window. It does not record an event.
func (l *Limiter) Exhausted(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(key)
	return w != nil && w.count >= l.limit
}

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.keys, key)
	l.mu.Unlock()
}

// Cleanup drops expired windows.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.keys {
		if !now.Before(w.resetAt) {
			delete(l.keys, key)
		}
	}
}

// RateLimit refuses requests with 429 once keyFunc's key exceeds the limit.
func RateLimit(l *Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Hit(keyFunc(r)) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
