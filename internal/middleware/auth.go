package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// TokenCookieName is set after a successful ?token= login so the browser
// keeps access to the dashboard and its websocket.
const TokenCookieName = "safealert_dashboard"

// RequireToken guards a handler with a shared secret. The token may be sent
// as a bearer header, a token query parameter or the dashboard cookie. An
// empty token disables the check. Each wrong token counts against the
// client's address in failures; an exhausted address gets 429 until its
// window expires.
func RequireToken(token string, failures *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := RealIP(r)
			if failures.Exhausted(ip) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			got, fromQuery := presentedToken(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				if got != "" {
					failures.Hit(ip)
					logger.Warn("dashboard token rejected", "remote", ip)
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			failures.Reset(ip)
			if fromQuery {
				http.SetCookie(w, &http.Cookie{
					Name:     TokenCookieName,
					Value:    got,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteStrictMode,
				})
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) (token string, fromQuery bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), false
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, true
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return c.Value, false
	}
	return "", false
}
