package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"inventoflow/internal/session"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/app/dashboard"
)

// RequireAuthenticated admits only authenticated sessions. Page requests
// are redirected to the login page; /api requests get a JSON 401.
func RequireAuthenticated(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := session.FromContext(r.Context())
			if sess.IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("Unauthenticated access to protected route", zap.String("path", r.URL.Path))
			if strings.HasPrefix(r.URL.Path, "/api/") {
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		})
	}
}

// RedirectIfAuthenticated sends authenticated sessions away from the
// public account pages to the dashboard.
func RedirectIfAuthenticated(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := session.FromContext(r.Context())
			if sess.IsAuthenticated() {
				logger.Debug("Authenticated user on public route", zap.String("path", r.URL.Path))
				http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
