package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"inventoflow/internal/identity"
	"inventoflow/internal/session"
)

// Restorer revalidates credentials loaded from a stored session.
type Restorer interface {
	Restore(ctx context.Context, creds *identity.Credentials) (*identity.Credentials, bool)
}

// SessionOptions configures the session cookie.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// SessionMiddleware loads the browser's session from store, restores
// expired credentials through restorer and puts the session in the request
// context. The cookie is written with the response headers so that it
// carries the identifier the session ends the request with. The session is
// saved after the handler returns, or deleted when the handler destroyed it.
func SessionMiddleware(store session.Store, restorer Restorer, opts SessionOptions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := loadSession(ctx, store, r, opts.CookieName, logger)

			if sess.IsAuthenticated() {
				restored, ok := restorer.Restore(ctx, sess.Credentials)
				if ok {
					sess.Credentials = restored
				} else {
					logger.Debug("Stored credentials no longer usable", zap.String("session_id", sess.ID))
					sess.Clear()
				}
			} else if sess.State == session.Authenticating {
				// a login that never completed
				sess.FailLogin()
			}

			cw := &sessionCookieWriter{ResponseWriter: w, sess: sess, opts: opts}
			next.ServeHTTP(cw, r.WithContext(session.NewContext(ctx, sess)))
			cw.setCookie()

			// The handler's context may already be cancelled.
			saveCtx := context.WithoutCancel(ctx)
			if prev := sess.PreviousID(); prev != "" {
				if err := store.Delete(saveCtx, prev); err != nil {
					logger.Error("Failed to delete renewed session", zap.String("session_id", prev), zap.Error(err))
				}
			}
			if sess.Destroyed() {
				if err := store.Delete(saveCtx, sess.ID); err != nil {
					logger.Error("Failed to delete session", zap.String("session_id", sess.ID), zap.Error(err))
				}
				return
			}
			if err := store.Save(saveCtx, sess); err != nil {
				logger.Error("Failed to save session", zap.String("session_id", sess.ID), zap.Error(err))
			}
		})
	}
}

// sessionCookieWriter adds the session cookie right before the headers go
// out.
type sessionCookieWriter struct {
	http.ResponseWriter
	sess *session.Session
	opts SessionOptions
	done bool
}

func (w *sessionCookieWriter) WriteHeader(code int) {
	w.setCookie()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionCookieWriter) Write(b []byte) (int, error) {
	w.setCookie()
	return w.ResponseWriter.Write(b)
}

func (w *sessionCookieWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *sessionCookieWriter) setCookie() {
	if w.done {
		return
	}
	w.done = true

	cookie := &http.Cookie{
		Name:     w.opts.CookieName,
		Value:    w.sess.ID,
		Path:     "/",
		MaxAge:   int(w.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   w.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if w.sess.Destroyed() {
		cookie.Value = ""
		cookie.MaxAge = -1
	}
	http.SetCookie(w.ResponseWriter, cookie)
}

func loadSession(ctx context.Context, store session.Store, r *http.Request, cookieName string, logger *zap.Logger) *session.Session {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return session.New()
	}

	sess, err := store.Get(ctx, cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logger.Warn("Failed to load session", zap.String("session_id", cookie.Value), zap.Error(err))
		}
		return session.New()
	}
	return sess
}
