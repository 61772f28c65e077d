package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"inventoflow/internal/domain"
	"inventoflow/internal/identity"
	"inventoflow/internal/session"
)

const cookieName = "inventoflow_session"

type stubRestorer struct {
	ok    bool
	calls int
}

func (s *stubRestorer) Restore(ctx context.Context, creds *identity.Credentials) (*identity.Credentials, bool) {
	s.calls++
	if !s.ok {
		return nil, false
	}
	return creds, true
}

func validCredentials() *identity.Credentials {
	return &identity.Credentials{
		Tokens: identity.Tokens{
			IDToken:     "id-token",
			AccessToken: "access-token",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
		Profile: domain.NewUserProfile("ada@example.com", ""),
	}
}

func newSessionStack(t *testing.T, restorer Restorer, handler http.Handler) (http.Handler, *session.RedisStore) {
	t.Helper()
	store := session.NewRedisStore(newRedis(t), time.Hour)
	opts := SessionOptions{CookieName: cookieName, TTL: time.Hour}
	return SessionMiddleware(store, restorer, opts, zap.NewNop())(handler), store
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func TestSessionMiddleware_CreatesAndPersistsSession(t *testing.T) {
	var seen *session.Session
	handler, store := newSessionStack(t, &stubRestorer{ok: true}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
		seen.Flash = "hello"
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	cookie := sessionCookie(w)
	if seen == nil || cookie == nil || cookie.Value != seen.ID || !cookie.HttpOnly {
		t.Fatalf("cookie %+v, session %+v", cookie, seen)
	}
	stored, err := store.Get(context.Background(), seen.ID)
	if err != nil || stored.Flash != "hello" {
		t.Fatalf("stored session = %+v, %v", stored, err)
	}

	// The same cookie loads the same session.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	first := seen.ID
	handler.ServeHTTP(w, req)
	if seen.ID != first {
		t.Errorf("expected session %s, got %s", first, seen.ID)
	}
}

func TestSessionMiddleware_UnknownCookieStartsFresh(t *testing.T) {
	var seen *session.Session
	handler, _ := newSessionStack(t, &stubRestorer{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "gone"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil || seen.ID == "gone" || seen.IsAuthenticated() {
		t.Fatalf("unexpected session %+v", seen)
	}
}

func TestSessionMiddleware_FailedRestoreClearsSilently(t *testing.T) {
	restorer := &stubRestorer{ok: false}
	var seen *session.Session
	handler, store := newSessionStack(t, restorer, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.FromContext(r.Context())
	}))

	sess := session.New()
	sess.CompleteLogin(validCredentials())
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/app/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: sess.ID})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if restorer.calls != 1 || seen.IsAuthenticated() || seen.ID != sess.ID {
		t.Fatalf("calls %d, session %+v", restorer.calls, seen)
	}
	if w.Code != http.StatusOK {
		t.Errorf("restore failure should not surface, got %d", w.Code)
	}
}

func TestSessionMiddleware_DestroyDeletesSession(t *testing.T) {
	handler, store := newSessionStack(t, &stubRestorer{ok: true}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())
		sess.Destroy()
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	}))

	sess := session.New()
	sess.CompleteLogin(validCredentials())
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: sess.ID})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if _, err := store.Get(context.Background(), sess.ID); err != session.ErrNotFound {
		t.Errorf("expected session to be deleted, got %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected a single expiring cookie, got %+v", cookies)
	}
}

func TestSessionMiddleware_LoginRenewsID(t *testing.T) {
	handler, store := newSessionStack(t, &stubRestorer{ok: true}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())
		sess.CompleteLogin(validCredentials())
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
	}))

	anonymous := session.New()
	if err := store.Save(context.Background(), anonymous); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: anonymous.ID})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == anonymous.ID {
		t.Fatalf("expected one cookie with a new id, got %+v", cookies)
	}
	if _, err := store.Get(context.Background(), anonymous.ID); err != session.ErrNotFound {
		t.Errorf("pre-login session should be gone, got %v", err)
	}
	renewed, err := store.Get(context.Background(), cookies[0].Value)
	if err != nil || !renewed.IsAuthenticated() {
		t.Fatalf("renewed session = %+v, %v", renewed, err)
	}
}

func TestGuards(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	protected := RequireAuthenticated(zap.NewNop())(ok)
	public := RedirectIfAuthenticated(zap.NewNop())(ok)

	anonymous := session.New()
	signedIn := session.New()
	signedIn.CompleteLogin(validCredentials())

	serve := func(h http.Handler, path string, s *session.Session) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(session.NewContext(req.Context(), s))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	if w := serve(protected, "/app/dashboard", anonymous); w.Code != http.StatusSeeOther || w.Header().Get("Location") != LoginPath {
		t.Errorf("anonymous dashboard: %d %q", w.Code, w.Header().Get("Location"))
	}
	if w := serve(protected, "/api/dashboard", anonymous); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous api: %d", w.Code)
	}
	if w := serve(protected, "/app/dashboard", signedIn); w.Code != http.StatusOK {
		t.Errorf("signed-in dashboard: %d", w.Code)
	}
	if w := serve(public, "/login", signedIn); w.Code != http.StatusSeeOther || w.Header().Get("Location") != DashboardPath {
		t.Errorf("signed-in login: %d %q", w.Code, w.Header().Get("Location"))
	}
	if w := serve(public, "/login", anonymous); w.Code != http.StatusOK {
		t.Errorf("anonymous login: %d", w.Code)
	}
}
