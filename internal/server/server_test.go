package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inventoflow/internal/alerts"
	"inventoflow/internal/config"
	"inventoflow/internal/domain"
	"inventoflow/internal/identity"
	"inventoflow/internal/insight"
	"inventoflow/internal/itemstore"
	"inventoflow/internal/service"
	"inventoflow/internal/session"
	"inventoflow/internal/transport"
)

type stubProvider struct{}

func (stubProvider) SignUp(ctx context.Context, email, password, name string) error { return nil }
func (stubProvider) ConfirmSignUp(ctx context.Context, email, code string) error     { return nil }
func (stubProvider) Authenticate(ctx context.Context, email, password string) (*identity.Tokens, error) {
	if password != "correct-horse" {
		return nil, &identity.AuthError{Op: "login", Message: "Incorrect username or password."}
	}
	return &identity.Tokens{AccessToken: "access", IDToken: "id", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (stubProvider) Refresh(ctx context.Context, refreshToken string) (*identity.Tokens, error) {
	return nil, &identity.AuthError{Op: "refresh", Message: "expired"}
}
func (stubProvider) ForgotPassword(ctx context.Context, email string) error { return nil }
func (stubProvider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	return nil
}
func (stubProvider) GetUser(ctx context.Context, accessToken string) (*identity.Attributes, error) {
	return &identity.Attributes{Email: "ada@example.com", Name: "Ada"}, nil
}
func (stubProvider) SignOut(ctx context.Context, accessToken string) error { return nil }

type emptyStore struct{}

func (emptyStore) ListItems(ctx context.Context) ([]domain.InventoryItem, error) { return nil, nil }
func (emptyStore) CreateItem(ctx context.Context, draft domain.ItemDraft) (itemstore.Result, error) {
	return itemstore.Result{}, nil
}
func (emptyStore) UpdateItem(ctx context.Context, patch domain.ItemPatch) (itemstore.Result, error) {
	return itemstore.Result{}, nil
}
func (emptyStore) DeleteItem(ctx context.Context, itemID string) (itemstore.Result, error) {
	return itemstore.Result{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: "0", Env: "development"},
		Session: config.SessionConfig{CookieName: "inventoflow_session", TTLHours: 1, AccountRateLimit: 5},
		Insight: config.InsightConfig{RateLimitPerMinute: 2},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zap.NewNop()
	router, err := NewRouter(testConfig(), logger, Dependencies{
		Identity:  identity.NewClient(stubProvider{}, logger),
		Sessions:  session.NewRedisStore(client, time.Hour),
		Redis:     client,
		Inventory: service.NewInventoryService(emptyStore{}, alerts.LogPublisher{Logger: logger}, logger),
		Advisor:   insight.NewBridge(nil, logger),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

// browser replays the session cookie like a browser would.
type browser struct {
	handler http.Handler
	cookie  *http.Cookie
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == "inventoflow_session" {
			b.cookie = c
		}
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func TestRouteGuards(t *testing.T) {
	b := &browser{handler: newTestRouter(t)}

	if w := b.get("/app/dashboard"); w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("unauthenticated dashboard: %d %q", w.Code, w.Header().Get("Location"))
	}

	if w := b.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"correct-horse"}}); w.Code != http.StatusSeeOther {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}

	if w := b.get("/login"); w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/app/dashboard" {
		t.Fatalf("authenticated login: %d %q", w.Code, w.Header().Get("Location"))
	}

	w := b.get("/app/dashboard")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Ada") {
		t.Fatalf("dashboard: %d", w.Code)
	}

	if w := b.post("/logout", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("logout: %d", w.Code)
	}
	b.cookie = nil
	if w := b.get("/app/dashboard"); w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("after logout: %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestInsightQuestionsWithoutKey(t *testing.T) {
	b := &browser{handler: newTestRouter(t)}
	b.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"correct-horse"}})

	for i := 0; i < 3; i++ {
		if w := b.post("/app/dashboard/insights", url.Values{"question": {"How many items?"}}); w.Code != http.StatusSeeOther {
			t.Fatalf("question %d: %d", i, w.Code)
		}
	}

	body := b.get("/app/dashboard").Body.String()
	if !strings.Contains(body, "Gemini API key is not configured") {
		t.Error("missing not-configured reply")
	}
	if !strings.Contains(body, "You are asking questions too quickly") {
		t.Error("third question should have been rate limited")
	}
}

func TestUnknownPathRedirectsHome(t *testing.T) {
	b := &browser{handler: newTestRouter(t)}
	if w := b.get("/does/not/exist"); w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("status %d, location %q", w.Code, w.Header().Get("Location"))
	}
	if w := b.get("/health"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestLoginRenewsSessionID(t *testing.T) {
	router := newTestRouter(t)
	b := &browser{handler: router}

	b.get("/login")
	anonymous := b.cookie
	if anonymous == nil {
		t.Fatal("no session cookie issued")
	}

	if w := b.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"correct-horse"}}); w.Code != http.StatusSeeOther {
		t.Fatalf("login: %d", w.Code)
	}
	if b.cookie.Value == anonymous.Value {
		t.Fatal("login kept the pre-login session id")
	}

	// A cookie planted before login grants nothing afterwards.
	planted := &browser{handler: router, cookie: anonymous}
	if w := planted.get("/app/dashboard"); w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("pre-login cookie: %d %q", w.Code, w.Header().Get("Location"))
	}
	if w := b.get("/app/dashboard"); w.Code != http.StatusOK {
		t.Fatalf("renewed cookie: %d", w.Code)
	}
}

func TestAccountSubmissionsRateLimitedPerAddress(t *testing.T) {
	router := newTestRouter(t)
	form := url.Values{"email": {"ada@example.com"}}

	for i := 0; i < 5; i++ {
		// a fresh browser each time: dropping the cookie does not reset the count
		b := &browser{handler: router}
		if w := b.post("/forgot-password", form); w.Code != http.StatusSeeOther {
			t.Fatalf("attempt %d: %d", i+1, w.Code)
		}
	}

	b := &browser{handler: router}
	w := b.post("/forgot-password", form)
	if w.Code != http.StatusTooManyRequests || !strings.Contains(w.Body.String(), transport.AttemptLimitMessage) {
		t.Fatalf("sixth attempt: %d", w.Code)
	}

	// pages stay reachable
	if w := b.get("/forgot-password"); w.Code != http.StatusOK {
		t.Fatalf("page: %d", w.Code)
	}
}
