package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"inventoflow/internal/alerts"
	"inventoflow/internal/domain"
	"inventoflow/internal/identity"
	"inventoflow/internal/itemstore"
	"inventoflow/internal/middleware"
	"inventoflow/internal/session"
)

// fakeStore is an in-memory item store.
type fakeStore struct {
	items   []domain.InventoryItem
	updates []domain.ItemPatch
	err     error
}

func (f *fakeStore) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.InventoryItem(nil), f.items...), nil
}

func (f *fakeStore) CreateItem(ctx context.Context, draft domain.ItemDraft) (itemstore.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items = append(f.items, domain.InventoryItem{
		ItemID:   "created",
		Name:     draft.Name,
		Quantity: draft.Quantity,
		Price:    draft.Price,
		Category: draft.Category,
	})
	return itemstore.Result{"message": "Item created successfully", "itemId": "created"}, nil
}

func (f *fakeStore) UpdateItem(ctx context.Context, patch domain.ItemPatch) (itemstore.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updates = append(f.updates, patch)
	for i := range f.items {
		if f.items[i].ItemID == patch.ItemID && patch.Quantity != nil {
			f.items[i].Quantity = *patch.Quantity
		}
		if f.items[i].ItemID == patch.ItemID && patch.Name != nil {
			f.items[i].Name = *patch.Name
		}
	}
	return itemstore.Result{}, nil
}

func (f *fakeStore) DeleteItem(ctx context.Context, itemID string) (itemstore.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.items {
		if f.items[i].ItemID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return itemstore.Result{}, nil
}

type fakeAdvisor struct {
	questions []string
	itemCount int
}

func (f *fakeAdvisor) Ask(ctx context.Context, items []domain.InventoryItem, question string) string {
	f.questions = append(f.questions, question)
	f.itemCount = len(items)
	return "Restock the hammers."
}

type fakeAccounts struct {
	loginErr   error
	signupErr  error
	confirmErr error
	forgotErr  error
	resetErr   error

	resetEmail string
	loggedOut  bool
}

func (f *fakeAccounts) SignUp(ctx context.Context, email, password string) error { return f.signupErr }

func (f *fakeAccounts) ConfirmSignUp(ctx context.Context, email, code string) error {
	return f.confirmErr
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (*identity.Credentials, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return signedInCredentials(email), nil
}

func (f *fakeAccounts) RequestPasswordReset(ctx context.Context, email string) error {
	return f.forgotErr
}

func (f *fakeAccounts) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	f.resetEmail = email
	return f.resetErr
}

func (f *fakeAccounts) Logout(ctx context.Context, creds *identity.Credentials) {
	f.loggedOut = true
}

type nopPublisher struct{}

func (nopPublisher) PublishLowStock(ctx context.Context, alert alerts.LowStockAlert) error { return nil }

func signedInCredentials(email string) *identity.Credentials {
	return &identity.Credentials{
		Tokens:  identity.Tokens{AccessToken: "access", IDToken: "id", ExpiresAt: time.Now().Add(time.Hour)},
		Profile: domain.NewUserProfile(email, ""),
	}
}

func signedInSession() *session.Session {
	s := session.New()
	s.CompleteLogin(signedInCredentials("ada@example.com"))
	return s
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(zap.NewNop())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

// withSession puts sess in every request's context, standing in for
// SessionMiddleware.
func withSession(sess *session.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

func passThrough(next http.Handler) http.Handler { return next }

func newAccountRouter(t *testing.T, accounts Accounts, sess *session.Session) chi.Router {
	r := chi.NewRouter()
	r.Use(withSession(sess))
	h := NewAccountHandler(accounts, newRenderer(t), zap.NewNop())
	h.RegisterRoutes(r, middleware.RedirectIfAuthenticated(zap.NewNop()), middleware.RequireAuthenticated(zap.NewNop()), passThrough)
	return r
}

func postForm(h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}
