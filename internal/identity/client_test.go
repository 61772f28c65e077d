package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"inventoflow/internal/domain"
)

type fakeProvider struct {
	authErr    error
	confirmErr error
	refreshErr error
	signOutErr error
	attrs      Attributes
	refreshed  *Tokens
	signedOut  []string
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password, name string) error {
	return f.authErr
}

func (f *fakeProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	return f.confirmErr
}

func (f *fakeProvider) Authenticate(ctx context.Context, email, password string) (*Tokens, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &Tokens{AccessToken: "access", IDToken: "id", RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeProvider) ForgotPassword(ctx context.Context, email string) error {
	return f.authErr
}

func (f *fakeProvider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	return f.confirmErr
}

func (f *fakeProvider) GetUser(ctx context.Context, accessToken string) (*Attributes, error) {
	attrs := f.attrs
	return &attrs, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, accessToken string) error {
	f.signedOut = append(f.signedOut, accessToken)
	return f.signOutErr
}

func TestLogin_ResolvesProfile(t *testing.T) {
	provider := &fakeProvider{attrs: Attributes{Email: "jane.doe@example.com"}}
	client := NewClient(provider, zap.NewNop())

	creds, err := client.Login(context.Background(), "jane.doe@example.com", "password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	want := domain.UserProfile{
		Name:   "jane.doe",
		Email:  "jane.doe@example.com",
		Avatar: "https://api.dicebear.com/8.x/initials/svg?seed=jane.doe%40example.com",
	}
	if creds.Profile != want {
		t.Errorf("profile = %+v, want %+v", creds.Profile, want)
	}
	if creds.Tokens.BearerToken() != "id" {
		t.Errorf("bearer token = %q", creds.Tokens.BearerToken())
	}
}

func TestLogin_ProviderMessagePassedThrough(t *testing.T) {
	provider := &fakeProvider{authErr: errors.New("Incorrect username or password.")}
	client := NewClient(provider, zap.NewNop())

	_, err := client.Login(context.Background(), "a@b.com", "bad")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if Message(err) != "Incorrect username or password." {
		t.Errorf("message = %q", Message(err))
	}
}

func TestConfirmErrorsAreConfirmationErrors(t *testing.T) {
	provider := &fakeProvider{confirmErr: errors.New("Invalid verification code provided, please try again.")}
	client := NewClient(provider, zap.NewNop())

	for _, err := range []error{
		client.ConfirmSignUp(context.Background(), "a@b.com", "000000"),
		client.ConfirmPasswordReset(context.Background(), "a@b.com", "000000", "newpassword"),
	} {
		var confirmErr *ConfirmationError
		if !errors.As(err, &confirmErr) {
			t.Fatalf("expected ConfirmationError, got %v", err)
		}
	}
}

func TestTypedProviderErrorsAreNotRewrapped(t *testing.T) {
	provider := &fakeProvider{authErr: &AuthError{Op: "sign up", Message: "User already exists"}}
	client := NewClient(provider, zap.NewNop())

	err := client.SignUp(context.Background(), "a@b.com", "password1")
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Message != "User already exists" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestLogout_BestEffort(t *testing.T) {
	provider := &fakeProvider{signOutErr: errors.New("network down")}
	client := NewClient(provider, zap.NewNop())

	client.Logout(context.Background(), &Credentials{Tokens: Tokens{AccessToken: "access"}})
	client.Logout(context.Background(), nil)

	if len(provider.signedOut) != 1 {
		t.Fatalf("expected one provider sign out, got %d", len(provider.signedOut))
	}
}

func TestRestore(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid credentials pass through", func(t *testing.T) {
		client := NewClient(&fakeProvider{refreshErr: errors.New("unused")}, zap.NewNop())
		client.now = func() time.Time { return now }
		creds := &Credentials{Tokens: Tokens{AccessToken: "a", ExpiresAt: now.Add(time.Minute)}}

		got, ok := client.Restore(context.Background(), creds)
		if !ok || got != creds {
			t.Fatalf("expected credentials to be kept")
		}
	})

	t.Run("expired credentials are refreshed", func(t *testing.T) {
		provider := &fakeProvider{
			attrs:     Attributes{Email: "sam@example.com", Name: "Sam"},
			refreshed: &Tokens{AccessToken: "new", ExpiresAt: now.Add(time.Hour)},
		}
		client := NewClient(provider, zap.NewNop())
		client.now = func() time.Time { return now }
		creds := &Credentials{Tokens: Tokens{AccessToken: "old", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute)}}

		got, ok := client.Restore(context.Background(), creds)
		if !ok {
			t.Fatal("expected refresh to succeed")
		}
		if got.Tokens.AccessToken != "new" || got.Tokens.RefreshToken != "r" || got.Profile.Name != "Sam" {
			t.Errorf("unexpected credentials %+v", got)
		}
	})

	t.Run("refresh failure is silent", func(t *testing.T) {
		client := NewClient(&fakeProvider{refreshErr: errors.New("revoked")}, zap.NewNop())
		client.now = func() time.Time { return now }
		creds := &Credentials{Tokens: Tokens{AccessToken: "old", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute)}}

		if got, ok := client.Restore(context.Background(), creds); ok || got != nil {
			t.Fatalf("expected no credentials, got %+v", got)
		}
	})

	t.Run("nothing stored", func(t *testing.T) {
		client := NewClient(&fakeProvider{}, zap.NewNop())
		if _, ok := client.Restore(context.Background(), nil); ok {
			t.Fatal("expected false")
		}
	})
}

// Feature: inventory-console, Property 9: Profile name falls back to the email local part
func TestProperty_ProfileNameFallback(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing name uses the part before @", prop.ForAll(
		func(local, domainPart string) bool {
			email := local + "@" + domainPart
			profile := domain.NewUserProfile(email, "")
			return profile.Name == local && profile.Email == email
		},
		gen.RegexMatch(`[a-z][a-z0-9.]{0,15}`),
		gen.RegexMatch(`[a-z]{3,8}\.(com|org|net)`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
