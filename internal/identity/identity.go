// Package identity wraps the user directory behind a uniform API for
// sign-up, confirmation, login, password reset and logout.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Tokens are the credentials issued for an authenticated user.
type Tokens struct {
	IDToken      string    `json:"idToken"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Valid reports whether the tokens are present and unexpired at now.
func (t Tokens) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// BearerToken returns the token presented to the item store.
func (t Tokens) BearerToken() string {
	if t.IDToken != "" {
		return t.IDToken
	}
	return t.AccessToken
}

// Attributes are the user attributes held by the provider.
type Attributes struct {
	Email string
	Name  string
}

// Provider is a user directory.
type Provider interface {
	SignUp(ctx context.Context, email, password, name string) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	Authenticate(ctx context.Context, email, password string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	ForgotPassword(ctx context.Context, email string) error
	ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error
	GetUser(ctx context.Context, accessToken string) (*Attributes, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AuthError is returned when the provider rejects a sign-up, login or
// password reset request. Message is the provider's text.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConfirmationError is returned when a confirmation or reset code is
// rejected.
type ConfirmationError struct {
	Op      string
	Message string
	Err     error
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ConfirmationError) Unwrap() error { return e.Err }

func asAuthError(op string, err error) error {
	var authErr *AuthError
	var confirmErr *ConfirmationError
	if errors.As(err, &authErr) || errors.As(err, &confirmErr) {
		return err
	}
	return &AuthError{Op: op, Message: err.Error(), Err: err}
}

func asConfirmationError(op string, err error) error {
	var authErr *AuthError
	var confirmErr *ConfirmationError
	if errors.As(err, &authErr) || errors.As(err, &confirmErr) {
		return err
	}
	return &ConfirmationError{Op: op, Message: err.Error(), Err: err}
}

// Message extracts the user-facing text from an identity error.
func Message(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	var confirmErr *ConfirmationError
	if errors.As(err, &confirmErr) {
		return confirmErr.Message
	}
	return err.Error()
}
