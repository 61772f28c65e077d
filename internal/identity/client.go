package identity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"inventoflow/internal/domain"
)

// Credentials are an authenticated session's tokens and profile.
type Credentials struct {
	Tokens  Tokens             `json:"tokens"`
	Profile domain.UserProfile `json:"profile"`
}

// Client is the application's entry point to the identity provider.
type Client struct {
	provider Provider
	logger   *zap.Logger
	now      func() time.Time
}

func NewClient(provider Provider, logger *zap.Logger) *Client {
	return &Client{provider: provider, logger: logger, now: time.Now}
}

// SignUp registers an account. The account must be confirmed before login.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	if err := c.provider.SignUp(ctx, email, password, ""); err != nil {
		c.logger.Info("Sign up rejected", zap.String("email", email), zap.Error(err))
		return asAuthError("sign up", err)
	}
	c.logger.Info("Sign up pending confirmation", zap.String("email", email))
	return nil
}

func (c *Client) ConfirmSignUp(ctx context.Context, email, code string) error {
	if err := c.provider.ConfirmSignUp(ctx, email, code); err != nil {
		c.logger.Info("Sign up confirmation rejected", zap.String("email", email), zap.Error(err))
		return asConfirmationError("confirm sign up", err)
	}
	return nil
}

// Login authenticates and resolves the user's profile.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	tokens, err := c.provider.Authenticate(ctx, email, password)
	if err != nil {
		c.logger.Info("Login rejected", zap.String("email", email), zap.Error(err))
		return nil, asAuthError("login", err)
	}

	creds, err := c.credentials(ctx, *tokens, email)
	if err != nil {
		return nil, asAuthError("login", err)
	}
	c.logger.Info("User logged in", zap.String("email", creds.Profile.Email))
	return creds, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	if err := c.provider.ForgotPassword(ctx, email); err != nil {
		return asAuthError("forgot password", err)
	}
	return nil
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := c.provider.ConfirmForgotPassword(ctx, email, code, newPassword); err != nil {
		return asConfirmationError("reset password", err)
	}
	return nil
}

// Logout signs the user out at the provider. Failures are logged only; the
// caller always discards its local session.
func (c *Client) Logout(ctx context.Context, creds *Credentials) {
	if creds == nil || creds.Tokens.AccessToken == "" {
		return
	}
	if err := c.provider.SignOut(ctx, creds.Tokens.AccessToken); err != nil {
		c.logger.Warn("Provider sign out failed", zap.Error(err))
	}
}

// Restore revalidates stored credentials. Expired tokens are refreshed and
// the profile reloaded. It reports false, without error, whenever the
// credentials cannot be used.
func (c *Client) Restore(ctx context.Context, creds *Credentials) (*Credentials, bool) {
	if creds == nil {
		return nil, false
	}
	if creds.Tokens.Valid(c.now()) {
		return creds, true
	}
	if creds.Tokens.RefreshToken == "" {
		return nil, false
	}

	tokens, err := c.provider.Refresh(ctx, creds.Tokens.RefreshToken)
	if err != nil {
		c.logger.Debug("Session refresh failed", zap.Error(err))
		return nil, false
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = creds.Tokens.RefreshToken
	}

	restored, err := c.credentials(ctx, *tokens, creds.Profile.Email)
	if err != nil {
		c.logger.Debug("Profile reload failed", zap.Error(err))
		return nil, false
	}
	return restored, true
}

func (c *Client) credentials(ctx context.Context, tokens Tokens, fallbackEmail string) (*Credentials, error) {
	attrs, err := c.provider.GetUser(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	email := attrs.Email
	if email == "" {
		email = fallbackEmail
	}
	return &Credentials{
		Tokens:  tokens,
		Profile: domain.NewUserProfile(email, attrs.Name),
	}, nil
}
