// Package local is a self-hosted user directory backed by PostgreSQL.
package local

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"inventoflow/internal/domain"
	"inventoflow/internal/identity"
	"inventoflow/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for password hashes.
	BcryptCost = 10

	// ConfirmationCodeTTL bounds how long a sign-up confirmation code stays
	// valid.
	ConfirmationCodeTTL = 24 * time.Hour

	// ResetCodeTTL bounds how long a password reset code stays valid.
	ResetCodeTTL = 15 * time.Minute

	// MaxCodeAttempts is the number of wrong guesses after which a pending
	// code is discarded.
	MaxCodeAttempts = 5

	MinPasswordLength = 8
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUserNotConfirmed   = errors.New("user is not confirmed")
	ErrUserExists         = errors.New("an account with the given email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrExpiredCode        = errors.New("verification code expired")
	ErrAttemptLimit       = errors.New("verification attempt limit exceeded")
	ErrInvalidPassword    = fmt.Errorf("password shorter than %d characters", MinPasswordLength)
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// messages are the user-facing texts for rejected requests.
var messages = map[error]string{
	ErrInvalidCredentials: "Incorrect username or password.",
	ErrUserNotConfirmed:   "User is not confirmed.",
	ErrUserExists:         "An account with the given email already exists.",
	ErrUserNotFound:       "Username/client id combination not found.",
	ErrInvalidCode:        "Invalid verification code provided, please try again.",
	ErrExpiredCode:        "Invalid code provided, please request a code again.",
	ErrAttemptLimit:       "Attempt limit exceeded, please try after some time.",
	ErrInvalidPassword:    fmt.Sprintf("Password must have length greater than or equal to %d.", MinPasswordLength),
}

func authError(op string, err error) error {
	return &identity.AuthError{Op: op, Message: messages[err], Err: err}
}

func confirmationError(op string, err error) error {
	return &identity.ConfirmationError{Op: op, Message: messages[err], Err: err}
}

// Claims are carried by access and id tokens.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// CodeSender delivers confirmation and reset codes to the user.
type CodeSender interface {
	SendCode(ctx context.Context, email, purpose, code string) error
}

// LogCodeSender writes codes to the log. Suitable for development only.
type LogCodeSender struct {
	Logger *zap.Logger
}

func (s LogCodeSender) SendCode(ctx context.Context, email, purpose, code string) error {
	s.Logger.Info("Verification code issued",
		zap.String("email", email),
		zap.String("purpose", purpose),
		zap.String("code", code),
	)
	return nil
}

// Options configure token lifetimes.
type Options struct {
	JWTSecret     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type Provider struct {
	users   repository.UserRepository
	tokens  repository.RefreshTokenRepository
	sender  CodeSender
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
	newCode func() (string, error)
}

var _ identity.Provider = (*Provider)(nil)

func NewProvider(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	sender CodeSender,
	opts Options,
	logger *zap.Logger,
) *Provider {
	if opts.AccessExpiry <= 0 {
		opts.AccessExpiry = time.Hour
	}
	if opts.RefreshExpiry <= 0 {
		opts.RefreshExpiry = 30 * 24 * time.Hour
	}
	return &Provider{
		users:   users,
		tokens:  tokens,
		sender:  sender,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		newCode: sixDigitCode,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an unconfirmed account and sends its confirmation code.
func (p *Provider) SignUp(ctx context.Context, email, password, name string) error {
	const op = "sign up"
	email = normalizeEmail(email)

	if len(password) < MinPasswordLength {
		return authError(op, ErrInvalidPassword)
	}

	existing, err := p.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return authError(op, ErrUserExists)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	code, err := p.newCode()
	if err != nil {
		return fmt.Errorf("failed to generate confirmation code: %w", err)
	}

	now := p.now()
	expires := now.Add(ConfirmationCodeTTL)
	user := &domain.User{
		ID:                    uuid.New(),
		Email:                 email,
		PasswordHash:          hash,
		Name:                  name,
		ConfirmationCode:      code,
		ConfirmationExpiresAt: &expires,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return authError(op, ErrUserExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return p.sender.SendCode(ctx, email, "confirm-signup", code)
}

func (p *Provider) ConfirmSignUp(ctx context.Context, email, code string) error {
	const op = "confirm sign up"

	user, err := p.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return confirmationError(op, ErrUserNotFound)
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user.Confirmed {
		return nil
	}
	if err := p.verifyCode(ctx, user, confirmationCode(user), code); err != nil {
		return codeFailure(op, err)
	}

	user.Confirmed = true
	user.ConfirmationCode = ""
	user.ConfirmationExpiresAt = nil
	user.ConfirmationAttempts = 0
	user.UpdatedAt = p.now()
	if err := p.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to confirm user: %w", err)
	}
	return nil
}

// Authenticate verifies the password of a confirmed account and issues tokens.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*identity.Tokens, error) {
	const op = "login"

	user, err := p.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, authError(op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return nil, authError(op, ErrInvalidCredentials)
	}
	if !user.Confirmed {
		return nil, authError(op, ErrUserNotConfirmed)
	}

	return p.issueTokens(ctx, user, true)
}

// Refresh issues a new access token for a live refresh token. The refresh
// token itself is not rotated.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*identity.Tokens, error) {
	rt, err := p.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if p.now().After(rt.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := p.users.FindByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	tokens, err := p.issueTokens(ctx, user, false)
	if err != nil {
		return nil, err
	}
	tokens.RefreshToken = refreshToken
	return tokens, nil
}

func (p *Provider) ForgotPassword(ctx context.Context, email string) error {
	const op = "forgot password"

	user, err := p.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return authError(op, ErrUserNotFound)
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	code, err := p.newCode()
	if err != nil {
		return fmt.Errorf("failed to generate reset code: %w", err)
	}
	expires := p.now().Add(ResetCodeTTL)
	user.ResetCode = code
	user.ResetExpiresAt = &expires
	user.ResetAttempts = 0
	user.UpdatedAt = p.now()
	if err := p.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	return p.sender.SendCode(ctx, user.Email, "reset-password", code)
}

// ConfirmForgotPassword sets a new password and revokes every refresh token
// of the account.
func (p *Provider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	const op = "reset password"

	user, err := p.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return confirmationError(op, ErrUserNotFound)
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	if err := p.verifyCode(ctx, user, resetCode(user), code); err != nil {
		return codeFailure(op, err)
	}
	if len(newPassword) < MinPasswordLength {
		return authError(op, ErrInvalidPassword)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ResetCode = ""
	user.ResetExpiresAt = nil
	user.ResetAttempts = 0
	user.UpdatedAt = p.now()
	if err := p.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if _, err := p.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
		p.logger.Warn("Failed to revoke sessions after password reset", zap.Error(err))
	}
	return nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*identity.Attributes, error) {
	claims, err := p.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	return &identity.Attributes{Email: claims.Email, Name: claims.Name}, nil
}

// SignOut revokes every refresh token of the token's user.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.ValidateToken(accessToken)
	if err != nil {
		return err
	}
	revoked, err := p.tokens.RevokeAllForUser(ctx, claims.UserID)
	if err != nil {
		return err
	}
	p.logger.Debug("Signed out", zap.String("user_id", claims.UserID.String()), zap.Int64("revoked", revoked))
	return nil
}

// ValidateToken parses and verifies an access token.
func (p *Provider) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.opts.JWTSecret), nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// pendingCode points at one of the user's outstanding codes.
type pendingCode struct {
	code     *string
	expires  **time.Time
	attempts *int
}

func confirmationCode(u *domain.User) pendingCode {
	return pendingCode{&u.ConfirmationCode, &u.ConfirmationExpiresAt, &u.ConfirmationAttempts}
}

func resetCode(u *domain.User) pendingCode {
	return pendingCode{&u.ResetCode, &u.ResetExpiresAt, &u.ResetAttempts}
}

// verifyCode checks got against the pending code. Every miss is persisted;
// after MaxCodeAttempts misses the code is discarded and only a new code can
// succeed.
func (p *Provider) verifyCode(ctx context.Context, user *domain.User, pc pendingCode, got string) error {
	if *pc.attempts >= MaxCodeAttempts {
		return ErrAttemptLimit
	}
	if *pc.code == "" {
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(*pc.code)) != 1 {
		*pc.attempts++
		exhausted := *pc.attempts >= MaxCodeAttempts
		if exhausted {
			*pc.code = ""
			*pc.expires = nil
		}
		user.UpdatedAt = p.now()
		if err := p.users.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to record code attempt: %w", err)
		}
		if exhausted {
			p.logger.Warn("Verification code discarded after repeated misses", zap.String("user_id", user.ID.String()))
			return ErrAttemptLimit
		}
		return ErrInvalidCode
	}
	if *pc.expires == nil || p.now().After(**pc.expires) {
		return ErrExpiredCode
	}
	return nil
}

// codeFailure turns a rejected code into a ConfirmationError and passes
// storage failures through.
func codeFailure(op string, err error) error {
	for _, known := range []error{ErrInvalidCode, ErrExpiredCode, ErrAttemptLimit} {
		if errors.Is(err, known) {
			return confirmationError(op, known)
		}
	}
	return err
}

func (p *Provider) issueTokens(ctx context.Context, user *domain.User, withRefresh bool) (*identity.Tokens, error) {
	now := p.now()
	expiresAt := now.Add(p.opts.AccessExpiry)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.opts.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	tokens := &identity.Tokens{IDToken: access, AccessToken: access, ExpiresAt: expiresAt}
	if !withRefresh {
		return tokens, nil
	}

	rt := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(p.opts.RefreshExpiry),
		CreatedAt: now,
	}
	if err := p.tokens.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	tokens.RefreshToken = rt.Token
	return tokens, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
