package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"inventoflow/internal/identity"
	"inventoflow/internal/middleware"
	"inventoflow/internal/session"
)

// Accounts is the identity operations behind the public pages.
type Accounts interface {
	SignUp(ctx context.Context, email, password string) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*identity.Credentials, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
	Logout(ctx context.Context, creds *identity.Credentials)
}

const ResetEmailMissing = "Email not found. Please start the forgot password process again."

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `validate:"required,email" label:"Email"`
	Password string `validate:"required" label:"Password"`
}

// SignupRequest is the sign-up form.
type SignupRequest struct {
	Email           string `validate:"required,email" label:"Email"`
	Password        string `validate:"required,min=8" label:"Password"`
	ConfirmPassword string `validate:"eqfield=Password" label:"Passwords"`
}

// ConfirmSignupRequest is the account confirmation form.
type ConfirmSignupRequest struct {
	Email string `validate:"required,email" label:"Email"`
	Code  string `validate:"required" label:"Confirmation code"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `validate:"required,email" label:"Email"`
}

// ResetPasswordRequest completes a password reset. The email comes from
// the session, not the form.
type ResetPasswordRequest struct {
	Code           string `validate:"required" label:"Verification code"`
	NewPassword    string `validate:"required" label:"New password"`
	RepeatPassword string `validate:"eqfield=NewPassword" label:"New passwords"`
}

// accountForm is what the account pages echo back.
type accountForm struct {
	Email string
}

// AttemptLimitMessage is shown when a client submits account forms too fast.
const AttemptLimitMessage = "Attempt limit exceeded, please try after some time."

// AccountHandler serves the public account pages and logout.
type AccountHandler struct {
	accounts Accounts
	renderer *Renderer
	logger   *zap.Logger
}

func NewAccountHandler(accounts Accounts, renderer *Renderer, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		renderer: renderer,
		logger:   logger,
	}
}

// RegisterRoutes registers the landing page, the account pages behind
// publicOnly with their submissions behind attemptLimit, and logout behind
// requireAuth.
func (h *AccountHandler) RegisterRoutes(r chi.Router, publicOnly, requireAuth, attemptLimit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(publicOnly)
		r.Get("/", h.Landing)
		r.Get("/login", h.LoginPage)
		r.Get("/signup", h.SignupPage)
		r.Get("/confirm-signup", h.ConfirmSignupPage)
		r.Get("/forgot-password", h.ForgotPasswordPage)
		r.Get("/reset-password", h.ResetPasswordPage)

		r.With(attemptLimit).Post("/login", h.Login)
		r.With(attemptLimit).Post("/signup", h.Signup)
		r.With(attemptLimit).Post("/confirm-signup", h.ConfirmSignup)
		r.With(attemptLimit).Post("/forgot-password", h.ForgotPassword)
		r.With(attemptLimit).Post("/reset-password", h.ResetPassword)
	})

	r.With(requireAuth).Post("/logout", h.Logout)
}

// AttemptsLimited re-renders the submitted form with AttemptLimitMessage.
func (h *AccountHandler) AttemptsLimited(w http.ResponseWriter, r *http.Request) {
	page, ok := accountPages[r.URL.Path]
	if !ok {
		page = accountPages["/login"]
	}
	email := formValue(r, "email")
	if page.name == "reset_password" {
		email = resetEmail(mustSession(r))
	}
	h.renderAccount(w, r, http.StatusTooManyRequests, page.name, page.title, email, AttemptLimitMessage)
}

var accountPages = map[string]struct{ name, title string }{
	"/login":           {"login", "Login"},
	"/signup":          {"signup", "Sign Up"},
	"/confirm-signup":  {"confirm_signup", "Confirm Account"},
	"/forgot-password": {"forgot_password", "Reset Password"},
	"/reset-password":  {"reset_password", "Set New Password"},
}

func (h *AccountHandler) Landing(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "landing", Page{Title: "Welcome", Content: accountForm{}})
}

func (h *AccountHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "login", Page{Title: "Login", Content: accountForm{}})
}

// Login authenticates and moves the session to Authenticated.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	req := LoginRequest{
		Email:    formValue(r, "email"),
		Password: r.PostFormValue("password"),
	}
	if err := middleware.ValidateRequest(req); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "login", "Login", req.Email, middleware.FirstValidationMessage(err))
		return
	}

	sess := mustSession(r)
	sess.BeginLogin()
	creds, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		sess.FailLogin()
		h.renderAccount(w, r, http.StatusUnauthorized, "login", "Login", req.Email, identity.Message(err))
		return
	}

	sess.CompleteLogin(creds)
	http.Redirect(w, r, middleware.DashboardPath, http.StatusSeeOther)
}

func (h *AccountHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "signup", Page{Title: "Sign Up", Content: accountForm{}})
}

// Signup registers the account and hands the email to the confirmation page.
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req := SignupRequest{
		Email:           formValue(r, "email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	if err := middleware.ValidateRequest(req); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "signup", "Sign Up", req.Email, middleware.FirstValidationMessage(err))
		return
	}

	if err := h.accounts.SignUp(r.Context(), req.Email, req.Password); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "signup", "Sign Up", req.Email, identity.Message(err))
		return
	}

	sess := mustSession(r)
	sess.StartFlow(session.FlowSignupPending, req.Email)
	sess.Flash = "Sign up successful! Please check your email for a confirmation code."
	http.Redirect(w, r, "/confirm-signup", http.StatusSeeOther)
}

func (h *AccountHandler) ConfirmSignupPage(w http.ResponseWriter, r *http.Request) {
	email := ""
	if sess := mustSession(r); sess.Flow == session.FlowSignupPending {
		email = sess.FlowEmail
	}
	h.renderer.Render(w, r, http.StatusOK, "confirm_signup", Page{Title: "Confirm Account", Content: accountForm{Email: email}})
}

func (h *AccountHandler) ConfirmSignup(w http.ResponseWriter, r *http.Request) {
	req := ConfirmSignupRequest{
		Email: formValue(r, "email"),
		Code:  formValue(r, "code"),
	}
	if err := middleware.ValidateRequest(req); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "confirm_signup", "Confirm Account", req.Email, middleware.FirstValidationMessage(err))
		return
	}

	if err := h.accounts.ConfirmSignUp(r.Context(), req.Email, req.Code); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "confirm_signup", "Confirm Account", req.Email, identity.Message(err))
		return
	}

	sess := mustSession(r)
	sess.StartFlow(session.FlowSignupConfirmed, req.Email)
	sess.Flash = "Account confirmed successfully! You can now log in."
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

func (h *AccountHandler) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "forgot_password", Page{Title: "Reset Password", Content: accountForm{}})
}

// ForgotPassword requests a reset code and remembers the email for the
// reset page.
func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	req := ForgotPasswordRequest{Email: formValue(r, "email")}
	if err := middleware.ValidateRequest(req); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "forgot_password", "Reset Password", req.Email, middleware.FirstValidationMessage(err))
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "forgot_password", "Reset Password", req.Email, identity.Message(err))
		return
	}

	sess := mustSession(r)
	sess.StartFlow(session.FlowPasswordReset, req.Email)
	sess.Flash = "A verification code has been sent to your email."
	http.Redirect(w, r, "/reset-password", http.StatusSeeOther)
}

func (h *AccountHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	email := resetEmail(mustSession(r))
	page := Page{Title: "Set New Password", Content: accountForm{Email: email}}
	if email == "" {
		page.Error = ResetEmailMissing
	}
	h.renderer.Render(w, r, http.StatusOK, "reset_password", page)
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	email := resetEmail(sess)
	if email == "" {
		h.renderAccount(w, r, http.StatusBadRequest, "reset_password", "Set New Password", "", ResetEmailMissing)
		return
	}

	req := ResetPasswordRequest{
		Code:           formValue(r, "code"),
		NewPassword:    r.PostFormValue("new_password"),
		RepeatPassword: r.PostFormValue("repeat_password"),
	}
	if err := middleware.ValidateRequest(req); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "reset_password", "Set New Password", email, middleware.FirstValidationMessage(err))
		return
	}

	if err := h.accounts.ConfirmPasswordReset(r.Context(), email, req.Code, req.NewPassword); err != nil {
		h.renderAccount(w, r, http.StatusBadRequest, "reset_password", "Set New Password", email, identity.Message(err))
		return
	}

	sess.StartFlow(session.FlowNone, "")
	sess.Flash = "Password has been reset successfully! You can now log in."
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// Logout signs out at the provider and destroys the session regardless of
// the outcome. SessionMiddleware expires the cookie.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	h.accounts.Logout(r.Context(), sess.Credentials)
	h.logger.Info("User logged out", zap.String("session_id", sess.ID))

	sess.Destroy()
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

func (h *AccountHandler) renderAccount(w http.ResponseWriter, r *http.Request, status int, name, title, email, message string) {
	h.renderer.Render(w, r, status, name, Page{Title: title, Error: message, Content: accountForm{Email: email}})
}

func resetEmail(sess *session.Session) string {
	if sess.Flow != session.FlowPasswordReset {
		return ""
	}
	return sess.FlowEmail
}

// mustSession returns the request's session. Routes are always mounted
// behind SessionMiddleware; a bare session keeps handlers safe otherwise.
func mustSession(r *http.Request) *session.Session {
	if sess, ok := session.FromContext(r.Context()); ok {
		return sess
	}
	return session.New()
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}
