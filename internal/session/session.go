// Package session holds per-browser state: authentication, pending
// sign-up or reset flows, and the insight chat transcript.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"inventoflow/internal/identity"
)

// State is the authentication state of a session.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Flow tracks the account flows that span several pages.
type Flow int

const (
	FlowNone Flow = iota
	FlowSignupPending
	FlowSignupConfirmed
	FlowPasswordReset
)

// MaxChatMessages caps the stored chat transcript.
const MaxChatMessages = 50

// ChatMessage is one line of the insight chat transcript.
type ChatMessage struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

const (
	SenderUser      = "user"
	SenderAssistant = "ai"
)

// Session is the server-side state behind a session cookie.
type Session struct {
	ID          string                `json:"id"`
	State       State                 `json:"state"`
	Credentials *identity.Credentials `json:"credentials,omitempty"`
	Flow        Flow                  `json:"flow"`
	FlowEmail   string                `json:"flowEmail,omitempty"`
	Chat        []ChatMessage         `json:"chat,omitempty"`
	Flash       string                `json:"flash,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`

	destroyed  bool
	previousID string
}

// IsAuthenticated reports whether route guards should admit the session.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.State == Authenticated && s.Credentials != nil
}

// BeginLogin moves an unauthenticated session into Authenticating.
func (s *Session) BeginLogin() {
	s.State = Authenticating
}

// CompleteLogin stores credentials, clears any pending account flow and
// moves the session to a fresh identifier.
func (s *Session) CompleteLogin(creds *identity.Credentials) {
	s.renewID()
	s.State = Authenticated
	s.Credentials = creds
	s.Flow = FlowNone
	s.FlowEmail = ""
}

// FailLogin returns an Authenticating session to Unauthenticated.
func (s *Session) FailLogin() {
	s.State = Unauthenticated
	s.Credentials = nil
}

// Clear drops credentials, profile, pending flows and chat history.
func (s *Session) Clear() {
	s.State = Unauthenticated
	s.Credentials = nil
	s.Flow = FlowNone
	s.FlowEmail = ""
	s.Chat = nil
}

// Destroy clears the session and marks it for deletion from the store.
func (s *Session) Destroy() {
	s.Clear()
	s.destroyed = true
}

// Destroyed reports whether Destroy was called during this request.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

func (s *Session) renewID() {
	if s.previousID == "" {
		s.previousID = s.ID
	}
	s.ID = uuid.NewString()
}

// PreviousID returns the identifier the session had before it was renewed
// during this request, or "".
func (s *Session) PreviousID() string {
	return s.previousID
}

// StartFlow records a pending sign-up or password reset for email.
func (s *Session) StartFlow(flow Flow, email string) {
	s.Flow = flow
	s.FlowEmail = email
}

// AppendChat adds a message, dropping the oldest beyond MaxChatMessages.
func (s *Session) AppendChat(msg ChatMessage) {
	s.Chat = append(s.Chat, msg)
	if len(s.Chat) > MaxChatMessages {
		s.Chat = append([]ChatMessage(nil), s.Chat[len(s.Chat)-MaxChatMessages:]...)
	}
}

// PopFlash returns and clears the one-shot message.
func (s *Session) PopFlash() string {
	msg := s.Flash
	s.Flash = ""
	return msg
}

// BearerToken returns the item store credential when the session holds
// unexpired tokens.
func (s *Session) BearerToken(now time.Time) (string, bool) {
	if !s.IsAuthenticated() || !s.Credentials.Tokens.Valid(now) {
		return "", false
	}
	return s.Credentials.Tokens.BearerToken(), true
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// TokenFromContext adapts the request session to the item store client.
func TokenFromContext(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return s.BearerToken(time.Now())
}
