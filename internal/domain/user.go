package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AvatarBaseURL renders initials avatars seeded by email.
const AvatarBaseURL = "https://api.dicebear.com/8.x/initials/svg"

// UserProfile is the signed-in user as shown in the console chrome.
type UserProfile struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// NewUserProfile derives the display profile from identity attributes. An
// empty name falls back to the local part of the email.
func NewUserProfile(email, name string) UserProfile {
	if strings.TrimSpace(name) == "" {
		name = email
		if at := strings.Index(email, "@"); at >= 0 {
			name = email[:at]
		}
	}
	return UserProfile{
		Name:   name,
		Email:  email,
		Avatar: AvatarBaseURL + "?seed=" + url.QueryEscape(email),
	}
}

// User is an account in the self-hosted identity directory.
type User struct {
	ID                    uuid.UUID
	Email                 string
	PasswordHash          string
	Name                  string
	Confirmed             bool
	ConfirmationCode      string
	ConfirmationExpiresAt *time.Time
	ConfirmationAttempts  int
	ResetCode             string
	ResetExpiresAt        *time.Time
	ResetAttempts         int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RefreshToken is an opaque long-lived credential issued by the self-hosted
// identity directory.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
