package auth

import (
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
)

const (
	fullNameKey  = "full_name"
	avatarURLKey = "avatar_url"
)

// User is the signed-in identity. A nil or empty User means signed out.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Provider  Provider   `json:"provider,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Expired   bool       `json:"-"`
}

func (s *User) HasAuth() bool {
	return s != nil && s.ID != ""
}

func (s *User) DisplayName() string {
	if s == nil {
		return ""
	}
	if s.FullName != "" {
		return s.FullName
	}
	return s.Email
}

func (s *User) Clone() *User {
	if s == nil {
		return nil
	}
	c := *s
	if s.CreatedAt != nil {
		t := *s.CreatedAt
		c.CreatedAt = &t
	}
	return &c
}

func (s *User) applyMetadata(md map[string]any) {
	if v, ok := md[fullNameKey].(string); ok {
		s.FullName = v
	}
	if v, ok := md[avatarURLKey].(string); ok {
		s.AvatarURL = v
	}
}

// Channel carries Event messages between instances.
const Channel = "auth-state"

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	UserID        string    `json:"user_id"`
	SessionHandle string    `json:"session_handle,omitempty"`
	User          *User     `json:"user"`
	At            time.Time `json:"at"`
}

func NewEvent(t EventType, userID string, handle string, u *User) *Event {
	if t == EventSignedOut {
		u = nil
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          t,
		UserID:        userID,
		SessionHandle: handle,
		User:          u,
		At:            time.Now(),
	}
}
