package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/screenvault/services/common"
)

const minPasswordLength = 6

func (s *Auth) cacheKey(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%v@%v", userID, s.versions[userID].n)
}

// invalidate moves userID to a fresh cache key. Generations are never
// reused, and versions older than the cache lifetime are pruned: every
// entry cached under their previous keys has expired by then.
func (s *Auth) invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, v := range s.versions {
		if now.Sub(v.at) > userCacheExpire {
			delete(s.versions, id)
		}
	}
	s.gen++
	s.versions[userID] = cacheVersion{n: s.gen, at: now}
}

// GetUser returns nil, nil for an unknown id.
func (s *Auth) GetUser(ctx context.Context, userID string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := s.users.Get(s.cacheKey(userID), func() (*User, error) {
		return s.backend.GetUser(userID)
	})
	if err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

func (s *Auth) publish(ctx context.Context, e *Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, Channel, e); err != nil {
		log.WithError(err).
			WithField("event", e.Type).
			WithField("user_id", e.UserID).
			Warn("failed to publish auth event")
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return strings.ToLower(email), nil
}

func (s *Auth) startSession(ctx context.Context, w http.ResponseWriter, r *http.Request, op string, userID string) (*User, error) {
	handle, err := s.backend.CreateSession(w, r, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("failed to create session")
		return nil, common.AuthError(op, "Failed to start session", err)
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil || u == nil {
		log.WithError(err).WithField("user_id", userID).Error("failed to get signed in user")
		return nil, common.AuthError(op, "Failed to load account", err)
	}
	s.publish(ctx, NewEvent(EventSignedIn, userID, handle, u))
	return u, nil
}

// SignIn only accepts emails that already belong to an account.
func (s *Auth) SignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, email string, password string) (*User, error) {
	const op = "sign in"
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, common.ValidationError(op, "Please enter your email and password")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, common.ValidationError(op, "Please enter a valid email address")
	}
	exists, err := s.backend.EmailExists(email)
	if err != nil {
		log.WithError(err).Error("failed to check account")
		return nil, common.AuthError(op, "Sign in failed", err)
	}
	if !exists {
		return nil, common.AuthError(op, "Account not found. Please sign up first.", nil)
	}
	userID, err := s.backend.SignIn(email, password)
	if errors.Is(err, ErrWrongCredentials) {
		return nil, common.AuthError(op, "Invalid email or password", err)
	}
	if err != nil {
		log.WithError(err).Error("failed to sign in")
		return nil, common.AuthError(op, "Sign in failed", err)
	}
	return s.startSession(ctx, w, r, op, userID)
}

// SignUp refuses emails that already belong to an account.
func (s *Auth) SignUp(ctx context.Context, w http.ResponseWriter, r *http.Request, fullName string, email string, password string) (*User, error) {
	const op = "sign up"
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, common.ValidationError(op, "Please enter your full name")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, common.ValidationError(op, "Please enter a valid email address")
	}
	if len(password) < minPasswordLength {
		return nil, common.ValidationError(op, fmt.Sprintf("Password should be at least %v characters", minPasswordLength))
	}
	exists, err := s.backend.EmailExists(email)
	if err != nil {
		log.WithError(err).Error("failed to check account")
		return nil, common.AuthError(op, "Sign up failed", err)
	}
	if exists {
		return nil, common.AuthError(op, "Account already exists. Please sign in instead.", nil)
	}
	userID, err := s.backend.SignUp(email, password)
	if errors.Is(err, ErrEmailExists) {
		return nil, common.AuthError(op, "Account already exists. Please sign in instead.", err)
	}
	if err != nil {
		log.WithError(err).Error("failed to sign up")
		return nil, common.AuthError(op, "Sign up failed", err)
	}
	if err := s.backend.UpdateMetadata(userID, map[string]any{fullNameKey: fullName}); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("failed to store full name")
	}
	s.invalidate(userID)
	return s.startSession(ctx, w, r, op, userID)
}

// SignInWithGoogle creates or updates the Google account and starts a session.
func (s *Auth) SignInWithGoogle(ctx context.Context, w http.ResponseWriter, r *http.Request, p *GoogleProfile) (*User, error) {
	const op = "sign in with google"
	userID, err := s.backend.UpsertThirdPartyUser(ProviderGoogle, p.Sub, strings.ToLower(p.Email))
	if err != nil {
		log.WithError(err).Error("failed to create google user")
		return nil, common.AuthError(op, "Google sign in failed", err)
	}
	md := map[string]any{}
	if p.Name != "" {
		md[fullNameKey] = p.Name
	}
	if p.Picture != "" {
		md[avatarURLKey] = p.Picture
	}
	if len(md) > 0 {
		if err := s.backend.UpdateMetadata(userID, md); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("failed to store google profile")
		}
		s.invalidate(userID)
	}
	return s.startSession(ctx, w, r, op, userID)
}

func (s *Auth) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) error {
	const op = "sign out"
	handle, err := s.backend.RevokeSession(w, r)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("failed to sign out")
		return common.AuthError(op, "Sign out failed", err)
	}
	s.publish(ctx, NewEvent(EventSignedOut, userID, handle, nil))
	return nil
}

// Refresh rotates the session tokens of an expired access token.
func (s *Auth) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) (*User, error) {
	const op = "refresh session"
	userID, handle, err := s.backend.RefreshSession(w, r)
	if err != nil {
		return nil, common.AuthError(op, "Session expired. Please sign in again.", err)
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil || u == nil {
		return nil, common.AuthError(op, "Failed to load account", err)
	}
	s.publish(ctx, NewEvent(EventTokenRefreshed, userID, handle, u))
	return u, nil
}

func (s *Auth) UpdateProfile(ctx context.Context, userID string, fullName string) (*User, error) {
	const op = "update profile"
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, common.ValidationError(op, "Please enter your full name")
	}
	if err := s.backend.UpdateMetadata(userID, map[string]any{fullNameKey: fullName}); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("failed to update profile")
		return nil, common.AuthError(op, "Failed to update profile", err)
	}
	s.invalidate(userID)
	u, err := s.GetUser(ctx, userID)
	if err != nil || u == nil {
		return nil, common.AuthError(op, "Failed to load account", err)
	}
	s.publish(ctx, NewEvent(EventUserUpdated, userID, "", u))
	return u, nil
}
