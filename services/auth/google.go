package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProfile is the OpenID Connect userinfo response.
type GoogleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func makeGoogleConfig(domain string, clientID string, clientSecret string) *oauth2.Config {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  domain + "/auth/callback",
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

func (s *Auth) GoogleEnabled() bool {
	return s.google != nil
}

func (s *Auth) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeGoogleCode trades the callback code for the user's Google profile.
func (s *Auth) ExchangeGoogleCode(ctx context.Context, code string) (*GoogleProfile, error) {
	if s.google == nil {
		return nil, errors.New("google sign in is not configured")
	}
	tok, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange code")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.google.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch google profile")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to fetch google profile: status %v", resp.StatusCode)
	}
	p := &GoogleProfile{}
	if err := json.NewDecoder(resp.Body).Decode(p); err != nil {
		return nil, errors.Wrap(err, "failed to decode google profile")
	}
	if p.Sub == "" || p.Email == "" {
		return nil, errors.New("google profile has no id or email")
	}
	return p, nil
}
