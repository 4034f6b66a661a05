package auth

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrWrongCredentials = errors.New("wrong credentials")
	ErrEmailExists      = errors.New("email already exists")
	ErrNoSession        = errors.New("no session")
)

// Backend is the identity provider.
type Backend interface {
	EmailExists(email string) (bool, error)
	SignIn(email string, password string) (string, error)
	SignUp(email string, password string) (string, error)
	UpsertThirdPartyUser(provider Provider, providerUserID string, email string) (string, error)
	// GetUser returns nil, nil for an unknown id.
	GetUser(userID string) (*User, error)
	UpdateMetadata(userID string, md map[string]any) error
	CreateSession(w http.ResponseWriter, r *http.Request, userID string) (string, error)
	RefreshSession(w http.ResponseWriter, r *http.Request) (userID string, handle string, err error)
	RevokeSession(w http.ResponseWriter, r *http.Request) (handle string, err error)
}
