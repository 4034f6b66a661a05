package auth

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/supertokens/supertokens-golang/recipe/emailpassword"
	"github.com/supertokens/supertokens-golang/recipe/session"
	"github.com/supertokens/supertokens-golang/recipe/session/sessmodels"
	"github.com/supertokens/supertokens-golang/recipe/thirdparty"
	"github.com/supertokens/supertokens-golang/recipe/usermetadata"
)

const tenantID = "public"

// stBackend talks to the SuperTokens core configured by Auth.Init.
type stBackend struct{}

func (s *stBackend) EmailExists(email string) (bool, error) {
	u, err := emailpassword.GetUserByEmail(tenantID, email)
	if err != nil {
		return false, errors.Wrap(err, "failed to get user by email")
	}
	if u != nil {
		return true, nil
	}
	tpUsers, err := thirdparty.GetUsersByEmail(tenantID, email)
	if err != nil {
		return false, errors.Wrap(err, "failed to get third party users by email")
	}
	return len(tpUsers) > 0, nil
}

func (s *stBackend) SignIn(email string, password string) (string, error) {
	res, err := emailpassword.SignIn(tenantID, email, password)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign in")
	}
	if res.WrongCredentialsError != nil || res.OK == nil {
		return "", ErrWrongCredentials
	}
	return res.OK.User.ID, nil
}

func (s *stBackend) SignUp(email string, password string) (string, error) {
	res, err := emailpassword.SignUp(tenantID, email, password)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign up")
	}
	if res.EmailAlreadyExistsError != nil || res.OK == nil {
		return "", ErrEmailExists
	}
	return res.OK.User.ID, nil
}

func (s *stBackend) UpsertThirdPartyUser(provider Provider, providerUserID string, email string) (string, error) {
	res, err := thirdparty.ManuallyCreateOrUpdateUser(tenantID, string(provider), providerUserID, email)
	if err != nil {
		return "", errors.Wrap(err, "failed to create third party user")
	}
	if res.OK == nil {
		return "", errors.Errorf("failed to create %v user for %v", provider, email)
	}
	return res.OK.User.ID, nil
}

func (s *stBackend) GetUser(userID string) (*User, error) {
	var u *User
	epUser, err := emailpassword.GetUserByID(userID)
	if err == nil && epUser != nil {
		joined := time.UnixMilli(int64(epUser.TimeJoined))
		u = &User{
			ID:        epUser.ID,
			Email:     epUser.Email,
			CreatedAt: &joined,
			Provider:  ProviderEmail,
		}
	} else {
		tpUser, err := thirdparty.GetUserByID(userID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get third party user")
		}
		if tpUser == nil {
			return nil, nil
		}
		joined := time.UnixMilli(int64(tpUser.TimeJoined))
		u = &User{
			ID:        tpUser.ID,
			Email:     tpUser.Email,
			CreatedAt: &joined,
			Provider:  Provider(tpUser.ThirdParty.ID),
		}
	}
	md, err := usermetadata.GetUserMetadata(userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user metadata")
	}
	u.applyMetadata(md)
	return u, nil
}

func (s *stBackend) UpdateMetadata(userID string, md map[string]any) error {
	_, err := usermetadata.UpdateUserMetadata(userID, md)
	if err != nil {
		return errors.Wrap(err, "failed to update user metadata")
	}
	return nil
}

func (s *stBackend) CreateSession(w http.ResponseWriter, r *http.Request, userID string) (string, error) {
	sess, err := session.CreateNewSession(r, w, tenantID, userID, nil, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create session")
	}
	return sess.GetHandle(), nil
}

func (s *stBackend) RefreshSession(w http.ResponseWriter, r *http.Request) (string, string, error) {
	sess, err := session.RefreshSession(r, w)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to refresh session")
	}
	return sess.GetUserID(), sess.GetHandle(), nil
}

func (s *stBackend) RevokeSession(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := session.GetSessionFromRequestContext(r.Context())
	if sess == nil {
		sessionRequired := false
		var err error
		sess, err = session.GetSession(r, w, &sessmodels.VerifySessionOptions{
			SessionRequired: &sessionRequired,
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to get session")
		}
	}
	if sess == nil {
		return "", ErrNoSession
	}
	handle := sess.GetHandle()
	if err := sess.RevokeSession(); err != nil {
		return "", errors.Wrap(err, "failed to revoke session")
	}
	return handle, nil
}
