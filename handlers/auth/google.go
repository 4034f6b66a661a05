package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/web"
)

func (s *Handler) google(c *gin.Context) {
	if !s.accounts.GoogleEnabled() {
		web.RedirectToWithError(c, common.AuthPath,
			common.AuthError("google sign in", "Google sign-in is not available", nil))
		return
	}
	state := uuid.NewString()
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	if err := session.Save(); err != nil {
		web.RedirectToWithError(c, common.AuthPath, errors.Wrap(err, "failed to save session"))
		return
	}
	c.Redirect(http.StatusFound, s.accounts.GoogleAuthURL(state))
}

// callback is the OAuth landing page. It ends on / when the sign-in
// succeeded and on /auth otherwise.
func (s *Handler) callback(c *gin.Context) {
	const op = "google sign in"
	session := sessions.Default(c)
	state, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	_ = session.Save()

	if e := c.Query("error"); e != "" {
		web.RedirectToWithError(c, common.AuthPath,
			common.AuthError(op, "Authentication failed", errors.Errorf("provider error %v", e)))
		return
	}
	if state == "" || c.Query("state") != state {
		web.RedirectToWithError(c, common.AuthPath,
			common.AuthError(op, "Authentication failed", errors.New("oauth state mismatch")))
		return
	}
	ctx := c.Request.Context()
	p, err := s.accounts.ExchangeGoogleCode(ctx, c.Query("code"))
	if err != nil {
		web.RedirectToWithError(c, common.AuthPath, common.AuthError(op, "Authentication failed", err))
		return
	}
	if _, err := s.accounts.SignInWithGoogle(ctx, c.Writer, c.Request, p); err != nil {
		web.RedirectToWithError(c, common.AuthPath, err)
		return
	}
	web.RedirectToWithSuccess(c, popReturnURL(c), "Successfully signed in with Google")
}
