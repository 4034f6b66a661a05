package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/web"
)

func (s *Handler) signIn(c *gin.Context) {
	_, err := s.accounts.SignIn(c.Request.Context(), c.Writer, c.Request,
		c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		web.RedirectToWithError(c, loginTabURL(TabSignIn), err)
		return
	}
	web.RedirectToWithSuccess(c, popReturnURL(c), "Signed in successfully")
}

func (s *Handler) signUp(c *gin.Context) {
	_, err := s.accounts.SignUp(c.Request.Context(), c.Writer, c.Request,
		c.PostForm("full_name"), c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		web.RedirectToWithError(c, loginTabURL(TabSignUp), err)
		return
	}
	web.RedirectToWithSuccess(c, popReturnURL(c), "Account created successfully")
}

func (s *Handler) signOut(c *gin.Context) {
	u := auth.GetUserFromContext(c)
	if err := s.accounts.SignOut(c.Request.Context(), c.Writer, c.Request, u.ID); err != nil {
		web.RedirectWithError(c, err)
		return
	}
	web.RedirectToWithSuccess(c, common.AuthPath, "Signed out")
}
