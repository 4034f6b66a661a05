package profile

import (
	"context"
	"net/http"

	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/web"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/services/template"
)

type Profiles interface {
	UpdateProfile(ctx context.Context, userID string, fullName string) (*auth.User, error)
}

type Handler struct {
	tb       template.Builder[*web.Context]
	profiles Profiles
}

func RegisterHandler(r *gin.Engine, tm *template.Manager[*web.Context], p Profiles) {
	h := &Handler{
		tb:       tm.MustRegisterViews("profile/*").WithLayout("main"),
		profiles: p,
	}
	h.register(r)
}

func (s *Handler) register(r *gin.Engine) {
	r.GET("/profile", s.get)
	r.POST("/profile", s.post)
}

func (s *Handler) get(c *gin.Context) {
	u := auth.GetUserFromContext(c)
	if !u.HasAuth() {
		c.Redirect(http.StatusFound, common.LoginURL(c.Request.URL.RequestURI()))
		return
	}
	s.tb.Build("profile/get").HTML(http.StatusOK, web.NewContext(c))
}

func (s *Handler) post(c *gin.Context) {
	u := auth.GetUserFromContext(c)
	if !u.HasAuth() {
		c.Redirect(http.StatusFound, common.LoginURL("/profile"))
		return
	}
	if _, err := s.profiles.UpdateProfile(c.Request.Context(), u.ID, c.PostForm("full_name")); err != nil {
		web.RedirectToWithError(c, "/profile", err)
		return
	}
	web.RedirectToWithSuccess(c, "/profile", "Profile updated successfully")
}
