package web

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	csrf "github.com/utrack/gin-csrf"
	"github.com/webtor-io/screenvault/services/auth"
)

// csrfSecretKey is set by the csrf middleware.
const csrfSecretKey = "csrfSecret"

type Context struct {
	c     *gin.Context
	User  *auth.User
	Flash *Flash
	CSRF  string
	Path  string
	Query string
	Data  any
}

func NewContext(c *gin.Context) *Context {
	ctx := &Context{
		c:     c,
		User:  auth.GetUserFromContext(c),
		Path:  c.Request.URL.Path,
		Query: c.Request.URL.RawQuery,
	}
	if _, ok := c.Get(sessions.DefaultKey); ok {
		ctx.Flash = popFlash(sessions.Default(c))
	}
	if _, ok := c.Get(csrfSecretKey); ok {
		ctx.CSRF = csrf.GetToken(c)
	}
	return ctx
}

func (s *Context) WithData(d any) *Context {
	s.Data = d
	return s
}

func (s *Context) GetGinContext() *gin.Context {
	return s.c
}
