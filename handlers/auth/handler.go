package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/template"
	"github.com/webtor-io/screenvault/services/web"
)

const (
	returnURLKey  = common.ReturnURLParamName
	oauthStateKey = "oauth-state"
	// RefreshPath sits below the SuperTokens refresh endpoint so that the
	// browser sends the refresh token cookie along.
	RefreshPath = "/api/auth/session/refresh/web"
)

type Accounts interface {
	SignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, email string, password string) (*auth.User, error)
	SignUp(ctx context.Context, w http.ResponseWriter, r *http.Request, fullName string, email string, password string) (*auth.User, error)
	SignInWithGoogle(ctx context.Context, w http.ResponseWriter, r *http.Request, p *auth.GoogleProfile) (*auth.User, error)
	SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) error
	Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.User, error)
	GoogleEnabled() bool
	GoogleAuthURL(state string) string
	ExchangeGoogleCode(ctx context.Context, code string) (*auth.GoogleProfile, error)
}

type Tab string

const (
	TabSignIn Tab = "signin"
	TabSignUp Tab = "signup"
)

type LoginData struct {
	Tab           Tab
	GoogleEnabled bool
}

type RefreshData struct {
	RefreshPath string
	ReturnURL   string
}

type Handler struct {
	tb       template.Builder[*web.Context]
	accounts Accounts
	domain   string
}

func RegisterHandler(r *gin.Engine, tm *template.Manager[*web.Context], a Accounts, domain string) {
	h := &Handler{
		tb:       tm.MustRegisterViews("auth/*").WithLayout("main"),
		accounts: a,
		domain:   domain,
	}
	h.register(r)
}

func (s *Handler) register(r *gin.Engine) {
	r.POST(RefreshPath, s.refreshSession)

	r.Use(func(c *gin.Context) {
		u := auth.GetUserFromContext(c)
		if u.Expired && c.Request.Method == http.MethodGet && !skipRefresh(c.Request.URL.Path) {
			s.refresh(c)
			c.Abort()
			return
		}
	})

	r.GET(common.AuthPath, s.login)
	r.POST("/auth/signin", s.signIn)
	r.POST("/auth/signup", s.signUp)
	r.POST("/auth/signout", s.signOut)
	r.GET("/auth/google", s.google)
	r.GET("/auth/callback", s.callback)
}

func skipRefresh(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/session/")
}

func (s *Handler) refresh(c *gin.Context) {
	s.tb.Build("auth/refresh").HTML(http.StatusOK, web.NewContext(c).WithData(&RefreshData{
		RefreshPath: RefreshPath,
		ReturnURL:   c.Request.URL.RequestURI(),
	}))
}

func (s *Handler) login(c *gin.Context) {
	ret := common.SafeReturnURL(c.Query(returnURLKey), "")
	if auth.GetUserFromContext(c).HasAuth() {
		c.Redirect(http.StatusFound, common.SafeReturnURL(ret, "/"))
		return
	}
	if ret != "" {
		session := sessions.Default(c)
		session.Set(returnURLKey, ret)
		_ = session.Save()
	}
	tab := TabSignIn
	if Tab(c.Query("tab")) == TabSignUp {
		tab = TabSignUp
	}
	s.tb.Build("auth/index").HTML(http.StatusOK, web.NewContext(c).WithData(&LoginData{
		Tab:           tab,
		GoogleEnabled: s.accounts.GoogleEnabled(),
	}))
}

// popReturnURL takes the page stored before sign-in out of the session.
func popReturnURL(c *gin.Context) string {
	session := sessions.Default(c)
	ret, _ := session.Get(returnURLKey).(string)
	if ret == "" {
		return "/"
	}
	session.Delete(returnURLKey)
	_ = session.Save()
	return common.SafeReturnURL(ret, "/")
}

func loginTabURL(t Tab) string {
	return common.AuthPath + "?tab=" + string(t)
}
