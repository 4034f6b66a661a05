package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/supertokens/supertokens-golang/recipe/dashboard"
	"github.com/supertokens/supertokens-golang/recipe/emailpassword"
	"github.com/supertokens/supertokens-golang/recipe/session"
	"github.com/supertokens/supertokens-golang/recipe/session/errors"
	"github.com/supertokens/supertokens-golang/recipe/session/sessmodels"
	"github.com/supertokens/supertokens-golang/recipe/thirdparty"
	"github.com/supertokens/supertokens-golang/recipe/thirdparty/tpmodels"
	"github.com/supertokens/supertokens-golang/recipe/usermetadata"
	"github.com/supertokens/supertokens-golang/supertokens"
	"github.com/urfave/cli"
	"github.com/webtor-io/lazymap"
	"github.com/webtor-io/screenvault/services/common"
	"golang.org/x/oauth2"

	defaultErrors "errors"
)

const (
	supertokensHostFlag    = "supertokens-host"
	supertokensPortFlag    = "supertokens-port"
	googleClientIDFlag     = "google-client-id"
	googleClientSecretFlag = "google-client-secret"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   supertokensHostFlag,
			Usage:  "supertokens host",
			Value:  "",
			EnvVar: "SUPERTOKENS_SERVICE_HOST",
		},
		cli.IntFlag{
			Name:   supertokensPortFlag,
			Usage:  "supertokens port",
			EnvVar: "SUPERTOKENS_SERVICE_PORT",
		},
		cli.StringFlag{
			Name:   googleClientIDFlag,
			Usage:  "google oauth client id",
			EnvVar: "GOOGLE_CLIENT_ID",
		},
		cli.StringFlag{
			Name:   googleClientSecretFlag,
			Usage:  "google oauth client secret",
			EnvVar: "GOOGLE_CLIENT_SECRET",
		},
	)
}

// Publisher delivers auth events to session mirrors.
type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
}

const userCacheExpire = 30 * time.Second

type cacheVersion struct {
	n  uint64
	at time.Time
}

type Auth struct {
	url                string
	domain             string
	googleClientID     string
	googleClientSecret string
	backend            Backend
	pub                Publisher
	google             *oauth2.Config
	users              lazymap.LazyMap[*User]
	mu                 sync.Mutex
	versions           map[string]cacheVersion
	gen                uint64
	now                func() time.Time
}

func New(c *cli.Context, pub Publisher) *Auth {
	a := newAuth(&stBackend{}, pub)
	a.url = c.String(supertokensHostFlag) + ":" + c.String(supertokensPortFlag)
	a.domain = c.String(common.DomainFlag)
	a.googleClientID = c.String(googleClientIDFlag)
	a.googleClientSecret = c.String(googleClientSecretFlag)
	a.google = makeGoogleConfig(a.domain, a.googleClientID, a.googleClientSecret)
	return a
}

func newAuth(b Backend, pub Publisher) *Auth {
	return &Auth{
		backend: b,
		pub:     pub,
		users: lazymap.New[*User](&lazymap.Config{
			Expire:      userCacheExpire,
			ErrorExpire: 5 * time.Second,
		}),
		versions: map[string]cacheVersion{},
		now:      time.Now,
	}
}

func (s *Auth) Init() error {
	apiBasePath := "/api/auth"
	websiteBasePath := common.AuthPath
	return supertokens.Init(supertokens.TypeInput{
		Supertokens: &supertokens.ConnectionInfo{
			ConnectionURI: s.url,
		},
		AppInfo: supertokens.AppInfo{
			AppName:         "ScreenVault",
			APIDomain:       s.domain,
			WebsiteDomain:   s.domain,
			APIBasePath:     &apiBasePath,
			WebsiteBasePath: &websiteBasePath,
		},
		RecipeList: []supertokens.Recipe{
			emailpassword.Init(nil),
			thirdparty.Init(&tpmodels.TypeInput{
				SignInAndUpFeature: tpmodels.TypeInputSignInAndUp{
					Providers: []tpmodels.ProviderInput{
						{
							Config: tpmodels.ProviderConfig{
								ThirdPartyId: string(ProviderGoogle),
								Clients: []tpmodels.ProviderClientConfig{
									{
										ClientID:     s.googleClientID,
										ClientSecret: s.googleClientSecret,
									},
								},
							},
						},
					},
				},
			}),
			session.Init(nil),
			dashboard.Init(nil),
			usermetadata.Init(nil),
		},
	})
}

type ErrorContext struct{}

type UserContext struct{}

type SessionHandleContext struct{}

// ContextWithUser stores the resolved user and session handle.
func ContextWithUser(ctx context.Context, u *User, handle string) context.Context {
	ctx = context.WithValue(ctx, UserContext{}, u)
	return context.WithValue(ctx, SessionHandleContext{}, handle)
}

// GetUserFromContext never returns nil.
func GetUserFromContext(c *gin.Context) *User {
	u := &User{}
	ctx := c.Request.Context()
	if su, ok := ctx.Value(UserContext{}).(*User); ok && su != nil {
		u = su.Clone()
	}
	if err, ok := ctx.Value(ErrorContext{}).(error); ok && err != nil {
		if defaultErrors.As(err, &errors.TryRefreshTokenError{}) {
			u.Expired = true
		}
	}
	return u
}

func GetSessionHandleFromContext(c *gin.Context) string {
	h, _ := c.Request.Context().Value(SessionHandleContext{}).(string)
	return h
}

func (s *Auth) myVerifySession(options *sessmodels.VerifySessionOptions, otherHandler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := session.GetSession(r, w, options)
		if err != nil {
			ctx := context.WithValue(r.Context(), ErrorContext{}, err)
			r := r.WithContext(ctx)
			if defaultErrors.As(err, &errors.TryRefreshTokenError{}) {
				if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
					otherHandler(w, r)
					return
				}
			} else if defaultErrors.As(err, &errors.UnauthorizedError{}) {
				otherHandler(w, r)
				return
			} else if defaultErrors.As(err, &errors.InvalidClaimError{}) {
				otherHandler(w, r)
				return
			}
			err = supertokens.ErrorHandler(err, r, w)
			if err != nil {
				log.WithError(err).Error("failed to handle error")
				w.WriteHeader(http.StatusInternalServerError)
			}
			return
		}
		if sess == nil {
			otherHandler(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), sessmodels.SessionContext, sess)
		u, err := s.GetUser(ctx, sess.GetUserID())
		if err != nil {
			log.WithError(err).WithField("user_id", sess.GetUserID()).Error("failed to get user")
		} else if u != nil {
			ctx = ContextWithUser(ctx, u, sess.GetHandle())
		}
		otherHandler(w, r.WithContext(ctx))
	}
}

func (s *Auth) verifySession(options *sessmodels.VerifySessionOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.myVerifySession(options, func(rw http.ResponseWriter, r *http.Request) {
			c.Request = c.Request.WithContext(r.Context())
			c.Next()
		})(c.Writer, c.Request)
		// we call Abort so that the next handler in the chain is not called, unless we call Next explicitly
		c.Abort()
	}
}

func (s *Auth) RegisterHandler(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{s.domain},
		AllowMethods:     []string{"GET", "POST", "DELETE", "PUT", "OPTIONS"},
		AllowHeaders:     append([]string{"content-type"}, supertokens.GetAllCORSHeaders()...),
		MaxAge:           1 * time.Minute,
		AllowCredentials: true,
	}))

	r.Use(func(c *gin.Context) {
		supertokens.Middleware(http.HandlerFunc(
			func(rw http.ResponseWriter, r *http.Request) {
				c.Next()
			})).ServeHTTP(c.Writer, c.Request)
		c.Abort()
	})
	sessionRequired := false
	r.Use(s.verifySession(&sessmodels.VerifySessionOptions{
		SessionRequired: &sessionRequired,
	}))
}

func HasAuth(c *gin.Context) {
	u := GetUserFromContext(c)
	if !u.HasAuth() {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Next()
}
