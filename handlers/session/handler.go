package session

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	csrf "github.com/utrack/gin-csrf"
	"github.com/webtor-io/screenvault/services/common"
)

const (
	sessionSecureFlag = "session-secure"
	sessionMaxAgeFlag = "session-max-age"
	sessionName       = "session"
	csrfParam         = "_csrf"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.BoolFlag{
			Name:   sessionSecureFlag,
			Usage:  "send session cookie over https only",
			EnvVar: "SESSION_SECURE",
		},
		cli.IntFlag{
			Name:   sessionMaxAgeFlag,
			Usage:  "session cookie max age in seconds",
			Value:  60 * 60 * 24 * 30,
			EnvVar: "SESSION_MAX_AGE",
		},
	)
}

// RegisterHandler sets the cookie session and csrf protection for every
// route registered afterwards. Requests under ignorePrefixes skip csrf.
func RegisterHandler(c *cli.Context, r *gin.Engine, ignorePrefixes []string) {
	secret := c.String(common.SessionSecretFlag)
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   c.Int(sessionMaxAgeFlag),
		Secure:   c.Bool(sessionSecureFlag),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(csrfMiddleware(secret, ignorePrefixes))
}

// tokenGetter prefers the header and the query string so that multipart
// uploads are not parsed before the size limit is set.
func tokenGetter(c *gin.Context) string {
	if t := c.GetHeader("X-CSRF-TOKEN"); t != "" {
		return t
	}
	if t := c.Query(csrfParam); t != "" {
		return t
	}
	return c.PostForm(csrfParam)
}

func csrfMiddleware(secret string, ignorePrefixes []string) gin.HandlerFunc {
	mw := csrf.Middleware(csrf.Options{
		Secret:      secret,
		TokenGetter: tokenGetter,
		ErrorFunc: func(c *gin.Context) {
			log.WithField("path", c.Request.URL.Path).Warn("csrf token mismatch")
			c.String(http.StatusBadRequest, "CSRF token mismatch")
			c.Abort()
		},
	})
	return func(c *gin.Context) {
		for _, p := range ignorePrefixes {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}
		mw(c)
	}
}
