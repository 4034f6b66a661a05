package web

import (
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/screenvault/services/common"
)

type FlashType string

const (
	FlashError   FlashType = "error"
	FlashSuccess FlashType = "success"
)

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Type    FlashType
	Message string
}

func setFlash(c *gin.Context, t FlashType, msg string) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return
	}
	s := sessions.Default(c)
	s.AddFlash(msg, string(t))
	if err := s.Save(); err != nil {
		log.WithError(err).Warn("failed to save flash")
	}
}

func popFlash(s sessions.Session) *Flash {
	var f *Flash
	for _, t := range []FlashType{FlashError, FlashSuccess} {
		fs := s.Flashes(string(t))
		if len(fs) == 0 {
			continue
		}
		if msg, ok := fs[len(fs)-1].(string); ok && f == nil {
			f = &Flash{Type: t, Message: msg}
		}
	}
	if f != nil {
		if err := s.Save(); err != nil {
			log.WithError(err).Warn("failed to save session")
		}
	}
	return f
}

// backURL is the local page the request came from.
func backURL(c *gin.Context) string {
	ref := c.GetHeader("Referer")
	if ref == "" {
		return "/"
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != c.Request.Host) {
		return "/"
	}
	back := u.EscapedPath()
	if u.RawQuery != "" {
		back += "?" + u.RawQuery
	}
	return common.SafeReturnURL(back, "/")
}

func RedirectWithError(c *gin.Context, err error) {
	RedirectToWithError(c, backURL(c), err)
}

func RedirectToWithError(c *gin.Context, to string, err error) {
	log.WithError(err).WithField("path", c.Request.URL.Path).Warn("request failed")
	setFlash(c, FlashError, common.UserMessage(err, "Something went wrong"))
	c.Redirect(http.StatusFound, to)
}

func RedirectWithSuccessAndMessage(c *gin.Context, msg string) {
	RedirectToWithSuccess(c, backURL(c), msg)
}

func RedirectToWithSuccess(c *gin.Context, to string, msg string) {
	setFlash(c, FlashSuccess, msg)
	c.Redirect(http.StatusFound, to)
}
