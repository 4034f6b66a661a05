package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	csrf "github.com/utrack/gin-csrf"
)

func newCSRFRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(sessionName, cookie.NewStore([]byte("secret"))))
	r.Use(csrfMiddleware("secret", []string{"/api/auth/"}))
	r.GET("/token", func(c *gin.Context) {
		c.String(http.StatusOK, csrf.GetToken(c))
	})
	r.POST("/profile", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.POST("/api/auth/signin", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestCSRF(t *testing.T) {
	r := newCSRFRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/token", nil))
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Body.String()
	require.NotEmpty(t, token)
	cookies := w.Result().Cookies()

	post := func(path string, header string, query string) int {
		req := httptest.NewRequest(http.MethodPost, path+query, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		if header != "" {
			req.Header.Set("X-CSRF-TOKEN", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, post("/profile", "", ""))
	assert.Equal(t, http.StatusBadRequest, post("/profile", "forged", ""))
	assert.Equal(t, http.StatusOK, post("/profile", token, ""))
	assert.Equal(t, http.StatusOK, post("/profile", "", "?_csrf="+url.QueryEscape(token)))
	assert.Equal(t, http.StatusOK, post("/api/auth/signin", "", ""))
}
