package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/services/common"
)

// sameOrigin rejects cross-site posts. The refresh endpoint lives under the
// api prefix and is not covered by csrf tokens.
func (s *Handler) sameOrigin(c *gin.Context) bool {
	if site := c.GetHeader("Sec-Fetch-Site"); site != "" && site != "same-origin" {
		return false
	}
	o := c.GetHeader("Origin")
	return o == "" || s.domain == "" || strings.TrimSuffix(o, "/") == strings.TrimSuffix(s.domain, "/")
}

func (s *Handler) refreshSession(c *gin.Context) {
	if !s.sameOrigin(c) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	u, err := s.accounts.Refresh(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":    common.UserMessage(err, "Session expired"),
			"redirect": common.AuthPath,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": u,
	})
}
