package videos

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/web"
)

// remove handles HTTP request for removing a video (Level 1: HTTP interaction)
func (s *Handler) remove(c *gin.Context) {
	u := auth.GetUserFromContext(c)
	if err := s.deleteVideo(c.Request.Context(), c.Param("id"), u); err != nil {
		web.RedirectToWithError(c, "/videos", err)
		return
	}
	web.RedirectToWithSuccess(c, "/videos", "Video deleted successfully")
}

// deleteVideo checks ownership and removes blob and row (Level 2: Business logic)
func (s *Handler) deleteVideo(ctx context.Context, id string, u *auth.User) error {
	v, err := s.videos.GetOwned(ctx, id, u.ID)
	if err != nil {
		return err
	}
	return s.videos.Delete(ctx, v.ID(), v.StoragePath)
}
