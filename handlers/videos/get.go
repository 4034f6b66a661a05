package videos

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/models"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/web"
)

type GetData struct {
	Video         *models.Video
	PlaybackURL   string
	PlaybackError string
}

func (s *Handler) get(c *gin.Context) {
	v := s.getVideo(c)
	if v == nil {
		return
	}
	d := &GetData{Video: v}
	u, err := s.videos.PlaybackURL(c.Request.Context(), v.StoragePath)
	if err != nil {
		d.PlaybackError = common.UserMessage(err, "Video is not available for playback")
	} else {
		d.PlaybackURL = u
	}
	s.tb.Build("videos/get").HTML(http.StatusOK, web.NewContext(c).WithData(d))
}
