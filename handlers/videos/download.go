package videos

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/services/video"
	"github.com/webtor-io/screenvault/services/web"
)

func (s *Handler) download(c *gin.Context) {
	v := s.getVideo(c)
	if v == nil {
		return
	}
	d, err := s.videos.Download(c.Request.Context(), v.StoragePath, video.DownloadName(v))
	if err != nil {
		web.RedirectToWithError(c, "/videos/"+v.ID(), err)
		return
	}
	defer func() {
		_ = d.Close()
	}()
	size := d.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, d.ContentType, d, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}),
	})
}
