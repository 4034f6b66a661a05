package videos

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/models"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/video"
	"github.com/webtor-io/screenvault/services/web"
)

type IndexData struct {
	Videos []*models.Video
	Query  string
	Total  int
	Error  string
}

func (s *Handler) index(c *gin.Context) {
	u := auth.GetUserFromContext(c)
	q := strings.TrimSpace(c.Query("q"))
	d := &IndexData{Query: q}
	vs, err := s.videos.List(c.Request.Context(), u.ID)
	if err != nil {
		d.Error = common.UserMessage(err, "Failed to load videos")
	} else {
		d.Total = len(vs)
		d.Videos = video.FilterByTitle(vs, q)
	}
	s.tb.Build("videos/index").HTML(http.StatusOK, web.NewContext(c).WithData(d))
}
