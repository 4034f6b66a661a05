package index

import (
	"net/http"

	"github.com/webtor-io/screenvault/services/web"

	"github.com/gin-gonic/gin"
	"github.com/webtor-io/screenvault/services/template"
)

type Handler struct {
	tb  template.Builder[*web.Context]
	tbe template.Builder[*web.Context]
}

func RegisterHandler(r *gin.Engine, tm *template.Manager[*web.Context]) {
	h := &Handler{
		tb:  tm.MustRegisterViews("*").WithLayout("main"),
		tbe: tm.MustRegisterViews("errors/*").WithLayout("main"),
	}
	r.GET("/", h.index)
	r.NoRoute(h.notFound)
}

func (s *Handler) index(c *gin.Context) {
	s.tb.Build("index").HTML(http.StatusOK, web.NewContext(c))
}

func (s *Handler) notFound(c *gin.Context) {
	s.tbe.Build("errors/404").HTML(http.StatusNotFound, web.NewContext(c))
}
