package videos

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli"
	"github.com/webtor-io/screenvault/models"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/template"
	"github.com/webtor-io/screenvault/services/video"
	"github.com/webtor-io/screenvault/services/web"
)

const (
	thumbnailMaxWidthFlag = "thumbnail-max-width"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.IntFlag{
			Name:   thumbnailMaxWidthFlag,
			Usage:  "max thumbnail width in pixels",
			Value:  1280,
			EnvVar: "THUMBNAIL_MAX_WIDTH",
		},
	)
}

type Videos interface {
	MaxSize() int64
	Upload(ctx context.Context, in *video.UploadInput, onProgress video.ProgressFunc) (*models.Video, error)
	List(ctx context.Context, userID string) ([]*models.Video, error)
	GetOwned(ctx context.Context, id string, userID string) (*models.Video, error)
	PlaybackURL(ctx context.Context, storagePath string) (string, error)
	Delete(ctx context.Context, id string, storagePath string) error
	Download(ctx context.Context, storagePath string, fileName string) (*video.Download, error)
}

// ThumbnailCache keeps resized thumbnails. It is optional.
type ThumbnailCache interface {
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Overwrite(ctx context.Context, key string, b []byte, contentType string) error
}

type Handler struct {
	tb             template.Builder[*web.Context]
	tbe            template.Builder[*web.Context]
	videos         Videos
	cache          ThumbnailCache
	cl             *http.Client
	thumbnailWidth int
}

func RegisterHandler(c *cli.Context, r *gin.Engine, tm *template.Manager[*web.Context], v Videos, cache ThumbnailCache, cl *http.Client) {
	h := &Handler{
		tb:             tm.MustRegisterViews("videos/*").WithLayout("main"),
		tbe:            tm.MustRegisterViews("errors/*").WithLayout("main"),
		videos:         v,
		cache:          cache,
		cl:             cl,
		thumbnailWidth: c.Int(thumbnailMaxWidthFlag),
	}
	h.register(r)
}

func (s *Handler) register(r *gin.Engine) {
	gr := r.Group("/videos")
	gr.Use(requireSession)
	gr.GET("", s.index)
	gr.GET("/:id", s.get)
	gr.GET("/:id/download", s.download)
	gr.GET("/:id/thumbnail/:file", s.thumbnail)
	gr.POST("/:id/delete", s.remove)

	ur := r.Group("/upload")
	ur.Use(requireSession)
	ur.GET("", s.uploadForm)
	ur.POST("", s.upload)
}

const sessionExpiredMessage = "Your session has expired. Please sign in again."

// requireSession sends visitors without a session to the sign-in page.
func requireSession(c *gin.Context) {
	if auth.GetUserFromContext(c).HasAuth() {
		c.Next()
		return
	}
	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, common.LoginURL(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    sessionExpiredMessage,
		"redirect": common.LoginURL(returnPath(c)),
	})
}

// returnPath is the page the request came from, if it is ours.
func returnPath(c *gin.Context) string {
	u, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || u.Host != c.Request.Host || u.Path == "" {
		return "/"
	}
	return u.Path
}

func (s *Handler) notFound(c *gin.Context) {
	s.tbe.Build("errors/404").HTML(http.StatusNotFound, web.NewContext(c))
}

// getVideo loads the requested video of the signed-in user. It renders the
// error itself and returns nil on failure.
func (s *Handler) getVideo(c *gin.Context) *models.Video {
	u := auth.GetUserFromContext(c)
	v, err := s.videos.GetOwned(c.Request.Context(), c.Param("id"), u.ID)
	if common.IsKind(err, common.KindNotFound) {
		s.notFound(c)
		return nil
	}
	if err != nil {
		web.RedirectToWithError(c, "/videos", err)
		return nil
	}
	return v
}
