package videos

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/webtor-io/screenvault/models"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/video"
	"github.com/webtor-io/screenvault/services/web"
)

// formOverhead leaves room for the non-file fields of the multipart form.
const formOverhead = 1 << 20

type UploadData struct {
	MaxSize int64
}

type progressEvent struct {
	Percent int `json:"percent"`
}

type doneEvent struct {
	ID       string `json:"id"`
	Redirect string `json:"redirect"`
}

type errorEvent struct {
	Message string `json:"message"`
}

func (s *Handler) uploadForm(c *gin.Context) {
	s.tb.Build("videos/upload").HTML(http.StatusOK, web.NewContext(c).WithData(&UploadData{
		MaxSize: s.videos.MaxSize(),
	}))
}

func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

func (s *Handler) upload(c *gin.Context) {
	if !wantsEventStream(c) {
		v, err := s.storeUpload(c, nil)
		if err != nil {
			web.RedirectToWithError(c, "/upload", err)
			return
		}
		web.RedirectToWithSuccess(c, "/videos/"+v.ID(), "Video uploaded successfully")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	v, err := s.storeUpload(c, func(percent int) {
		c.SSEvent("progress", &progressEvent{Percent: percent})
		c.Writer.Flush()
	})
	if err != nil {
		c.SSEvent("error", &errorEvent{Message: common.UserMessage(err, "Upload failed")})
		return
	}
	c.SSEvent("done", &doneEvent{ID: v.ID(), Redirect: "/videos/" + v.ID()})
}

// storeUpload reads the multipart form and hands the file over to the video
// service.
func (s *Handler) storeUpload(c *gin.Context, onProgress video.ProgressFunc) (*models.Video, error) {
	const op = "upload video"
	maxSize := s.videos.MaxSize()
	if maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+formOverhead)
	}
	// FormFile parses the whole form, so it goes before PostForm
	fh, err := c.FormFile("file")
	u := auth.GetUserFromContext(c)
	in := &video.UploadInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		UserID:      u.ID,
	}
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return nil, common.ValidationError(op, "Video is too large (max "+humanize.IBytes(uint64(maxSize))+")")
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, common.ValidationError(op, "Please select a video file to upload")
	default:
		var f multipart.File
		f, err = fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open uploaded file")
		}
		defer func() {
			_ = f.Close()
		}()
		in.File = f
		in.FileName = fh.Filename
		in.ContentType = fh.Header.Get("Content-Type")
		in.Size = fh.Size
	}
	return s.videos.Upload(c.Request.Context(), in, onProgress)
}
