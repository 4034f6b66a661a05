package videos

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/screenvault/models"
	"github.com/webtor-io/screenvault/services/common"
)

type ThumbnailFormat string

const (
	ThumbnailFormatJPEG ThumbnailFormat = "jpg"
)

const (
	ThumbnailJPEGQuality = 85
)

type ThumbnailArgs struct {
	videoID string
	url     string
	width   int
	format  ThumbnailFormat
}

func (s *ThumbnailArgs) Key() string {
	return fmt.Sprintf("thumbnails/%v/%v.%v", s.videoID, s.width, s.format)
}

func (s *Handler) bindThumbnailArgs(c *gin.Context, v *models.Video) (*ThumbnailArgs, error) {
	file := c.Param("file")
	fileParts := strings.Split(file, ".")
	if len(fileParts) != 2 {
		return nil, errors.Errorf("wrong file format %v", file)
	}
	width, err := strconv.Atoi(fileParts[0])
	if err != nil || width <= 0 || width > s.thumbnailWidth {
		return nil, errors.Errorf("wrong width %v", fileParts[0])
	}
	f := ThumbnailFormat(fileParts[1])
	if f != ThumbnailFormatJPEG {
		return nil, errors.Errorf("wrong format %v", f)
	}
	return &ThumbnailArgs{
		videoID: v.ID(),
		url:     *v.ThumbnailURL,
		width:   width,
		format:  f,
	}, nil
}

func (s *Handler) thumbnail(c *gin.Context) {
	v := s.getVideo(c)
	if v == nil {
		return
	}
	if v.ThumbnailURL == nil || *v.ThumbnailURL == "" {
		c.Status(http.StatusNotFound)
		return
	}
	ta, err := s.bindThumbnailArgs(c, v)
	if err != nil {
		log.WithError(err).Warn("failed to bind thumbnail args")
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	b, err := s.getResizedJPEGThumbnailWithCache(c.Request.Context(), ta)
	if err != nil {
		log.WithError(err).WithField("video_id", ta.videoID).Error("failed to get resized thumbnail")
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	etag := generateETag(b.Bytes())

	if match := c.Request.Header.Get("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Type", "image/jpeg")
	c.Header("Content-Length", strconv.Itoa(b.Len()))
	c.Header("ETag", etag)
	c.Header("Cache-Control", "private, max-age=86400")
	c.Status(http.StatusOK)

	_, _ = io.Copy(c.Writer, b)
}

func generateETag(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf(`"%x"`, sum[:])
}

func (s *Handler) getResizedThumbnail(ctx context.Context, args *ThumbnailArgs) (*image.NRGBA, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.cl.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to fetch thumbnail: status %v", resp.StatusCode)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	return imaging.Resize(srcImg, args.width, 0, imaging.Lanczos), nil
}

func (s *Handler) getResizedJPEGThumbnail(ctx context.Context, args *ThumbnailArgs) (*bytes.Buffer, error) {
	r, err := s.getResizedThumbnail(ctx, args)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = jpeg.Encode(&buf, r, &jpeg.Options{Quality: ThumbnailJPEGQuality})
	if err != nil {
		return nil, err
	}
	return &buf, nil
}

func (s *Handler) getResizedJPEGThumbnailWithCache(ctx context.Context, args *ThumbnailArgs) (*bytes.Buffer, error) {
	if s.cache == nil {
		return s.getResizedJPEGThumbnail(ctx, args)
	}
	b, err := s.getThumbnailFromCache(ctx, args)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	b, err = s.getResizedJPEGThumbnail(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Overwrite(ctx, args.Key(), b.Bytes(), "image/jpeg"); err != nil {
		log.WithError(err).WithField("key", args.Key()).Warn("failed to cache thumbnail")
	}
	return b, nil
}

func (s *Handler) getThumbnailFromCache(ctx context.Context, args *ThumbnailArgs) (*bytes.Buffer, error) {
	r, _, err := s.cache.Get(ctx, args.Key())
	if errors.Is(err, common.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(r)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return &buf, nil
}
