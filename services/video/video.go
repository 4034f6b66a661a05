package video

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/screenvault/models"
	"github.com/webtor-io/screenvault/services/common"
	"golang.org/x/text/cases"
)

const (
	uploadMaxSizeFlag   = "upload-max-size"
	playbackURLTTLFlag  = "playback-url-ttl"
	defaultContentType  = "video/mp4"
	storagePrefix       = "videos"
	progressSteps       = 10
	defaultProgressTick = 100 * time.Millisecond
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.Int64Flag{
			Name:   uploadMaxSizeFlag,
			Usage:  "max upload size in bytes",
			Value:  200 << 20,
			EnvVar: "UPLOAD_MAX_SIZE",
		},
		cli.DurationFlag{
			Name:   playbackURLTTLFlag,
			Usage:  "playback url ttl",
			Value:  time.Hour,
			EnvVar: "PLAYBACK_URL_TTL",
		},
	)
}

// ProgressFunc receives upload progress in percent.
type ProgressFunc func(percent int)

type UploadInput struct {
	File        io.Reader
	FileName    string
	ContentType string
	Size        int64
	Title       string
	Description string
	UserID      string
}

type Download struct {
	io.ReadCloser
	FileName    string
	ContentType string
	Size        int64
}

type Service struct {
	store        Store
	blobs        BlobStore
	keys         *keyClock
	now          func() time.Time
	maxSize      int64
	progressTick time.Duration
	playbackTTL  time.Duration
}

func New(c *cli.Context, pg *cs.PG, blobs BlobStore) *Service {
	return &Service{
		store:        &pgStore{pg: pg},
		blobs:        blobs,
		keys:         newKeyClock(time.Now),
		now:          time.Now,
		maxSize:      c.Int64(uploadMaxSizeFlag),
		progressTick: defaultProgressTick,
		playbackTTL:  c.Duration(playbackURLTTLFlag),
	}
}

func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Upload stores the file and creates its metadata row in processing state.
// A failed row insert leaves the uploaded blob in place.
func (s *Service) Upload(ctx context.Context, in *UploadInput, onProgress ProgressFunc) (*models.Video, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	key := s.storageKey(in.UserID, in.FileName, in.ContentType)
	l := log.WithFields(log.Fields{
		"user_id":      in.UserID,
		"storage_path": key,
	})

	if err := s.blobs.Put(ctx, key, in.File, in.ContentType); err != nil {
		l.WithError(err).Error("failed to upload video")
		return nil, common.StorageError("upload video", err)
	}

	now := s.now()
	v := &models.Video{
		Title:       strings.TrimSpace(in.Title),
		UserID:      in.UserID,
		StoragePath: key,
		Size:        in.Size,
		Status:      models.VideoStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		v.Description = &d
	}
	if err := s.store.Insert(ctx, v); err != nil {
		l.WithError(err).Warn("failed to create video record, uploaded blob is orphaned")
		return nil, common.DatabaseError("create video record", err)
	}
	l.WithField("video_id", v.ID()).Info("video uploaded")

	if onProgress != nil {
		s.simulateProgress(ctx, onProgress)
	}
	return v, nil
}

// simulateProgress animates 0..100 since the storage backend reports no
// transfer progress.
func (s *Service) simulateProgress(ctx context.Context, onProgress ProgressFunc) {
	t := time.NewTicker(s.progressTick)
	defer t.Stop()
	for i := 0; i <= progressSteps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		onProgress(i * 100 / progressSteps)
	}
}

func (s *Service) validate(in *UploadInput) error {
	const op = "upload video"
	if in == nil || in.File == nil {
		return common.ValidationError(op, "Please select a video file to upload")
	}
	if strings.TrimSpace(in.Title) == "" {
		return common.ValidationError(op, "Please enter a title for your video")
	}
	if !IsVideoContentType(in.ContentType) {
		return common.ValidationError(op, "Please select a valid video file")
	}
	if s.maxSize > 0 && in.Size > s.maxSize {
		return common.ValidationError(op, fmt.Sprintf("Video is too large (max %v)", humanize.IBytes(uint64(s.maxSize))))
	}
	if in.UserID == "" {
		return common.AuthError(op, "Please sign in to upload videos", nil)
	}
	return nil
}

func IsVideoContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "video/")
}

func (s *Service) storageKey(userID string, fileName string, contentType string) string {
	return fmt.Sprintf("%v/%v/%v.%v", storagePrefix, userID, s.keys.Next(), fileExt(fileName, contentType))
}

func fileExt(fileName string, contentType string) string {
	if ext := strings.TrimPrefix(path.Ext(fileName), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	return "mp4"
}

func (s *Service) List(ctx context.Context, userID string) ([]*models.Video, error) {
	vs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("failed to list videos")
		return nil, common.DatabaseError("list videos", err)
	}
	res := make([]*models.Video, 0, len(vs))
	for _, v := range vs {
		if v.UserID == userID {
			res = append(res, v)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// FilterByTitle keeps videos whose title contains q, ignoring case.
func FilterByTitle(vs []*models.Video, q string) []*models.Video {
	fold := cases.Fold()
	q = fold.String(strings.TrimSpace(q))
	if q == "" {
		return vs
	}
	var res []*models.Video
	for _, v := range vs {
		if strings.Contains(fold.String(v.Title), q) {
			res = append(res, v)
		}
	}
	return res
}

func (s *Service) Get(ctx context.Context, id string) (*models.Video, error) {
	const op = "get video"
	vID, err := uuid.FromString(id)
	if err != nil {
		return nil, common.NotFound(op, "Video not found")
	}
	v, err := s.store.Get(ctx, vID)
	if err != nil {
		log.WithError(err).WithField("video_id", id).Error("failed to get video")
		return nil, common.DatabaseError(op, err)
	}
	if v == nil {
		return nil, common.NotFound(op, "Video not found")
	}
	return v, nil
}

// GetOwned is Get restricted to videos of userID. Foreign videos are
// reported as missing.
func (s *Service) GetOwned(ctx context.Context, id string, userID string) (*models.Video, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, common.NotFound("get video", "Video not found")
	}
	return v, nil
}

// PlaybackURL returns a signed URL, or the public one when signing fails.
// Signed URLs expire, so callers must not keep them.
func (s *Service) PlaybackURL(ctx context.Context, storagePath string) (string, error) {
	const op = "get playback url"
	if storagePath == "" {
		return "", common.ValidationError(op, "storage path is empty")
	}
	u, err := s.blobs.SignedURL(ctx, storagePath, s.playbackTTL)
	if err == nil && u != "" {
		return u, nil
	}
	log.WithError(err).WithField("storage_path", storagePath).Warn("failed to sign playback url, using public url")
	pu := s.blobs.PublicURL(storagePath)
	if pu == "" {
		return "", common.StorageError(op, errors.New("no public url available"))
	}
	return pu, nil
}

// Delete removes the blob first and the row second. A failure after the blob
// is gone leaves the row in place.
func (s *Service) Delete(ctx context.Context, id string, storagePath string) error {
	const op = "delete video"
	vID, err := uuid.FromString(id)
	if err != nil {
		return common.NotFound(op, "Video not found")
	}
	l := log.WithFields(log.Fields{
		"video_id":     id,
		"storage_path": storagePath,
	})
	if err := s.blobs.Remove(ctx, storagePath); err != nil {
		l.WithError(err).Error("failed to remove video blob")
		return common.StorageError(op, err)
	}
	n, err := s.store.Delete(ctx, vID)
	if err != nil {
		l.WithError(err).Warn("failed to delete video record, row references a removed blob")
		return common.DatabaseError(op, err)
	}
	if n == 0 {
		return common.NotFound(op, "Video not found")
	}
	l.Info("video deleted")
	return nil
}

func (s *Service) Download(ctx context.Context, storagePath string, fileName string) (*Download, error) {
	const op = "download video"
	r, size, err := s.blobs.Get(ctx, storagePath)
	if err != nil {
		log.WithError(err).WithField("storage_path", storagePath).Error("failed to download video")
		return nil, common.StorageError(op, err)
	}
	return &Download{
		ReadCloser:  r,
		FileName:    fileName,
		ContentType: ContentTypeOf(storagePath),
		Size:        size,
	}, nil
}

// DownloadName is the file name offered to the browser for v.
func DownloadName(v *models.Video) string {
	ext := path.Ext(v.StoragePath)
	if ext == "" {
		ext = ".mp4"
	}
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(v.Title))
	if name == "" {
		name = "video"
	}
	return name + ext
}

func ContentTypeOf(key string) string {
	ct := mime.TypeByExtension(path.Ext(key))
	if IsVideoContentType(ct) {
		return ct
	}
	return defaultContentType
}

// keyClock hands out strictly increasing millisecond timestamps.
type keyClock struct {
	last atomic.Int64
	now  func() time.Time
}

func newKeyClock(now func() time.Time) *keyClock {
	return &keyClock{now: now}
}

func (s *keyClock) Next() int64 {
	for {
		n := s.now().UnixMilli()
		l := s.last.Load()
		if n <= l {
			n = l + 1
		}
		if s.last.CompareAndSwap(l, n) {
			return n
		}
	}
}
