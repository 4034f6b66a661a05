package video

import (
	"context"
	"io"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/screenvault/models"
)

// Store keeps video metadata rows.
type Store interface {
	Insert(ctx context.Context, v *models.Video) error
	ListByUser(ctx context.Context, userID string) ([]*models.Video, error)
	// Get returns nil, nil when no row matches.
	Get(ctx context.Context, id uuid.UUID) (*models.Video, error)
	// Delete returns the number of removed rows.
	Delete(ctx context.Context, id uuid.UUID) (int, error)
}

// BlobStore keeps the uploaded files.
type BlobStore interface {
	// Put never overwrites: an existing key yields common.ErrConflict.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Remove(ctx context.Context, key string) error
	// Get yields common.ErrBlobNotFound for a missing key.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

type pgStore struct {
	pg *cs.PG
}

func (s *pgStore) db() (*pg.DB, error) {
	if s.pg == nil {
		return nil, errors.New("db not initialized")
	}
	db := s.pg.Get()
	if db == nil {
		return nil, errors.New("db not initialized")
	}
	return db, nil
}

func (s *pgStore) Insert(ctx context.Context, v *models.Video) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	return models.CreateVideo(ctx, db, v)
}

func (s *pgStore) ListByUser(ctx context.Context, userID string) ([]*models.Video, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	return models.GetUserVideos(ctx, db, userID)
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	return models.GetVideoByID(ctx, db, id)
}

func (s *pgStore) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	db, err := s.db()
	if err != nil {
		return 0, err
	}
	return models.DeleteVideo(ctx, db, id)
}
