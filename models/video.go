package models

import (
	"context"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

type VideoStatus string

const (
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusError      VideoStatus = "error"
)

type Video struct {
	tableName    struct{}    `pg:"video"`
	VideoID      uuid.UUID   `pg:"video_id,pk,type:uuid,default:gen_random_uuid()"`
	Title        string      `pg:"title,notnull"`
	Description  *string     `pg:"description"`
	UserID       string      `pg:"user_id,notnull"`
	StoragePath  string      `pg:"storage_path,notnull"`
	ThumbnailURL *string     `pg:"thumbnail_url"`
	Duration     *float64    `pg:"duration"`
	Size         int64       `pg:"size,notnull,use_zero"`
	Status       VideoStatus `pg:"status,notnull"`
	CreatedAt    time.Time   `pg:"created_at,notnull,default:now()"`
	UpdatedAt    time.Time   `pg:"updated_at,notnull,default:now()"`
}

func (s *Video) ID() string {
	return s.VideoID.String()
}

func (s *Video) IsReady() bool {
	return s.Status == VideoStatusReady
}

func CreateVideo(ctx context.Context, db *pg.DB, v *Video) error {
	_, err := db.Model(v).
		Context(ctx).
		Returning("*").
		Insert()
	return err
}

func GetVideoByID(ctx context.Context, db *pg.DB, id uuid.UUID) (*Video, error) {
	v := &Video{}
	err := db.Model(v).
		Context(ctx).
		Where("video_id = ?", id).
		Limit(1).
		Select()
	if errors.Is(err, pg.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func GetUserVideos(ctx context.Context, db *pg.DB, userID string) ([]*Video, error) {
	var vs []*Video
	err := db.Model(&vs).
		Context(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Select()
	if err != nil {
		return nil, err
	}
	return vs, nil
}

// DeleteVideo returns the number of removed rows.
func DeleteVideo(ctx context.Context, db *pg.DB, id uuid.UUID) (int, error) {
	res, err := db.Model((*Video)(nil)).
		Context(ctx).
		Where("video_id = ?", id).
		Delete()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}
