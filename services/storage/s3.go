package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
	"github.com/webtor-io/screenvault/services/common"
)

const (
	videosBucketFlag    = "videos-bucket"
	videosPublicURLFlag = "videos-public-url"
	cacheControl        = "max-age=3600"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   videosBucketFlag,
			Usage:  "videos bucket",
			Value:  "videos",
			EnvVar: "VIDEOS_BUCKET",
		},
		cli.StringFlag{
			Name:   videosPublicURLFlag,
			Usage:  "public base url of the videos bucket",
			EnvVar: "VIDEOS_PUBLIC_URL",
		},
	)
}

// S3 keeps blobs in a single bucket.
type S3 struct {
	cl        s3iface.S3API
	uploader  *s3manager.Uploader
	bucket    string
	publicURL string
}

func New(c *cli.Context, s3Cl *cs.S3Client) *S3 {
	if s3Cl == nil {
		return nil
	}
	cl := s3Cl.Get()
	bucket := c.String(videosBucketFlag)
	publicURL := c.String(videosPublicURLFlag)
	if publicURL == "" && cl.Endpoint != "" {
		publicURL = strings.TrimSuffix(cl.Endpoint, "/") + "/" + bucket
	}
	return NewS3(cl, bucket, publicURL)
}

func NewS3(cl s3iface.S3API, bucket string, publicURL string) *S3 {
	return &S3{
		cl:        cl,
		uploader:  s3manager.NewUploaderWithClient(cl),
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func isNotFound(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

func (s *S3) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.cl.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	ok, err := s.exists(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "failed to check object %v", key)
	}
	if ok {
		return errors.Wrapf(common.ErrConflict, "key %v", key)
	}
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         r,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload object %v", key)
	}
	return nil
}

func makeAWSMD5(b []byte) *string {
	h := md5.Sum(b)
	return aws.String(base64.StdEncoding.EncodeToString(h[:]))
}

// Overwrite stores b under key, replacing any previous object.
func (s *S3) Overwrite(ctx context.Context, key string, b []byte, contentType string) error {
	_, err := s.cl.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String(contentType),
		ContentMD5:  makeAWSMD5(b),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to put object %v", key)
	}
	return nil
}

func (s *S3) Remove(ctx context.Context, key string) error {
	_, err := s.cl.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to remove object %v", key)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	r, err := s.cl.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, 0, errors.Wrapf(common.ErrBlobNotFound, "key %v", key)
	}
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to get object %v", key)
	}
	return r.Body, aws.Int64Value(r.ContentLength), nil
}

func (s *S3) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	req, _ := s.cl.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	u, err := req.Presign(ttl)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to presign object url")
		return "", errors.Wrapf(err, "failed to presign object %v", key)
	}
	return u, nil
}

// PublicURL returns an empty string when no public base is known.
func (s *S3) PublicURL(key string) string {
	if s.publicURL == "" {
		return ""
	}
	return s.publicURL + "/" + common.EscapePath(key)
}
