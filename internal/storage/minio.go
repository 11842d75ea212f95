package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/logging"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

var ErrNotAnImage = apperror.BadRequest("Not an image! Please upload only images.")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Image is an uploaded file ready to be stored.
type Image struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageStore keeps user photos and tour images in a MinIO bucket.
type ImageStore struct {
	client *minio.Client
	bucket string
}

// NewImageStore connects and makes sure the bucket exists.
func NewImageStore(ctx context.Context, cfg Config) (*ImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", cfg.Bucket)
		}
		logging.Info().Str("bucket", cfg.Bucket).Msg("created image bucket")
	}

	logging.Info().Str("endpoint", cfg.Endpoint).Msg("connected to MinIO")
	return &ImageStore{client: client, bucket: cfg.Bucket}, nil
}

// Put stores img under its name.
func (s *ImageStore) Put(ctx context.Context, img Image) error {
	_, err := s.client.PutObject(ctx, s.bucket, img.Name, img.Body, img.Size,
		minio.PutObjectOptions{ContentType: img.ContentType})
	return errors.Wrapf(err, "put %s", img.Name)
}

// Remove deletes a stored image. Missing objects are not an error.
func (s *ImageStore) Remove(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
	return errors.Wrapf(err, "remove %s", name)
}

// PresignedURL returns a temporary download link for a stored image.
func (s *ImageStore) PresignedURL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, expiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, "presign %s", name)
	}
	return u.String(), nil
}

// FromHeader opens a multipart upload, rejecting anything that is not an
// image. name is the object name without extension.
func FromHeader(fh *multipart.FileHeader, name string) (Image, io.Closer, error) {
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return Image{}, nil, ErrNotAnImage
	}

	f, err := fh.Open()
	if err != nil {
		return Image{}, nil, errors.WithStack(err)
	}
	return Image{
		Name:        name + "." + Extension(contentType, fh.Filename),
		ContentType: contentType,
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

// Extension prefers the mime subtype, e.g. image/jpeg -> jpeg.
func Extension(contentType, filename string) string {
	if sub := strings.TrimPrefix(contentType, "image/"); sub != "" && sub != contentType {
		return strings.SplitN(sub, "+", 2)[0]
	}
	if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
		return ext
	}
	return "jpeg"
}

func UserPhotoName(userID string, at time.Time) string {
	return fmt.Sprintf("user-%s-%d", userID, at.UnixMilli())
}

func TourCoverName(tourID string, at time.Time) string {
	return fmt.Sprintf("tour-%s-%d-cover", tourID, at.UnixMilli())
}

// TourImageName numbers gallery images from 1.
func TourImageName(tourID string, at time.Time, n int) string {
	return fmt.Sprintf("tour-%s-%d-%d", tourID, at.UnixMilli(), n)
}
