package services

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/logging"
	"github.com/arzan03/natours/internal/metrics"
	"github.com/arzan03/natours/internal/storage"
	"github.com/arzan03/natours/internal/utils"
	"github.com/pkg/errors"
)

const MaxTourImages = 3

var ErrTooManyImages = apperror.Newf(http.StatusBadRequest, "A tour can have at most %d images", MaxTourImages)

type ImageBucket interface {
	Put(ctx context.Context, img storage.Image) error
	Remove(ctx context.Context, name string) error
}

// ImageService names, checks and uploads user photos and tour images.
type ImageService struct {
	bucket ImageBucket
	now    func() time.Time
}

func NewImageService(bucket ImageBucket) *ImageService {
	return &ImageService{bucket: bucket, now: time.Now}
}

// UserPhoto stores a profile photo and returns its object name.
func (s *ImageService) UserPhoto(ctx context.Context, userID string, fh *multipart.FileHeader) (string, error) {
	return s.upload(ctx, "user", fh, storage.UserPhotoName(userID, s.now()))
}

// TourImages holds the object names of an uploaded cover and gallery.
type TourImages struct {
	Cover  string
	Images []string
}

// UploadTourImages stores an optional cover and up to MaxTourImages gallery
// images in parallel. If any upload fails the others are removed again.
func (s *ImageService) UploadTourImages(ctx context.Context, tourID string, cover *multipart.FileHeader, gallery []*multipart.FileHeader) (TourImages, error) {
	if len(gallery) > MaxTourImages {
		return TourImages{}, ErrTooManyImages
	}

	at := s.now()
	var tasks []utils.ParallelTask[string]
	if cover != nil {
		tasks = append(tasks, func() (string, error) {
			return s.upload(ctx, "tour-cover", cover, storage.TourCoverName(tourID, at))
		})
	}
	for i, fh := range gallery {
		n, fh := i+1, fh
		tasks = append(tasks, func() (string, error) {
			return s.upload(ctx, "tour-image", fh, storage.TourImageName(tourID, at, n))
		})
	}

	names, errs := utils.RunParallelTasks(tasks)
	if err := utils.JoinErrors(errs); err != nil {
		s.Discard(context.WithoutCancel(ctx), names...)
		for _, e := range errs {
			if errors.Is(e, storage.ErrNotAnImage) {
				return TourImages{}, storage.ErrNotAnImage
			}
		}
		return TourImages{}, err
	}

	var out TourImages
	if cover != nil {
		out.Cover, names = names[0], names[1:]
	}
	out.Images = names
	return out, nil
}

// Discard removes uploaded objects, logging failures. Empty names are skipped.
func (s *ImageService) Discard(ctx context.Context, names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := s.bucket.Remove(ctx, name); err != nil {
			logging.Warn().Err(err).Str("object", name).Msg("failed to remove image")
		}
	}
}

func (s *ImageService) upload(ctx context.Context, kind string, fh *multipart.FileHeader, name string) (string, error) {
	img, closer, err := storage.FromHeader(fh, name)
	if err != nil {
		return "", err
	}
	defer closer.Close()

	err = s.bucket.Put(ctx, img)
	metrics.RecordImageUpload(kind, err)
	if err != nil {
		return "", err
	}
	return img.Name, nil
}
