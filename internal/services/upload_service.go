package services

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/storage"
	relay_errors "chatrelay/pkg/errors"
)

const presignTimeout = 5 * time.Second

// UploadService hands out signed upload URLs against the external blob
// store. No business logic beyond key construction.
type UploadService struct {
	s3 *storage.Client
}

func NewUploadService(s3Client *storage.Client) *UploadService {
	return &UploadService{s3: s3Client}
}

// SignUpload returns a short-lived signed PUT URL plus the public URL the
// object will be reachable at. The object key is prefixed with a fresh uuid
// so concurrent uploads of the same file name cannot collide.
func (s *UploadService) SignUpload(ctx context.Context, bucket, fileName string) (uploadURL, publicURL string, err error) {
	if s.s3 == nil {
		return "", "", relay_errors.WithMessage(relay_errors.ErrServiceUnavailable, "Media uploads are not configured")
	}
	bucket = strings.Trim(path.Clean("/"+bucket), "/")
	fileName = path.Base(fileName)
	if bucket == "" || fileName == "" || fileName == "." {
		return "", "", relay_errors.WithMessage(relay_errors.ErrInvalidInput, "bucket and fileName are required")
	}

	key := bucket + "/" + uuid.New().String() + "-" + fileName

	ctx, cancel := context.WithTimeout(ctx, presignTimeout)
	defer cancel()

	uploadURL, err = s.s3.PresignPut(ctx, key)
	if err != nil {
		return "", "", relay_errors.WithMessage(relay_errors.ErrServiceUnavailable, "Failed to create upload URL")
	}
	return uploadURL, s.s3.FileURL(key), nil
}
