package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

const (
	MaxPhotoSizeBytes int64 = 5 * 1024 * 1024
	thumbnailWidth          = 200
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

var photoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9-]+(_thumb)?\.(jpg|png)$`)

type PhotoService struct {
	store ports.PhotoStore
}

func NewPhotoService(store ports.PhotoStore) *PhotoService {
	return &PhotoService{store: store}
}

// Save stores the photo and a JPEG thumbnail next to it and returns the name
// used as the correspondence photo reference.
func (s *PhotoService) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoSizeBytes+1))
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	if int64(len(data)) > MaxPhotoSizeBytes {
		return "", domain.NewValidationError("foto", "photo exceeds 5MB limit")
	}

	contentType := http.DetectContentType(data)
	ext, ok := photoExtensions[contentType]
	if !ok {
		return "", domain.NewValidationError("foto", "unsupported image type "+contentType)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", domain.NewValidationError("foto", "image cannot be decoded")
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	id := uuid.NewString()
	name := id + ext
	if err := s.store.Put(ctx, name, contentType, data); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	if err := s.store.Put(ctx, ThumbnailName(name), "image/jpeg", buf.Bytes()); err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}
	return name, nil
}

func (s *PhotoService) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if !photoNamePattern.MatchString(name) {
		return nil, "", domain.NewValidationError("name", "invalid photo name")
	}
	return s.store.Open(ctx, name)
}

func ThumbnailName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_thumb.jpg"
}
