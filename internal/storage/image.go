// Package storage uploads post images to an external blob store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"

	"quill/internal/config"
	"quill/internal/models"
	"quill/internal/observability"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const DefaultMaxUploadSizeMB = 10

// ErrStoreNotConfigured is returned by NewImageStore when credentials are missing.
var ErrStoreNotConfigured = errors.New("image store not configured")

// UploadResult identifies a stored image.
type UploadResult struct {
	URL      string
	PublicID string
}

// ImageStore is the blob store used for post images.
type ImageStore interface {
	Upload(ctx context.Context, file io.Reader, filename string) (*UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// CloudinaryStore stores images in a Cloudinary folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewImageStore builds a CloudinaryStore from cfg. It returns
// ErrStoreNotConfigured when any credential is blank.
func NewImageStore(cfg *config.Config) (*CloudinaryStore, error) {
	if cfg.CloudinaryName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, ErrStoreNotConfigured
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryStore{cld: cld, folder: cfg.CloudinaryFolder}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, file io.Reader, filename string) (*UploadResult, error) {
	res, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         s.folder,
		Transformation: "c_limit,w_1600,h_1600,q_auto",
		Tags:           []string{"post"},
		Context:        map[string]string{"filename": filename},
	})
	if err == nil && res.Error.Message != "" {
		err = errors.New(res.Error.Message)
	}
	observability.RecordImageStoreOperation("upload", err)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	return &UploadResult{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (s *CloudinaryStore) Destroy(ctx context.Context, publicID string) error {
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err == nil && res.Error.Message != "" {
		err = errors.New(res.Error.Message)
	}
	observability.RecordImageStoreOperation("destroy", err)
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	return nil
}

// PublicIDFromURL recovers the public id from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/quill/abc.jpg -> quill/abc.
// It returns "" when the URL is not a Cloudinary upload URL.
func PublicIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return ""
	}

	segments := strings.Split(rest, "/")
	if i := slices.IndexFunc(segments, isVersion); i >= 0 && i < len(segments)-1 {
		segments = segments[i+1:]
	} else {
		// Unversioned URLs may still carry transformation segments such as c_limit,w_800.
		for len(segments) > 1 && strings.Contains(segments[0], ",") {
			segments = segments[1:]
		}
	}

	id := strings.Join(segments, "/")
	return strings.TrimSuffix(id, path.Ext(id))
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ImageUpload is an image received from a client, not yet stored.
type ImageUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Reader returns the content as an io.Reader for ImageStore.Upload.
func (u *ImageUpload) Reader() io.Reader {
	return bytes.NewReader(u.Content)
}

// Validate checks size and sniffed content type. maxMB <= 0 uses DefaultMaxUploadSizeMB.
func (u *ImageUpload) Validate(maxMB int) error {
	if maxMB <= 0 {
		maxMB = DefaultMaxUploadSizeMB
	}
	if len(u.Content) == 0 {
		return models.NewValidationError("No file uploaded")
	}
	if int64(len(u.Content)) > int64(maxMB)*1024*1024 {
		return models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxMB))
	}
	detected := normalizeContentType(http.DetectContentType(u.Content))
	if !isAllowedImageMIME(detected) {
		return models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(u.ContentType); strings.HasPrefix(provided, "image/") && provided != detected &&
		!(provided == "image/jpg" && detected == "image/jpeg") {
		return models.NewValidationError("Image content type mismatch")
	}
	return nil
}

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
