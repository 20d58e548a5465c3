package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryBackend stores attachments in Cloudinary. It expects
// CLOUDINARY_URL (or the individual CLOUDINARY_* variables) in the
// environment, as the SDK reads them itself.
type CloudinaryBackend struct {
	cld    *cloudinary.Cloudinary
	folder string
	client *http.Client
}

// NewCloudinaryBackend initialises the SDK client.
func NewCloudinaryBackend(folder string) (*CloudinaryBackend, error) {
	cld, err := cloudinary.New()
	if err != nil {
		return nil, fmt.Errorf("initialize cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true
	if folder == "" {
		folder = "notices"
	}
	return &CloudinaryBackend{cld: cld, folder: folder, client: http.DefaultClient}, nil
}

// Store uploads the stream as a raw asset and returns its secure URL.
func (s *CloudinaryBackend) Store(ctx context.Context, key string, r io.Reader) (Descriptor, error) {
	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       key,
		ResourceType:   "raw",
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return Descriptor{}, fmt.Errorf("upload to cloudinary: %w", err)
	}
	if resp.SecureURL == "" {
		return Descriptor{}, fmt.Errorf("cloudinary upload returned empty URL")
	}
	return Descriptor{Locator: resp.SecureURL, Key: resp.PublicID}, nil
}

// Open streams the asset back over HTTP.
func (s *CloudinaryBackend) Open(ctx context.Context, d Descriptor) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build attachment request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("fetch attachment: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Archive renames the asset under the archive prefix so a replacement can
// reuse the original key.
func (s *CloudinaryBackend) Archive(ctx context.Context, d Descriptor) error {
	_, err := s.cld.Upload.Rename(ctx, uploader.RenameParams{
		FromPublicID: d.Key,
		ToPublicID:   s.archivedID(d.Key),
		ResourceType: "raw",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("archive cloudinary asset: %w", err)
	}
	return nil
}

// Delete destroys the primary asset.
func (s *CloudinaryBackend) Delete(ctx context.Context, d Descriptor) error {
	return s.destroy(ctx, d.Key)
}

// DeleteArchived destroys the archived copy for key, if one exists.
func (s *CloudinaryBackend) DeleteArchived(ctx context.Context, key string) error {
	return s.destroy(ctx, s.archivedID(key))
}

func (s *CloudinaryBackend) destroy(ctx context.Context, publicID string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "raw",
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("delete cloudinary asset: %w", err)
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy returned %q", resp.Result)
	}
	return nil
}

func (s *CloudinaryBackend) archivedID(key string) string {
	return path.Join(s.folder, "archive", path.Base(key))
}
