// Package media stores report attachments on Cloudinary instead of the
// tracker repository.
package media

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/kerlexov/bugreport-go-sdk/pkg/errs"
)

type Config struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Folder    string `yaml:"folder"`
}

func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// CloudinaryUploader implements the issue attachment uploader on top of a
// Cloudinary account.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryUploader(cfg Config) (*CloudinaryUploader, error) {
	if !cfg.Enabled() {
		return nil, errs.ConfigError("cloudinary configuration is missing")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "bugreport"
	}

	return &CloudinaryUploader{
		cld:    cld,
		folder: folder,
	}, nil
}

// UploadFile uploads content under a public ID derived from filePath and
// returns the secure URL. Cloudinary has no commit message, so message is
// ignored.
func (u *CloudinaryUploader) UploadFile(ctx context.Context, filePath string, content []byte, _ string) (string, error) {
	folder, publicID := splitPublicID(u.folder, filePath)
	overwrite := true

	result, err := u.cld.Upload.Upload(ctx, bytes.NewReader(content), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       folder,
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil {
		return "", errs.TransportError("failed to upload to cloudinary", err)
	}
	if result.Error.Message != "" {
		return "", &errs.Error{
			Type:    errs.ErrTypeAPI,
			Message: "cloudinary rejected the upload",
			Body:    result.Error.Message,
		}
	}

	return result.SecureURL, nil
}

// splitPublicID maps "screenshots/screenshot_x.png" onto the folder
// "<root>/screenshots" and the public ID "screenshot_x".
func splitPublicID(root, filePath string) (string, string) {
	dir, file := path.Split(strings.TrimLeft(filePath, "/"))
	publicID := strings.TrimSuffix(file, path.Ext(file))

	folder := strings.Trim(path.Join(root, dir), "/")
	return folder, publicID
}
