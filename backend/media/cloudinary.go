// Package media uploads user images to Cloudinary.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// RootFolder prefixes every folder images are uploaded to.
const RootFolder = "gainz"

// ErrNotConfigured is returned by New when a credential is missing.
var ErrNotConfigured = errors.New("cloudinary configuration is missing")

// Cloudinary uploads images to a Cloudinary account.
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// New builds an uploader from the account's credentials.
func New(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrNotConfigured
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

// UploadImage stores file as folder/publicID, overwriting any previous image
// with the same id, and returns its secure URL.
func (c *Cloudinary) UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	overwrite := true
	params := uploader.UploadParams{
		PublicID:     publicID,
		Folder:       Folder(folder),
		Overwrite:    &overwrite,
		ResourceType: "image",
	}
	if folder == "avatars" {
		params.Transformation = "c_fill,g_face,h_500,w_500"
	}

	res, err := c.cld.Upload.Upload(ctx, file, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}
	logger.Debug("image uploaded", "folder", params.Folder, "publicId", publicID, "url", res.SecureURL)
	return res.SecureURL, nil
}

// DeleteImage removes folder/publicID.
func (c *Cloudinary) DeleteImage(ctx context.Context, folder, publicID string) error {
	_, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     path.Join(Folder(folder), publicID),
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// Folder returns the account folder used for folder.
func Folder(folder string) string {
	if folder == "" {
		return RootFolder
	}
	return path.Join(RootFolder, folder)
}
