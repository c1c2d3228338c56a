package repository

import (
	"context"

	"github.com/Arifeenz/paimai-ubi/internal/storage"
	"github.com/Arifeenz/paimai-ubi/pkg/models"
)

// ImageRepository defines the interface for source image access
type ImageRepository interface {
	// FetchImage retrieves raw image bytes from a reference
	FetchImage(ctx context.Context, ref string) (*storage.RawImage, error)

	// ValidateImageURL validates if the provided reference is acceptable
	ValidateImageURL(ref string) error

	// GetImageMetadata fetches the image and reads its header
	GetImageMetadata(ctx context.Context, ref string) (*models.ImageMetadata, error)
}

// ResultRepository stores enhanced images
type ResultRepository interface {
	// SaveResult stores the image and returns where it can be retrieved
	SaveResult(ctx context.Context, data []byte, format, mimeType string) (string, error)
}
