package repository

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Arifeenz/paimai-ubi/internal/enhancer"
	"github.com/Arifeenz/paimai-ubi/internal/storage"
	"github.com/Arifeenz/paimai-ubi/pkg/models"
	"github.com/Arifeenz/paimai-ubi/pkg/validation"
)

// SourceRepository implements ImageRepository by routing each reference
// to the fetcher registered for its scheme
type SourceRepository struct {
	fetchers  map[string]storage.ImageFetcher
	validator *validation.URLValidator
}

// NewSourceRepository creates a repository over fetchers keyed by URL
// scheme. Only registered schemes pass validation.
func NewSourceRepository(fetchers map[string]storage.ImageFetcher, allowedHosts []string) *SourceRepository {
	registered := make(map[string]storage.ImageFetcher, len(fetchers))
	schemes := make([]string, 0, len(fetchers))
	for scheme, f := range fetchers {
		if f == nil {
			continue
		}
		registered[scheme] = f
		schemes = append(schemes, scheme)
	}

	return &SourceRepository{
		fetchers:  registered,
		validator: validation.NewURLValidatorWithOptions(schemes, allowedHosts),
	}
}

// FetchImage retrieves raw image bytes from a reference
func (r *SourceRepository) FetchImage(ctx context.Context, ref string) (*storage.RawImage, error) {
	fetcher, err := r.fetcherFor(ref)
	if err != nil {
		return nil, err
	}
	return fetcher.FetchImage(ctx, ref)
}

// ValidateImageURL validates if the provided reference is acceptable
func (r *SourceRepository) ValidateImageURL(ref string) error {
	if ref == "" {
		return ErrInvalidImageURL
	}
	return r.validator.ValidateImageURL(ref)
}

// GetImageMetadata fetches the image and reads its dimensions and format
func (r *SourceRepository) GetImageMetadata(ctx context.Context, ref string) (*models.ImageMetadata, error) {
	raw, err := r.FetchImage(ctx, ref)
	if err != nil {
		return nil, err
	}

	cfg, format, err := enhancer.Inspect(raw.Data)
	if err != nil {
		return nil, err
	}

	return &models.ImageMetadata{
		ContentType:   raw.ContentType,
		ContentLength: int64(len(raw.Data)),
		Width:         cfg.Width,
		Height:        cfg.Height,
		Format:        format,
	}, nil
}

func (r *SourceRepository) fetcherFor(ref string) (storage.ImageFetcher, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}
	fetcher, ok := r.fetchers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return fetcher, nil
}
