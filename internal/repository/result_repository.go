package repository

import (
	"context"
	"path"

	"github.com/Arifeenz/paimai-ubi/internal/storage"
	"github.com/google/uuid"
)

// DefaultResultPrefix is the blob folder enhanced images are written to
const DefaultResultPrefix = "enhanced"

// BlobResultRepository stores enhanced images in blob storage under
// <prefix>/<uuid>.<ext>
type BlobResultRepository struct {
	store  storage.BlobStorage
	prefix string
}

// NewBlobResultRepository creates a result repository over store
func NewBlobResultRepository(store storage.BlobStorage, prefix string) *BlobResultRepository {
	if prefix == "" {
		prefix = DefaultResultPrefix
	}
	return &BlobResultRepository{store: store, prefix: prefix}
}

// SaveResult uploads data and returns the blob URL
func (r *BlobResultRepository) SaveResult(ctx context.Context, data []byte, format, mimeType string) (string, error) {
	if r.store == nil {
		return "", ErrRepositoryUnavailable
	}
	return r.store.PutImage(ctx, r.objectName(format), data, mimeType)
}

func (r *BlobResultRepository) objectName(format string) string {
	return path.Join(r.prefix, uuid.NewString()+"."+extensionFor(format))
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return "jpg"
	case "":
		return "bin"
	}
	return format
}
