package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxImageBytes caps the size of a fetched image
const DefaultMaxImageBytes int64 = 20 << 20

// ErrTooLarge indicates the image exceeds the fetcher's size cap
var ErrTooLarge = errors.New("image exceeds size limit")

// RawImage is an undecoded image and the content type its source reported
type RawImage struct {
	Data        []byte
	ContentType string
	Source      string
}

// ImageFetcher loads raw image bytes from a reference
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref string) (*RawImage, error)
}

// BlobStorage fetches and stores images in a blob container
type BlobStorage interface {
	ImageFetcher
	PutImage(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// readLimited reads at most maxBytes from r and fails with ErrTooLarge
// when more is available
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// sniffContentType prefers the declared type and falls back to detection
func sniffContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}
