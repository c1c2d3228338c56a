package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalImageFetcher reads images from files below a root directory
type LocalImageFetcher struct {
	root     string
	maxBytes int64
}

// NewLocalImageFetcher creates a fetcher confined to root
func NewLocalImageFetcher(root string, maxBytes int64) *LocalImageFetcher {
	if root == "" {
		root = "."
	}
	return &LocalImageFetcher{root: root, maxBytes: maxBytes}
}

// FetchImage reads ref, a path relative to the root with an optional
// file:// prefix. Paths leaving the root are rejected.
func (l *LocalImageFetcher) FetchImage(ctx context.Context, ref string) (*RawImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f, l.maxBytes)
	if err != nil {
		return nil, err
	}

	return &RawImage{
		Data:        data,
		ContentType: sniffContentType("", data),
		Source:      ref,
	}, nil
}

func (l *LocalImageFetcher) resolve(ref string) (string, error) {
	name := strings.TrimPrefix(ref, "file://")
	if name == "" {
		return "", fmt.Errorf("empty file reference")
	}

	root, err := filepath.Abs(l.root)
	if err != nil {
		return "", fmt.Errorf("invalid root: %w", err)
	}

	path := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(name, "/")))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the image root", ref)
	}
	return path, nil
}
