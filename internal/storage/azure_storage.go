package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// BlobScheme is the reference scheme for images held in blob storage
const BlobScheme = "azblob"

type azureStorage struct {
	client    *azblob.Client
	container string
	maxBytes  int64
}

// NewAzureStorage creates blob storage for the account. container is used
// for PutImage and for references that omit one.
func NewAzureStorage(accountName, accountKey, container string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &azureStorage{client: client, container: container, maxBytes: maxBytes}, nil
}

// FetchImage downloads an azblob://container/blob reference
func (s *azureStorage) FetchImage(ctx context.Context, ref string) (*RawImage, error) {
	containerName, blobName, err := ParseBlobRef(ref, s.container)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	body := downloadResponse.Body
	defer body.Close()

	data, err := readLimited(body, s.maxBytes)
	if err != nil {
		return nil, err
	}

	var declared string
	if downloadResponse.ContentType != nil {
		declared = *downloadResponse.ContentType
	}

	return &RawImage{
		Data:        data,
		ContentType: sniffContentType(declared, data),
		Source:      ref,
	}, nil
}

// PutImage uploads data under name in the configured container and returns
// the blob URL
func (s *azureStorage) PutImage(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if s.container == "" {
		return "", fmt.Errorf("no blob container configured")
	}

	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	return strings.TrimSuffix(s.client.URL(), "/") + "/" + s.container + "/" + name, nil
}

// ParseBlobRef splits azblob://container/path/to/blob. An empty host
// (azblob:///path) selects defaultContainer.
func ParseBlobRef(ref, defaultContainer string) (string, string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob reference: %w", err)
	}
	if u.Scheme != BlobScheme {
		return "", "", fmt.Errorf("invalid blob reference %q: scheme must be %s", ref, BlobScheme)
	}

	containerName := u.Host
	if containerName == "" {
		containerName = defaultContainer
	}
	blobName := strings.TrimPrefix(u.Path, "/")

	if containerName == "" || blobName == "" {
		return "", "", fmt.Errorf("invalid blob reference %q: container and blob are required", ref)
	}
	return containerName, blobName, nil
}
