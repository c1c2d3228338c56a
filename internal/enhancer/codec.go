package enhancer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// JPEGQuality is the encoder quality for lossy output (0.95 on a 0-1 scale)
const JPEGQuality = 95

var (
	// ErrDecode indicates the input bytes are not a supported raster format
	ErrDecode = errors.New("failed to decode image")

	// ErrEncode indicates the output cannot be serialized in the requested format
	ErrEncode = errors.New("failed to encode image")
)

// Encoded is an encoded output image
type Encoded struct {
	Data     []byte
	Format   string
	MimeType string
	Width    int
	Height   int
}

// Base64 returns the image bytes in standard base64
func (e *Encoded) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURL returns the image as an embeddable data: URL
func (e *Encoded) DataURL() string {
	return "data:" + e.MimeType + ";base64," + e.Base64()
}

// Decode parses image bytes and reports the detected format name
// ("jpeg", "png", "gif", "webp", "bmp" or "tiff").
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return img, format, nil
}

// Inspect reads the dimensions and format of image bytes without decoding
// the pixels
func Inspect(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return cfg, format, nil
}

// Encode serializes img in the named format. JPEG uses JPEGQuality; the
// other formats are lossless.
func Encode(img image.Image, format string) (*Encoded, error) {
	format = NormalizeFormat(format)
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported output format %q", ErrEncode, format)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	bounds := img.Bounds()
	return &Encoded{
		Data:     buf.Bytes(),
		Format:   format,
		MimeType: MimeTypeForFormat(format),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// CanEncode reports whether Encode supports the named format
func CanEncode(format string) bool {
	_, err := imaging.FormatFromExtension(NormalizeFormat(format))
	return err == nil
}

// ResolveOutputFormat picks the output format for an input format. An
// explicit request wins. WebP has no encoder and falls back to PNG.
func ResolveOutputFormat(inputFormat, requested string) string {
	if requested = NormalizeFormat(requested); requested != "" {
		return requested
	}
	inputFormat = NormalizeFormat(inputFormat)
	if inputFormat == "" || !CanEncode(inputFormat) {
		return "png"
	}
	return inputFormat
}

// NormalizeFormat accepts a format name, extension or MIME type and returns
// the canonical format name.
func NormalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.TrimPrefix(format, "image/")
	format = strings.TrimPrefix(format, ".")
	switch format {
	case "jpg", "pjpeg":
		return "jpeg"
	case "tif":
		return "tiff"
	case "x-ms-bmp":
		return "bmp"
	}
	return format
}

// FormatFromMimeType returns the format name for a MIME type
func FormatFromMimeType(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return NormalizeFormat(mimeType)
}

// MimeTypeForFormat returns the MIME type for a format name
func MimeTypeForFormat(format string) string {
	switch NormalizeFormat(format) {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
