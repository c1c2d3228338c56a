package validation

import (
	"fmt"
	"strings"

	apperrors "github.com/Arifeenz/paimai-ubi/internal/errors"
)

// SupportedMimeTypes are the input image types accepted for enhancement
var SupportedMimeTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// NormalizeMimeType lowercases a MIME type, drops parameters and maps
// common aliases to their canonical form
func NormalizeMimeType(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	}
	return mimeType
}

// ValidateMimeType rejects empty or unsupported image MIME types
func ValidateMimeType(mimeType string) error {
	normalized := NormalizeMimeType(mimeType)
	if normalized == "" {
		return apperrors.NewValidationError("image MIME type is required", nil)
	}
	for _, supported := range SupportedMimeTypes {
		if normalized == supported {
			return nil
		}
	}
	return apperrors.NewValidationError(
		fmt.Sprintf("unsupported image type %q; expected one of %s", mimeType, strings.Join(SupportedMimeTypes, ", ")),
		nil,
	)
}
