package validation

import (
	"testing"

	apperrors "github.com/Arifeenz/paimai-ubi/internal/errors"
)

func TestNormalizeMimeType(t *testing.T) {
	tests := []struct {
		in, expected string
	}{
		{"image/jpeg", "image/jpeg"},
		{"IMAGE/JPG", "image/jpeg"},
		{"image/pjpeg", "image/jpeg"},
		{"image/x-png", "image/png"},
		{"image/webp; q=1", "image/webp"},
		{"  ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeMimeType(tt.in); got != tt.expected {
			t.Errorf("NormalizeMimeType(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestValidateMimeType(t *testing.T) {
	tests := []struct {
		mimeType string
		wantErr  bool
	}{
		{"image/jpeg", false},
		{"image/jpg", false},
		{"image/png", false},
		{"image/webp", false},
		{"image/gif", false},
		{"", true},
		{"image/svg+xml", true},
		{"application/pdf", true},
	}

	for _, tt := range tests {
		err := ValidateMimeType(tt.mimeType)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateMimeType(%q) error = %v, wantErr %v", tt.mimeType, err, tt.wantErr)
		}
		if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			t.Errorf("ValidateMimeType(%q): expected validation error, got %v", tt.mimeType, err)
		}
	}
}
