package generative

import (
	"context"
	"errors"
	"strings"
)

// DefaultModels are the image editing models, tried in order
var DefaultModels = []string{
	"gemini-3-pro-image-preview",
	"gemini-2.5-flash-image",
}

var (
	// ErrNoImageData indicates a model replied without an inline image
	ErrNoImageData = errors.New("no image data in response")

	// ErrAllModelsFailed indicates every configured model failed
	ErrAllModelsFailed = errors.New("all image models failed")

	// ErrNoModels indicates the enhancer was built without any model names
	ErrNoModels = errors.New("no image models configured")
)

// DefaultInstructions ask the model to improve the photo without changing
// what it shows
const DefaultInstructions = `Keep the exact same subject, composition and objects as the original image.
Do not replace items, add objects or change the background, angle or perspective.

Only improve the technical quality of this existing photo:
1. Lighting: natural brightness and contrast, balanced shadows and highlights.
2. Color: vivid and appetizing colors, corrected white balance, moderate saturation.
3. Quality: sharper details, less noise, better overall clarity.

The result should look like a professionally edited version of the same photo, suitable for social media posts.`

// Image is an encoded image and its MIME type
type Image struct {
	Data     []byte
	MimeType string
}

// ImageModel edits an image according to text instructions
type ImageModel interface {
	EditImage(ctx context.Context, model, instructions string, img Image) (*Image, error)
}

// ParseModels splits a comma-separated model list, dropping blanks.
// An empty list yields DefaultModels.
func ParseModels(list string) []string {
	var models []string
	for _, m := range strings.Split(list, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return append([]string(nil), DefaultModels...)
	}
	return models
}
