package enhancer

import (
	"fmt"
	"image"
)

// ImageEnhancer defines the image enhancement boundary: bytes in, bytes out
type ImageEnhancer interface {
	// Enhance applies params to a decoded image
	Enhance(img image.Image, params Params) *image.NRGBA

	// EnhanceBytes decodes data, enhances it and encodes the result in
	// outputFormat, or in the input's format family when outputFormat is empty
	EnhanceBytes(data []byte, params Params, outputFormat string) (*Result, error)
}

// Result holds both sides of an enhancement so callers can inspect them
type Result struct {
	SourceFormat string
	Source       image.Image
	Enhanced     *image.NRGBA
	Output       *Encoded
}

type coreEnhancer struct{}

// NewImageEnhancer creates the pixel-pipeline enhancer
func NewImageEnhancer() ImageEnhancer {
	return &coreEnhancer{}
}

func (e *coreEnhancer) Enhance(img image.Image, params Params) *image.NRGBA {
	return Enhance(img, params)
}

func (e *coreEnhancer) EnhanceBytes(data []byte, params Params, outputFormat string) (*Result, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}

	// Reject the target before spending time on pixels
	target := ResolveOutputFormat(format, outputFormat)
	if !CanEncode(target) {
		return nil, fmt.Errorf("%w: unsupported output format %q", ErrEncode, target)
	}

	enhanced := Enhance(img, params)
	out, err := Encode(enhanced, target)
	if err != nil {
		return nil, err
	}

	return &Result{
		SourceFormat: format,
		Source:       img,
		Enhanced:     enhanced,
		Output:       out,
	}, nil
}
