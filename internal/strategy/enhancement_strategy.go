package strategy

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/Arifeenz/paimai-ubi/internal/enhancer"
	apperrors "github.com/Arifeenz/paimai-ubi/internal/errors"
	"github.com/Arifeenz/paimai-ubi/internal/generative"
	"github.com/Arifeenz/paimai-ubi/pkg/models"
)

// Input is the source image and settings for one enhancement
type Input struct {
	Data         []byte
	MimeType     string
	Params       enhancer.Params
	OutputFormat string
	Instructions string
}

// Output is an encoded enhanced image. Source and Enhanced hold the
// decoded pixels when the strategy has them.
type Output struct {
	Data     []byte
	MimeType string
	Format   string
	Width    int
	Height   int
	Model    string
	Params   *enhancer.Params
	Source   image.Image
	Enhanced image.Image
}

// EnhancementStrategy defines the interface for different enhancement strategies
type EnhancementStrategy interface {
	Enhance(ctx context.Context, in Input) (*Output, error)
	GetStrategyName() string
}

// FilterStrategy runs the local pixel pipeline
type FilterStrategy struct {
	enhancer enhancer.ImageEnhancer
}

// NewFilterStrategy creates a new filter strategy
func NewFilterStrategy(enh enhancer.ImageEnhancer) EnhancementStrategy {
	return &FilterStrategy{enhancer: enh}
}

// Enhance decodes, adjusts and re-encodes the image. The pixel work runs
// on its own goroutine so a context deadline is honored.
func (s *FilterStrategy) Enhance(ctx context.Context, in Input) (*Output, error) {
	type outcome struct {
		res *enhancer.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := s.enhancer.EnhanceBytes(in.Data, in.Params, in.OutputFormat)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		params := in.Params
		return &Output{
			Data:     o.res.Output.Data,
			MimeType: o.res.Output.MimeType,
			Format:   o.res.Output.Format,
			Width:    o.res.Output.Width,
			Height:   o.res.Output.Height,
			Params:   &params,
			Source:   o.res.Source,
			Enhanced: o.res.Enhanced,
		}, nil
	}
}

// GetStrategyName returns the strategy name
func (s *FilterStrategy) GetStrategyName() string {
	return models.ModeFilter
}

// GenerativeStrategy delegates to an image model with fallback
type GenerativeStrategy struct {
	enhancer *generative.Enhancer
}

// NewGenerativeStrategy creates a new generative strategy
func NewGenerativeStrategy(enh *generative.Enhancer) EnhancementStrategy {
	return &GenerativeStrategy{enhancer: enh}
}

// Enhance sends the image to the model chain. The reply is decoded when
// possible so callers can report dimensions and metrics.
func (s *GenerativeStrategy) Enhance(ctx context.Context, in Input) (*Output, error) {
	res, err := s.enhancer.Enhance(ctx, generative.Image{Data: in.Data, MimeType: in.MimeType}, in.Instructions)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Data:     res.Image.Data,
		MimeType: res.Image.MimeType,
		Format:   enhancer.FormatFromMimeType(res.Image.MimeType),
		Model:    res.Model,
	}

	if img, format, err := enhancer.Decode(res.Image.Data); err == nil {
		out.Enhanced = img
		out.Format = format
		out.Width = img.Bounds().Dx()
		out.Height = img.Bounds().Dy()
	}
	if src, _, err := enhancer.Decode(in.Data); err == nil {
		out.Source = src
	}

	return out, nil
}

// GetStrategyName returns the strategy name
func (s *GenerativeStrategy) GetStrategyName() string {
	return models.ModeGenerative
}

// Selector resolves a mode name to a registered strategy
type Selector struct {
	strategies  map[string]EnhancementStrategy
	defaultMode string
}

// NewSelector creates a selector. The first strategy is the default.
func NewSelector(strategies ...EnhancementStrategy) *Selector {
	s := &Selector{strategies: make(map[string]EnhancementStrategy)}
	for _, st := range strategies {
		if st == nil {
			continue
		}
		if s.defaultMode == "" {
			s.defaultMode = st.GetStrategyName()
		}
		s.strategies[st.GetStrategyName()] = st
	}
	return s
}

// Select returns the strategy for mode. An empty mode selects the default.
func (s *Selector) Select(mode string) (EnhancementStrategy, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = s.defaultMode
	}

	if st, ok := s.strategies[mode]; ok {
		return st, nil
	}

	if mode == models.ModeGenerative {
		return nil, apperrors.NewValidationError("generative mode is not configured; set GOOGLE_GEMINI_API_KEY", nil)
	}
	return nil, apperrors.NewValidationError(fmt.Sprintf("unknown enhancement mode %q", mode), nil)
}

// Modes lists the registered mode names
func (s *Selector) Modes() []string {
	modes := make([]string, 0, len(s.strategies))
	for name := range s.strategies {
		modes = append(modes, name)
	}
	sort.Strings(modes)
	return modes
}
