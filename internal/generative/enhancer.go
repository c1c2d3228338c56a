package generative

import (
	"context"
	"fmt"
	"time"

	"github.com/Arifeenz/paimai-ubi/internal/logger"
	"github.com/sirupsen/logrus"
)

// FallbackFunc is called after a model fails and before the next is tried
type FallbackFunc func(failedModel, nextModel string, err error)

// Result is a generated image and the model that produced it
type Result struct {
	Image    *Image
	Model    string
	Attempts int
}

// Enhancer tries each configured model in order and returns the first
// image produced
type Enhancer struct {
	model      ImageModel
	models     []string
	onFallback FallbackFunc
}

// NewEnhancer creates an Enhancer over model. With no names, DefaultModels
// is used.
func NewEnhancer(model ImageModel, models ...string) *Enhancer {
	if len(models) == 0 {
		models = DefaultModels
	}
	return &Enhancer{
		model:  model,
		models: append([]string(nil), models...),
	}
}

// OnFallback registers a hook invoked on every switch to the next model
func (e *Enhancer) OnFallback(fn FallbackFunc) {
	e.onFallback = fn
}

// Models returns the configured model names in try order
func (e *Enhancer) Models() []string {
	return append([]string(nil), e.models...)
}

// Enhance runs instructions against img. Empty instructions use
// DefaultInstructions. The error of the last model is returned wrapped in
// ErrAllModelsFailed when none succeeds.
func (e *Enhancer) Enhance(ctx context.Context, img Image, instructions string) (*Result, error) {
	if len(e.models) == 0 {
		return nil, ErrNoModels
	}
	if instructions == "" {
		instructions = DefaultInstructions
	}

	var lastErr error
	for i, name := range e.models {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		start := time.Now()
		log := logger.WithFields(logrus.Fields{
			"model":     name,
			"attempt":   i + 1,
			"mime_type": img.MimeType,
			"bytes":     len(img.Data),
		})
		log.Debug("Trying image model")

		out, err := e.model.EditImage(ctx, name, instructions, img)
		if err == nil && (out == nil || len(out.Data) == 0) {
			err = ErrNoImageData
		}
		if err == nil {
			log.WithField("processing_time_ms", time.Since(start).Milliseconds()).Info("Image model succeeded")
			return &Result{Image: out, Model: name, Attempts: i + 1}, nil
		}

		lastErr = err
		log.WithError(err).Warn("Image model failed")

		if i+1 < len(e.models) && e.onFallback != nil {
			e.onFallback(name, e.models[i+1], err)
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}
