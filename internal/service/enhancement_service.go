package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Arifeenz/paimai-ubi/internal/analyzer"
	"github.com/Arifeenz/paimai-ubi/internal/enhancer"
	apperrors "github.com/Arifeenz/paimai-ubi/internal/errors"
	"github.com/Arifeenz/paimai-ubi/internal/generative"
	"github.com/Arifeenz/paimai-ubi/internal/logger"
	"github.com/Arifeenz/paimai-ubi/internal/observer"
	"github.com/Arifeenz/paimai-ubi/internal/repository"
	"github.com/Arifeenz/paimai-ubi/internal/storage"
	"github.com/Arifeenz/paimai-ubi/internal/strategy"
	"github.com/Arifeenz/paimai-ubi/pkg/models"
	"github.com/Arifeenz/paimai-ubi/pkg/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnhancementService defines the image enhancement use cases
type EnhancementService interface {
	// EnhanceImage runs a single enhancement request
	EnhanceImage(ctx context.Context, req models.EnhanceRequest) (*models.EnhanceResponse, error)

	// EnhanceBatch runs independent requests concurrently. Results keep
	// request order and carry per-item errors.
	EnhanceBatch(ctx context.Context, items []models.EnhanceRequest) *models.BatchEnhanceResponse

	// Modes lists the enhancement modes that can be selected
	Modes() []string
}

// Options tunes the service
type Options struct {
	EnhanceTimeout    time.Duration
	GenerativeTimeout time.Duration
	Workers           int
}

// DefaultOptions returns the service defaults
func DefaultOptions() Options {
	return Options{
		EnhanceTimeout:    20 * time.Second,
		GenerativeTimeout: 60 * time.Second,
	}
}

type enhancementService struct {
	images    repository.ImageRepository
	results   repository.ResultRepository
	selector  *strategy.Selector
	metrics   analyzer.MetricsCalculator
	quality   *validation.QualityValidator
	publisher observer.Subject
	opts      Options
}

// NewEnhancementService creates a new enhancement service. results and
// publisher may be nil.
func NewEnhancementService(
	images repository.ImageRepository,
	results repository.ResultRepository,
	selector *strategy.Selector,
	metrics analyzer.MetricsCalculator,
	publisher observer.Subject,
	opts Options,
) EnhancementService {
	defaults := DefaultOptions()
	if opts.EnhanceTimeout <= 0 {
		opts.EnhanceTimeout = defaults.EnhanceTimeout
	}
	if opts.GenerativeTimeout <= 0 {
		opts.GenerativeTimeout = defaults.GenerativeTimeout
	}

	return &enhancementService{
		images:    images,
		results:   results,
		selector:  selector,
		metrics:   metrics,
		quality:   validation.NewQualityValidator(),
		publisher: publisher,
		opts:      opts,
	}
}

func (s *enhancementService) Modes() []string {
	return s.selector.Modes()
}

// EnhanceImage resolves the source, runs the selected strategy under its
// timeout and assembles the response
func (s *enhancementService) EnhanceImage(ctx context.Context, req models.EnhanceRequest) (*models.EnhanceResponse, error) {
	start := time.Now()
	requestID := logger.RequestIDFromContext(ctx)
	source := describeSource(req)
	logger.WithRequestID(requestID).WithFields(logFields(req)).Debug("Enhancement requested")

	st, err := s.selector.Select(req.Mode)
	if err != nil {
		return nil, err
	}

	params, err := enhancer.ParamsForPreset(req.Preset)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}
	params = params.WithOverrides(enhancer.Adjustments(req.Adjustments))

	if req.OutputFormat != "" && !enhancer.CanEncode(req.OutputFormat) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported output format %q", req.OutputFormat), nil)
	}

	s.publish(ctx, observer.EnhancementEvent{
		EventType: observer.EnhancementStarted,
		RequestID: requestID,
		Source:    source,
		Strategy:  st.GetStrategyName(),
	})

	fail := func(err error) (*models.EnhanceResponse, error) {
		s.publish(ctx, observer.EnhancementEvent{
			EventType:      observer.EnhancementFailed,
			RequestID:      requestID,
			Source:         source,
			Strategy:       st.GetStrategyName(),
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	data, mimeType, err := s.resolveSource(ctx, req, requestID)
	if err != nil {
		return fail(err)
	}

	timeout := s.opts.EnhanceTimeout
	if st.GetStrategyName() == models.ModeGenerative {
		timeout = s.opts.GenerativeTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := st.Enhance(runCtx, strategy.Input{
		Data:         data,
		MimeType:     mimeType,
		Params:       params,
		OutputFormat: req.OutputFormat,
		Instructions: req.Instructions,
	})
	if err != nil {
		return fail(classifyEnhanceError(err))
	}

	resp := &models.EnhanceResponse{
		ID:    uuid.NewString(),
		Mode:  st.GetStrategyName(),
		Model: out.Model,
		Image: models.InlineImage{
			Data:     base64.StdEncoding.EncodeToString(out.Data),
			MimeType: out.MimeType,
		},
		Width:  out.Width,
		Height: out.Height,
	}
	resp.DataURL = "data:" + out.MimeType + ";base64," + resp.Image.Data
	if out.Params != nil {
		resp.Params = &models.AppliedParams{
			Brightness: out.Params.Brightness,
			Contrast:   out.Params.Contrast,
			Saturation: out.Params.Saturation,
			Sharpness:  out.Params.Sharpness,
		}
	}

	if req.WithMetrics {
		if out.Source != nil && out.Enhanced != nil && s.metrics != nil {
			before := s.metrics.CalculateMetrics(out.Source)
			after := s.metrics.CalculateMetrics(out.Enhanced)
			resp.Metrics = &models.MetricsComparison{Before: before, After: after}
			resp.Warnings = append(resp.Warnings, s.quality.ConvertIssuesToMessages(s.quality.ValidateEnhancement(before, after))...)
		} else {
			resp.Warnings = append(resp.Warnings, "metrics unavailable: enhanced image could not be decoded")
		}
	}

	if req.Store {
		url, err := s.storeResult(ctx, out)
		if err != nil {
			logger.WithRequestID(requestID).WithError(err).Warn("Failed to store enhanced image")
			resp.Warnings = append(resp.Warnings, "result was not stored: "+err.Error())
		} else {
			resp.StoredURL = url
			s.publish(ctx, observer.EnhancementEvent{
				EventType: observer.ResultStored,
				RequestID: requestID,
				Strategy:  st.GetStrategyName(),
				Success:   true,
				Metadata:  map[string]interface{}{"stored_url": url},
			})
		}
	}

	elapsed := time.Since(start)
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	resp.ProcessingTimeSec = elapsed.Seconds()

	metadata := map[string]interface{}{
		"format": out.Format,
		"width":  out.Width,
		"height": out.Height,
	}
	if out.Model != "" {
		metadata["model"] = out.Model
	}
	s.publish(ctx, observer.EnhancementEvent{
		EventType:      observer.EnhancementCompleted,
		RequestID:      requestID,
		Source:         source,
		Strategy:       st.GetStrategyName(),
		ProcessingTime: elapsed,
		Success:        true,
		Metadata:       metadata,
	})

	return resp, nil
}

// EnhanceBatch fans the items out over a worker pool
func (s *enhancementService) EnhanceBatch(ctx context.Context, items []models.EnhanceRequest) *models.BatchEnhanceResponse {
	start := time.Now()
	results := make([]models.BatchItemResult, len(items))

	pool := enhancer.NewWorkerPool(s.opts.Workers)
	pool.Start()
	defer pool.Close()

	var mu sync.Mutex
	resp := &models.BatchEnhanceResponse{}

	for i := range items {
		i := i
		pool.Submit(func() {
			result := models.BatchItemResult{Index: i}
			out, err := s.EnhanceImage(ctx, items[i])
			if err != nil {
				result.Error = &models.ErrorResponse{
					Error:   string(apperrors.GetType(err)),
					Message: err.Error(),
				}
			} else {
				result.Result = out
			}
			results[i] = result

			mu.Lock()
			if err != nil {
				resp.Failed++
			} else {
				resp.Succeeded++
			}
			mu.Unlock()
		})
	}
	pool.Wait()

	resp.Results = results
	resp.ProcessingTimeSec = time.Since(start).Seconds()
	return resp
}

// resolveSource returns the source bytes and their MIME type
func (s *enhancementService) resolveSource(ctx context.Context, req models.EnhanceRequest, requestID string) ([]byte, string, error) {
	hasInline := req.Image != nil && req.Image.Data != ""
	switch {
	case hasInline && req.ImageURL != "":
		return nil, "", apperrors.NewValidationError("provide either image or image_url, not both", nil)
	case hasInline:
		return decodeInline(req.Image)
	case req.ImageURL == "":
		return nil, "", apperrors.NewValidationError("image or image_url is required", nil)
	}

	if s.images == nil {
		return nil, "", apperrors.NewValidationError("image references are not supported", nil)
	}
	if err := s.images.ValidateImageURL(req.ImageURL); err != nil {
		return nil, "", apperrors.NewValidationError("invalid image URL", err)
	}

	fetchStart := time.Now()
	raw, err := s.images.FetchImage(ctx, req.ImageURL)
	if err != nil {
		s.publish(ctx, observer.EnhancementEvent{
			EventType:      observer.ImageFetchFailed,
			RequestID:      requestID,
			Source:         req.ImageURL,
			ProcessingTime: time.Since(fetchStart),
			ErrorMessage:   err.Error(),
		})
		return nil, "", classifyFetchError(err)
	}
	s.publish(ctx, observer.EnhancementEvent{
		EventType:      observer.ImageFetched,
		RequestID:      requestID,
		Source:         req.ImageURL,
		ProcessingTime: time.Since(fetchStart),
		Success:        true,
		Metadata: map[string]interface{}{
			"content_type": raw.ContentType,
			"bytes":        len(raw.Data),
		},
	})

	mimeType := validation.NormalizeMimeType(raw.ContentType)
	if err := validation.ValidateMimeType(mimeType); err != nil {
		return nil, "", err
	}
	return raw.Data, mimeType, nil
}

// decodeInline decodes base64 image data, accepting an optional data: URL
// prefix that also supplies the MIME type
func decodeInline(img *models.InlineImage) ([]byte, string, error) {
	payload := strings.TrimSpace(img.Data)
	mimeType := img.MimeType

	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", apperrors.NewValidationError("image data URL must be base64 encoded", nil)
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Tolerate unpadded input
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
			return nil, "", apperrors.NewValidationError("image data is not valid base64", err)
		}
	}
	if len(data) == 0 {
		return nil, "", apperrors.NewValidationError("image data is empty", nil)
	}

	if mimeType == "" {
		if _, format, err := enhancer.Inspect(data); err == nil {
			mimeType = enhancer.MimeTypeForFormat(format)
		}
	}
	mimeType = validation.NormalizeMimeType(mimeType)
	if err := validation.ValidateMimeType(mimeType); err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

func (s *enhancementService) storeResult(ctx context.Context, out *strategy.Output) (string, error) {
	if s.results == nil {
		return "", repository.ErrRepositoryUnavailable
	}
	return s.results.SaveResult(ctx, out.Data, out.Format, out.MimeType)
}

func (s *enhancementService) publish(ctx context.Context, event observer.EnhancementEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.NotifyObservers(ctx, event)
}

// classifyEnhanceError maps strategy failures onto application errors
func classifyEnhanceError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("enhancement timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("enhancement canceled", err)
	case errors.Is(err, enhancer.ErrDecode):
		return apperrors.NewDecodeError("could not decode source image", err)
	case errors.Is(err, enhancer.ErrEncode):
		return apperrors.NewEncodeError("could not encode enhanced image", err)
	case errors.Is(err, generative.ErrAllModelsFailed), errors.Is(err, generative.ErrNoImageData):
		return apperrors.NewUpstreamError("generative enhancement failed", err)
	case errors.Is(err, generative.ErrNoModels):
		return apperrors.NewInternalError("no image models configured", err)
	default:
		return apperrors.NewProcessingError("enhancement failed", err)
	}
}

// classifyFetchError maps source fetch failures onto application errors
func classifyFetchError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidImageURL), errors.Is(err, repository.ErrUnsupportedScheme):
		return apperrors.NewValidationError("invalid image URL", err)
	case errors.Is(err, storage.ErrTooLarge):
		return apperrors.NewValidationError("image is too large", err)
	case errors.Is(err, os.ErrNotExist):
		return apperrors.NewNotFoundError("image not found", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timed out", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

func describeSource(req models.EnhanceRequest) string {
	if req.ImageURL != "" {
		return req.ImageURL
	}
	return "inline"
}

func logFields(req models.EnhanceRequest) logrus.Fields {
	return logrus.Fields{
		"source": describeSource(req),
		"mode":   req.Mode,
		"preset": req.Preset,
	}
}
