package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Arifeenz/paimai-ubi/internal/analyzer"
	"github.com/Arifeenz/paimai-ubi/internal/enhancer"
	apperrors "github.com/Arifeenz/paimai-ubi/internal/errors"
	"github.com/Arifeenz/paimai-ubi/internal/generative"
	"github.com/Arifeenz/paimai-ubi/internal/observer"
	"github.com/Arifeenz/paimai-ubi/internal/repository"
	"github.com/Arifeenz/paimai-ubi/internal/storage"
	"github.com/Arifeenz/paimai-ubi/internal/strategy"
	"github.com/Arifeenz/paimai-ubi/pkg/models"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 20), uint8(y * 20), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

type fakeImageRepo struct {
	raw *storage.RawImage
	err error
}

func (r *fakeImageRepo) FetchImage(ctx context.Context, ref string) (*storage.RawImage, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.raw, nil
}

func (r *fakeImageRepo) ValidateImageURL(ref string) error {
	if !strings.HasPrefix(ref, "https://") {
		return repository.ErrInvalidImageURL
	}
	return nil
}

func (r *fakeImageRepo) GetImageMetadata(ctx context.Context, ref string) (*models.ImageMetadata, error) {
	return nil, errors.New("not implemented")
}

type fakeResultRepo struct {
	saved []string
	err   error
}

func (r *fakeResultRepo) SaveResult(ctx context.Context, data []byte, format, mimeType string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	name := fmt.Sprintf("https://blob.example/enhanced/%d.%s", len(r.saved), format)
	r.saved = append(r.saved, name)
	return name, nil
}

type stubStrategy struct {
	name  string
	out   *strategy.Output
	err   error
	delay time.Duration
}

func (s *stubStrategy) Enhance(ctx context.Context, in strategy.Input) (*strategy.Output, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.out, s.err
}

func (s *stubStrategy) GetStrategyName() string { return s.name }

type testEnv struct {
	svc       EnhancementService
	repo      *fakeImageRepo
	results   *fakeResultRepo
	publisher *observer.EventPublisher
	metrics   *observer.MetricsObserver
}

func newTestEnv(t *testing.T, generativeStrategy strategy.EnhancementStrategy, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      &fakeImageRepo{},
		results:   &fakeResultRepo{},
		publisher: observer.NewEventPublisher(),
		metrics:   observer.NewMetricsObserver(),
	}
	env.publisher.Subscribe(env.metrics)

	selector := strategy.NewSelector(strategy.NewFilterStrategy(enhancer.NewImageEnhancer()), generativeStrategy)
	env.svc = NewEnhancementService(env.repo, env.results, selector, analyzer.NewMetricsCalculator(), env.publisher, opts)
	return env
}

func inline(data []byte, mimeType string) *models.InlineImage {
	return &models.InlineImage{Data: base64.StdEncoding.EncodeToString(data), MimeType: mimeType}
}

func float(v float64) *float64 { return &v }

func TestEnhanceImage_InlineFilter(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	src := testPNG(t, 6, 4)

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image:  inline(src, "image/png"),
		Preset: enhancer.PresetNone,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.ID == "" || resp.Timestamp == "" {
		t.Errorf("expected ID and timestamp, got %+v", resp)
	}
	if resp.Mode != models.ModeFilter {
		t.Errorf("mode: got %q", resp.Mode)
	}
	if resp.Width != 6 || resp.Height != 4 {
		t.Errorf("dimensions: got %dx%d", resp.Width, resp.Height)
	}
	if resp.Image.MimeType != "image/png" || !strings.HasPrefix(resp.DataURL, "data:image/png;base64,") {
		t.Errorf("unexpected output type %q / %.30s", resp.Image.MimeType, resp.DataURL)
	}
	if resp.Params == nil || resp.Params.Contrast != 0 || resp.Params.Brightness != 1 {
		t.Errorf("expected neutral params echoed, got %+v", resp.Params)
	}

	// Neutral params leave the pixels untouched
	out, err := base64.StdEncoding.DecodeString(resp.Image.Data)
	if err != nil {
		t.Fatalf("output is not base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	original, _ := png.Decode(bytes.NewReader(src))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			if color.NRGBAModel.Convert(decoded.At(x, y)) != color.NRGBAModel.Convert(original.At(x, y)) {
				t.Fatalf("pixel (%d,%d) changed", x, y)
			}
		}
	}

	env.publisher.Wait()
	snap := env.metrics.GetMetrics()
	if snap.TotalEnhancements != 1 || snap.SuccessfulEnhancements != 1 || snap.ByStrategy[models.ModeFilter] != 1 {
		t.Errorf("unexpected metrics %+v", snap)
	}
}

func TestEnhanceImage_DataURLInline(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 3, 3))

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image:        &models.InlineImage{Data: dataURL},
		OutputFormat: "jpg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Image.MimeType != "image/jpeg" {
		t.Errorf("expected jpeg output, got %q", resp.Image.MimeType)
	}
}

func TestEnhanceImage_Overrides(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image:       inline(testPNG(t, 2, 2), ""),
		Preset:      enhancer.PresetAuto,
		Adjustments: models.Adjustments{Brightness: float(2), Sharpness: float(1)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := models.AppliedParams{Brightness: 2, Contrast: 1.1, Saturation: 1.2, Sharpness: 1}
	if resp.Params == nil || *resp.Params != want {
		t.Errorf("got %+v, want %+v", resp.Params, want)
	}
}

func TestEnhanceImage_ValidationErrors(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	png := testPNG(t, 2, 2)

	tests := []struct {
		name string
		req  models.EnhanceRequest
	}{
		{"no source", models.EnhanceRequest{}},
		{"both sources", models.EnhanceRequest{Image: inline(png, "image/png"), ImageURL: "https://example.com/a.png"}},
		{"bad base64", models.EnhanceRequest{Image: &models.InlineImage{Data: "!!!not base64!!!", MimeType: "image/png"}}},
		{"unsupported mime", models.EnhanceRequest{Image: inline(png, "image/tiff")}},
		{"non-base64 data URL", models.EnhanceRequest{Image: &models.InlineImage{Data: "data:image/png,abc"}}},
		{"unknown preset", models.EnhanceRequest{Image: inline(png, "image/png"), Preset: "vivid"}},
		{"unknown mode", models.EnhanceRequest{Image: inline(png, "image/png"), Mode: "magic"}},
		{"generative not configured", models.EnhanceRequest{Image: inline(png, "image/png"), Mode: models.ModeGenerative}},
		{"unsupported output format", models.EnhanceRequest{Image: inline(png, "image/png"), OutputFormat: "webp"}},
		{"invalid url", models.EnhanceRequest{ImageURL: "ftp://example.com/a.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.EnhanceImage(context.Background(), tt.req)
			if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if apperrors.GetStatusCode(err) != 400 {
				t.Errorf("expected status 400, got %d", apperrors.GetStatusCode(err))
			}
		})
	}
}

func TestEnhanceImage_DecodeError(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	_, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image: inline([]byte("these bytes are not a picture"), "image/png"),
	})
	if !apperrors.IsType(err, apperrors.ErrorTypeDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !errors.Is(err, enhancer.ErrDecode) {
		t.Error("expected ErrDecode in the chain")
	}

	env.publisher.Wait()
	if env.metrics.GetMetrics().FailedEnhancements != 1 {
		t.Error("expected a failed enhancement event")
	}
}

func TestEnhanceImage_FromURL(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	env.repo.raw = &storage.RawImage{Data: testPNG(t, 5, 5), ContentType: "image/png"}

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{ImageURL: "https://example.com/a.png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Width != 5 {
		t.Errorf("width: got %d", resp.Width)
	}
}

func TestEnhanceImage_FetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected apperrors.ErrorType
	}{
		{"network", errors.New("connection refused"), apperrors.ErrorTypeNetwork},
		{"missing file", fmt.Errorf("failed to open image: %w", os.ErrNotExist), apperrors.ErrorTypeNotFound},
		{"too large", fmt.Errorf("%w (10 bytes)", storage.ErrTooLarge), apperrors.ErrorTypeValidation},
		{"deadline", fmt.Errorf("failed to fetch image: %w", context.DeadlineExceeded), apperrors.ErrorTypeTimeout},
		{"scheme", repository.ErrUnsupportedScheme, apperrors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, Options{})
			env.repo.err = tt.err

			_, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{ImageURL: "https://example.com/a.png"})
			if got := apperrors.GetType(err); got != tt.expected {
				t.Errorf("got %s, want %s (%v)", got, tt.expected, err)
			}

			env.publisher.Wait()
			if env.metrics.GetMetrics().FetchFailures != 1 {
				t.Error("expected a fetch failure event")
			}
		})
	}
}

func TestEnhanceImage_FetchedUnsupportedType(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	env.repo.raw = &storage.RawImage{Data: []byte("<html></html>"), ContentType: "text/html"}

	_, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{ImageURL: "https://example.com/page"})
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestEnhanceImage_Metrics(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image:       inline(testPNG(t, 8, 8), "image/png"),
		WithMetrics: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Metrics == nil {
		t.Fatal("expected metrics")
	}
	if resp.Metrics.After == resp.Metrics.Before {
		t.Errorf("expected the standard preset to change the metrics, both are %+v", resp.Metrics.Before)
	}
	if resp.Metrics.Before.Resolution != "8x8" {
		t.Errorf("resolution: got %q", resp.Metrics.Before.Resolution)
	}
}

func TestEnhanceImage_Store(t *testing.T) {
	env := newTestEnv(t, nil, Options{})

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image: inline(testPNG(t, 2, 2), "image/png"),
		Store: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StoredURL != "https://blob.example/enhanced/0.png" {
		t.Errorf("stored URL: got %q", resp.StoredURL)
	}

	env.publisher.Wait()
	if env.metrics.GetMetrics().StoredResults != 1 {
		t.Error("expected a stored result event")
	}
}

func TestEnhanceImage_StoreFailureIsWarning(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	env.results.err = errors.New("container missing")

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image: inline(testPNG(t, 2, 2), "image/png"),
		Store: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StoredURL != "" || len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "container missing") {
		t.Errorf("expected a storage warning, got %+v", resp.Warnings)
	}
}

func TestEnhanceImage_Generative(t *testing.T) {
	gen := &stubStrategy{
		name: models.ModeGenerative,
		out: &strategy.Output{
			Data:     []byte("opaque"),
			MimeType: "image/png",
			Format:   "png",
			Model:    "gemini-2.5-flash-image",
		},
	}
	env := newTestEnv(t, gen, Options{})

	resp, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
		Image:       inline(testPNG(t, 2, 2), "image/png"),
		Mode:        models.ModeGenerative,
		WithMetrics: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "gemini-2.5-flash-image" || resp.Params != nil {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Metrics != nil || len(resp.Warnings) != 1 {
		t.Errorf("expected a metrics warning instead of metrics, got %+v", resp.Warnings)
	}
}

func TestEnhanceImage_GenerativeErrors(t *testing.T) {
	tests := []struct {
		name     string
		strategy *stubStrategy
		opts     Options
		expected apperrors.ErrorType
	}{
		{
			name:     "all models failed",
			strategy: &stubStrategy{name: models.ModeGenerative, err: fmt.Errorf("%w: %w", generative.ErrAllModelsFailed, errors.New("quota"))},
			expected: apperrors.ErrorTypeUpstream,
		},
		{
			name:     "timeout",
			strategy: &stubStrategy{name: models.ModeGenerative, delay: time.Second},
			opts:     Options{GenerativeTimeout: 10 * time.Millisecond},
			expected: apperrors.ErrorTypeTimeout,
		},
		{
			name:     "unexpected",
			strategy: &stubStrategy{name: models.ModeGenerative, err: errors.New("boom")},
			expected: apperrors.ErrorTypeProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.strategy, tt.opts)
			_, err := env.svc.EnhanceImage(context.Background(), models.EnhanceRequest{
				Image: inline(testPNG(t, 2, 2), "image/png"),
				Mode:  models.ModeGenerative,
			})
			if got := apperrors.GetType(err); got != tt.expected {
				t.Errorf("got %s, want %s (%v)", got, tt.expected, err)
			}
		})
	}
}

func TestEnhanceBatch(t *testing.T) {
	env := newTestEnv(t, nil, Options{Workers: 2})
	png := testPNG(t, 3, 3)

	items := []models.EnhanceRequest{
		{Image: inline(png, "image/png")},
		{},
		{Image: inline(png, "image/png"), OutputFormat: "jpeg"},
		{Image: inline(png, "image/png"), Preset: enhancer.PresetNone},
	}

	resp := env.svc.EnhanceBatch(context.Background(), items)

	if len(resp.Results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(resp.Results))
	}
	if resp.Succeeded != 3 || resp.Failed != 1 {
		t.Errorf("succeeded=%d failed=%d", resp.Succeeded, resp.Failed)
	}
	for i, r := range resp.Results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
	}
	if resp.Results[1].Error == nil || resp.Results[1].Error.Error != string(apperrors.ErrorTypeValidation) {
		t.Errorf("expected validation error for item 1, got %+v", resp.Results[1].Error)
	}
	if resp.Results[2].Result == nil || resp.Results[2].Result.Image.MimeType != "image/jpeg" {
		t.Errorf("expected jpeg result for item 2, got %+v", resp.Results[2].Result)
	}
}

func TestModes(t *testing.T) {
	env := newTestEnv(t, &stubStrategy{name: models.ModeGenerative}, Options{})
	modes := env.svc.Modes()
	if len(modes) != 2 || modes[0] != models.ModeFilter || modes[1] != models.ModeGenerative {
		t.Errorf("got %v", modes)
	}
}
