package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Arifeenz/paimai-ubi/internal/config"
	apperrors "github.com/Arifeenz/paimai-ubi/internal/errors"
	"github.com/Arifeenz/paimai-ubi/internal/logger"
	"github.com/Arifeenz/paimai-ubi/internal/observer"
	"github.com/Arifeenz/paimai-ubi/internal/service"
	"github.com/Arifeenz/paimai-ubi/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// MetricsProvider exposes collected enhancement metrics
type MetricsProvider interface {
	GetMetrics() observer.MetricsSnapshot
}

type handler struct {
	svc     service.EnhancementService
	metrics MetricsProvider
	cfg     *config.Config
}

func NewHandler(svc service.EnhancementService, metrics MetricsProvider, cfg *config.Config) http.Handler {
	r := gin.New()
	h := &handler{svc: svc, metrics: metrics, cfg: cfg}

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", h.getMetrics)

	enhance := r.Group("/enhance")
	enhance.POST("", h.enhanceImage(""))
	enhance.POST("/ai", h.enhanceImage(models.ModeGenerative))
	enhance.POST("/upload", h.enhanceUpload)
	enhance.POST("/batch", h.enhanceBatch)

	return r
}

// enhanceImage handles JSON requests. A non-empty mode overrides the body.
func (h *handler) enhanceImage(mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.EnhanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		if mode != "" {
			req.Mode = mode
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
		defer cancel()

		resp, err := h.svc.EnhanceImage(ctx, req)
		if err != nil {
			respondError(c, err)
			return
		}

		logger.WithRequestID(requestIDFrom(c)).WithFields(logrus.Fields{
			"mode":               resp.Mode,
			"model":              resp.Model,
			"width":              resp.Width,
			"height":             resp.Height,
			"processing_time_ms": int64(resp.ProcessingTimeSec * 1000),
		}).Info("Image enhancement completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

// enhanceUpload handles multipart uploads. With ?raw=true the enhanced
// image bytes are returned instead of JSON.
func (h *handler) enhanceUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if !errors.As(err, &maxBytesErr) {
			err = apperrors.NewValidationError("multipart field \"image\" is required", err)
		}
		respondError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, bindError(err))
		return
	}
	if len(data) == 0 {
		respondError(c, apperrors.NewValidationError("uploaded image is empty", nil))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	req := models.EnhanceRequest{
		Image: &models.InlineImage{
			Data:     base64.StdEncoding.EncodeToString(data),
			MimeType: mimeType,
		},
		Mode:         c.PostForm("mode"),
		Preset:       c.PostForm("preset"),
		OutputFormat: c.PostForm("output_format"),
		Instructions: c.PostForm("instructions"),
		WithMetrics:  formBool(c, "with_metrics"),
		Store:        formBool(c, "store"),
	}
	if err := c.ShouldBind(&req.Adjustments); err != nil {
		respondError(c, apperrors.NewValidationError("invalid adjustments", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	resp, err := h.svc.EnhanceImage(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}

	if raw, _ := strconv.ParseBool(c.Query("raw")); raw {
		out, err := base64.StdEncoding.DecodeString(resp.Image.Data)
		if err != nil {
			respondError(c, apperrors.NewInternalError("failed to decode enhanced image", err))
			return
		}
		c.Header("X-Enhancement-ID", resp.ID)
		c.Data(http.StatusOK, resp.Image.MimeType, out)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) enhanceBatch(c *gin.Context) {
	var req models.BatchEnhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if len(req.Items) == 0 {
		respondError(c, apperrors.NewValidationError("batch must contain at least one item", nil))
		return
	}
	if len(req.Items) > h.cfg.MaxBatchSize {
		respondError(c, apperrors.NewValidationError(
			fmt.Sprintf("batch has %d items; the limit is %d", len(req.Items), h.cfg.MaxBatchSize), nil))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	resp := h.svc.EnhanceBatch(ctx, req.Items)

	logger.WithRequestID(requestIDFrom(c)).WithFields(logrus.Fields{
		"items":     len(req.Items),
		"succeeded": resp.Succeeded,
		"failed":    resp.Failed,
	}).Info("Batch enhancement completed")

	c.JSON(http.StatusOK, resp)
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": Version,
		"modes":   h.svc.Modes(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) getMetrics(c *gin.Context) {
	if h.metrics == nil {
		respondError(c, apperrors.NewNotFoundError("metrics are not enabled", nil))
		return
	}
	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

// Middleware and helper functions

// requestID propagates or assigns a request ID and stores it in the
// request context for downstream logging
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := logger.WithRequestID(requestIDFrom(c)).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		})
		log.Debug("Processing request")

		c.Next()

		log.WithFields(logrus.Fields{
			"status":             c.Writer.Status(),
			"processing_time_ms": time.Since(start).Milliseconds(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// bindError classifies a request decoding failure
func bindError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return apperrors.NewValidationError("invalid request format", err)
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)

	// Log the error with context
	entry := logger.WithRequestID(requestIDFrom(c)).WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"error_type":  apperrors.GetType(err),
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
	})
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString("request_id")
}

func formBool(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.PostForm(key))
	return v
}
