package analyzer

import (
	"image"

	"github.com/Arifeenz/paimai-ubi/pkg/models"
)

// MetricsCalculator handles image metrics computation
type MetricsCalculator interface {
	// CalculateMetrics computes the tonal, color and sharpness summary of img
	CalculateMetrics(img image.Image) models.ImageMetrics
}
