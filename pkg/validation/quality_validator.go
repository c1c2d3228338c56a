package validation

import (
	"fmt"
	"math"

	"github.com/Arifeenz/paimai-ubi/pkg/models"
)

// Issue severities
const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// QualityThresholds defines configurable thresholds for output quality checks
type QualityThresholds struct {
	// Sharpness thresholds
	MinLaplacianVariance float64
	MaxLaplacianVariance float64

	// Brightness thresholds (mean gray level, 0-255)
	MinBrightness float64
	MaxBrightness float64

	// Saturation ceiling (HSV, 0-1)
	MaxSaturation float64

	// Share of pixels with a channel at 0 or 255
	MaxClippedRatio float64

	// Channel balance threshold
	MaxChannelImbalance float64
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinLaplacianVariance: 100.0,
		MaxLaplacianVariance: 4000.0,
		MinBrightness:        40.0,
		MaxBrightness:        225.0,
		MaxSaturation:        0.85,
		MaxClippedRatio:      0.25,
		MaxChannelImbalance:  0.15,
	}
}

// QualityValidator flags enhanced output that likely went too far
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ValidateEnhancement compares output metrics against the source. Issues
// the source already had are not reported.
func (qv *QualityValidator) ValidateEnhancement(before, after models.ImageMetrics) []QualityIssue {
	var issues []QualityIssue

	// 1. Clipping
	if after.ClippedRatio >= qv.thresholds.MaxClippedRatio && after.ClippedRatio > before.ClippedRatio {
		issues = append(issues, QualityIssue{
			Type:        "clipping",
			Message:     fmt.Sprintf("%.0f%% of pixels are clipped. Lower brightness or contrast.", after.ClippedRatio*100),
			Severity:    SeverityWarning,
			ActualValue: after.ClippedRatio,
			Threshold:   qv.thresholds.MaxClippedRatio,
		})
	}

	// 2. Oversaturation
	if after.AvgSaturation >= qv.thresholds.MaxSaturation && after.AvgSaturation > before.AvgSaturation {
		issues = append(issues, QualityIssue{
			Type:        "oversaturation",
			Message:     "Colors are too strong. Lower saturation.",
			Severity:    SeverityWarning,
			ActualValue: after.AvgSaturation,
			Threshold:   qv.thresholds.MaxSaturation,
		})
	}

	// 3. Brightness
	if after.Brightness <= qv.thresholds.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_dark",
			Message:     "Image is too dark. Raise brightness.",
			Severity:    SeverityWarning,
			ActualValue: after.Brightness,
			Threshold:   qv.thresholds.MinBrightness,
		})
	} else if after.Brightness >= qv.thresholds.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_bright",
			Message:     "Image is washed out. Lower brightness.",
			Severity:    SeverityWarning,
			ActualValue: after.Brightness,
			Threshold:   qv.thresholds.MaxBrightness,
		})
	}

	// 4. Sharpness
	if after.LaplacianVar < qv.thresholds.MinLaplacianVariance {
		issues = append(issues, QualityIssue{
			Type:        "soft",
			Message:     "Image looks soft. Raise sharpness or use a steadier photo.",
			Severity:    SeverityInfo,
			ActualValue: after.LaplacianVar,
			Threshold:   qv.thresholds.MinLaplacianVariance,
		})
	} else if after.LaplacianVar >= qv.thresholds.MaxLaplacianVariance && after.LaplacianVar > 2*before.LaplacianVar {
		issues = append(issues, QualityIssue{
			Type:        "over_sharpening",
			Message:     "Sharpening amplified noise. Lower sharpness.",
			Severity:    SeverityWarning,
			ActualValue: after.LaplacianVar,
			Threshold:   qv.thresholds.MaxLaplacianVariance,
		})
	}

	// 5. Channel Balance
	if !qv.isChannelBalanced(after.ChannelBalance) && qv.isChannelBalanced(before.ChannelBalance) {
		issues = append(issues, QualityIssue{
			Type:      "channel_imbalance",
			Message:   "Colors shifted noticeably. Check the white balance.",
			Severity:  SeverityInfo,
			Threshold: qv.thresholds.MaxChannelImbalance,
		})
	}

	return issues
}

// isChannelBalanced checks if RGB channels are reasonably balanced
func (qv *QualityValidator) isChannelBalanced(channels [3]float64) bool {
	max := math.Max(channels[0], math.Max(channels[1], channels[2]))
	min := math.Min(channels[0], math.Min(channels[1], channels[2]))
	return (max - min) <= qv.thresholds.MaxChannelImbalance
}

// ConvertIssuesToMessages converts quality issues to plain messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}
