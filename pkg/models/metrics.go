package models

// ImageMetrics summarizes the tonal and color state of an image.
// Luminance and saturation are HSV averages in [0,1]; Brightness is the
// mean gray level in [0,255].
type ImageMetrics struct {
	LaplacianVar   float64    `json:"laplacian_variance"`
	AvgLuminance   float64    `json:"average_luminance"`
	AvgSaturation  float64    `json:"average_saturation"`
	ChannelBalance [3]float64 `json:"channel_balance"`
	Resolution     string     `json:"resolution,omitempty"`
	Brightness     float64    `json:"brightness"`
	ClippedRatio   float64    `json:"clipped_ratio"`
}

// MetricsComparison pairs the metrics of a source image and its enhanced output
type MetricsComparison struct {
	Before ImageMetrics `json:"before"`
	After  ImageMetrics `json:"after"`
}

// ImageMetadata contains metadata about an image
type ImageMetadata struct {
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
}
