package models

// Enhancement modes
const (
	ModeFilter     = "filter"
	ModeGenerative = "generative"
)

// InlineImage carries image bytes inside a JSON body. Data is standard
// base64, optionally wrapped in a data: URL.
type InlineImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// Adjustments are optional per-parameter overrides of the selected preset
type Adjustments struct {
	Brightness *float64 `json:"brightness,omitempty" form:"brightness"`
	Contrast   *float64 `json:"contrast,omitempty" form:"contrast"`
	Saturation *float64 `json:"saturation,omitempty" form:"saturation"`
	Sharpness  *float64 `json:"sharpness,omitempty" form:"sharpness"`
}

// EnhanceRequest describes one enhancement. Exactly one of Image or
// ImageURL must be set.
type EnhanceRequest struct {
	Image        *InlineImage `json:"image,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Mode         string       `json:"mode,omitempty"`
	Preset       string       `json:"preset,omitempty"`
	Adjustments  Adjustments  `json:"adjustments"`
	OutputFormat string       `json:"output_format,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
	WithMetrics  bool         `json:"with_metrics,omitempty"`
	Store        bool         `json:"store,omitempty"`
}

// AppliedParams echoes the parameters the filter pipeline ran with
type AppliedParams struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	Sharpness  float64 `json:"sharpness"`
}

// EnhanceResponse is the result of one enhancement
type EnhanceResponse struct {
	ID                string             `json:"id"`
	Mode              string             `json:"mode"`
	Model             string             `json:"model,omitempty"`
	Image             InlineImage        `json:"image"`
	DataURL           string             `json:"data_url"`
	Width             int                `json:"width,omitempty"`
	Height            int                `json:"height,omitempty"`
	Params            *AppliedParams     `json:"params,omitempty"`
	StoredURL         string             `json:"stored_url,omitempty"`
	Metrics           *MetricsComparison `json:"metrics,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	Timestamp         string             `json:"timestamp"`
	ProcessingTimeSec float64            `json:"processing_time_sec"`
}

// BatchEnhanceRequest is a list of independent enhancements
type BatchEnhanceRequest struct {
	Items []EnhanceRequest `json:"items" binding:"required"`
}

// BatchItemResult is one entry of a batch response, in request order
type BatchItemResult struct {
	Index  int              `json:"index"`
	Result *EnhanceResponse `json:"result,omitempty"`
	Error  *ErrorResponse   `json:"error,omitempty"`
}

// BatchEnhanceResponse is the result of a batch enhancement
type BatchEnhanceResponse struct {
	Results           []BatchItemResult `json:"results"`
	Succeeded         int               `json:"succeeded"`
	Failed            int               `json:"failed"`
	ProcessingTimeSec float64           `json:"processing_time_sec"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
