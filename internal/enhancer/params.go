package enhancer

import (
	"fmt"
	"strings"
)

// Preset names accepted by ParamsForPreset
const (
	PresetStandard = "standard"
	PresetAuto     = "auto"
	PresetNone     = "none"
)

// Params holds the four multiplicative adjustments applied by Enhance.
// No range is enforced; out-of-range results are absorbed by clamping.
type Params struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	Sharpness  float64 `json:"sharpness"`
}

// Adjustments carries caller overrides. Nil fields keep the preset value.
type Adjustments struct {
	Brightness *float64 `json:"brightness,omitempty" form:"brightness"`
	Contrast   *float64 `json:"contrast,omitempty" form:"contrast"`
	Saturation *float64 `json:"saturation,omitempty" form:"saturation"`
	Sharpness  *float64 `json:"sharpness,omitempty" form:"sharpness"`
}

// DefaultParams returns the standard enhancement settings
func DefaultParams() Params {
	return Params{
		Brightness: 1.2,
		Contrast:   1.15,
		Saturation: 1.25,
		Sharpness:  1.1,
	}
}

// AutoParams returns the gentler one-click enhancement settings
func AutoParams() Params {
	return Params{
		Brightness: 1.15,
		Contrast:   1.1,
		Saturation: 1.2,
		Sharpness:  1.05,
	}
}

// NeutralParams returns settings that leave every pixel unchanged.
// Contrast is neutral at 0, not 1: ContrastFactor(0) == 1.
func NeutralParams() Params {
	return Params{
		Brightness: 1,
		Contrast:   0,
		Saturation: 1,
		Sharpness:  1,
	}
}

// ParamsForPreset resolves a preset name. An empty name is the standard preset.
func ParamsForPreset(name string) (Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetStandard:
		return DefaultParams(), nil
	case PresetAuto:
		return AutoParams(), nil
	case PresetNone:
		return NeutralParams(), nil
	default:
		return Params{}, fmt.Errorf("unknown preset: %q", name)
	}
}

// WithOverrides returns a copy of p with every non-nil adjustment applied
func (p Params) WithOverrides(adj Adjustments) Params {
	if adj.Brightness != nil {
		p.Brightness = *adj.Brightness
	}
	if adj.Contrast != nil {
		p.Contrast = *adj.Contrast
	}
	if adj.Saturation != nil {
		p.Saturation = *adj.Saturation
	}
	if adj.Sharpness != nil {
		p.Sharpness = *adj.Sharpness
	}
	return p
}

// WithSharpness returns a copy of p with the given sharpness
func (p Params) WithSharpness(sharpness float64) Params {
	p.Sharpness = sharpness
	return p
}

// SharpenEnabled reports whether the convolution pass will run
func (p Params) SharpenEnabled() bool {
	return p.Sharpness > 1.0
}
