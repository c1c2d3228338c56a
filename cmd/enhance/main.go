package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Arifeenz/paimai-ubi/internal/analyzer"
	"github.com/Arifeenz/paimai-ubi/internal/config"
	"github.com/Arifeenz/paimai-ubi/internal/enhancer"
	"github.com/Arifeenz/paimai-ubi/internal/factory"
	"github.com/Arifeenz/paimai-ubi/internal/generative"
	"github.com/Arifeenz/paimai-ubi/internal/logger"
	"github.com/Arifeenz/paimai-ubi/internal/strategy"
	"github.com/Arifeenz/paimai-ubi/pkg/models"
	"github.com/Arifeenz/paimai-ubi/pkg/validation"

	"github.com/spf13/cobra"
)

type enhanceFlags struct {
	format       string
	mode         string
	instructions string
	timeout      time.Duration
	metrics      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &enhanceFlags{}
	defaults := enhancer.DefaultParams()

	cmd := &cobra.Command{
		Use:   "enhance <input> [output]",
		Short: "Enhance a photo with the brightness/contrast/saturation/sharpen pipeline",
		Long: `Enhances a local image file and writes the result next to it, or to the
given output path. Only flags set on the command line override the preset.`,
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnhance(cmd, flags, args)
		},
	}

	f := cmd.Flags()
	f.Float64("brightness", defaults.Brightness, "brightness multiplier")
	f.Float64("contrast", defaults.Contrast, "contrast amount (0 leaves contrast unchanged)")
	f.Float64("saturation", defaults.Saturation, "saturation multiplier")
	f.Float64("sharpness", defaults.Sharpness, "sharpen strength (<= 1 disables sharpening)")
	f.String("preset", enhancer.PresetStandard, "parameter preset: standard, auto or none")
	f.StringVar(&flags.format, "format", "", "output format: jpeg, png, gif, bmp or tiff (default: input format)")
	f.StringVar(&flags.mode, "mode", models.ModeFilter, "enhancement mode: filter or generative")
	f.StringVar(&flags.instructions, "instructions", "", "editing instructions for generative mode")
	f.DurationVar(&flags.timeout, "timeout", 60*time.Second, "maximum time to spend enhancing")
	f.BoolVar(&flags.metrics, "metrics", false, "print before/after image metrics")

	return cmd
}

// resolveParams applies explicitly set flags on top of the preset
func resolveParams(cmd *cobra.Command) (enhancer.Params, error) {
	f := cmd.Flags()
	preset, err := f.GetString("preset")
	if err != nil {
		return enhancer.Params{}, err
	}
	params, err := enhancer.ParamsForPreset(preset)
	if err != nil {
		return enhancer.Params{}, err
	}

	var adj enhancer.Adjustments
	for name, dst := range map[string]**float64{
		"brightness": &adj.Brightness,
		"contrast":   &adj.Contrast,
		"saturation": &adj.Saturation,
		"sharpness":  &adj.Sharpness,
	} {
		if !f.Changed(name) {
			continue
		}
		v, err := f.GetFloat64(name)
		if err != nil {
			return enhancer.Params{}, err
		}
		*dst = &v
	}
	return params.WithOverrides(adj), nil
}

func runEnhance(cmd *cobra.Command, flags *enhanceFlags, args []string) error {
	params, err := resolveParams(cmd)
	if err != nil {
		return err
	}

	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	_, inputFormat, err := enhancer.Inspect(data)
	if err != nil {
		return err
	}
	mimeType := enhancer.MimeTypeForFormat(inputFormat)
	if err := validation.ValidateMimeType(mimeType); err != nil && flags.mode == models.ModeGenerative {
		return err
	}

	st, err := buildStrategy(cmd.Context(), flags.mode)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	start := time.Now()
	out, err := st.Enhance(ctx, strategy.Input{
		Data:         data,
		MimeType:     mimeType,
		Params:       params,
		OutputFormat: flags.format,
		Instructions: flags.instructions,
	})
	if err != nil {
		return err
	}

	output := outputPath(input, out.Format, args)
	if err := os.WriteFile(output, out.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "wrote %s (%dx%d %s) in %s\n", output, out.Width, out.Height, out.Format, time.Since(start).Round(time.Millisecond))
	if out.Params != nil {
		fmt.Fprintf(w, "params: brightness=%g contrast=%g saturation=%g sharpness=%g\n",
			out.Params.Brightness, out.Params.Contrast, out.Params.Saturation, out.Params.Sharpness)
	}
	if out.Model != "" {
		fmt.Fprintf(w, "model: %s\n", out.Model)
	}

	if flags.metrics {
		if out.Source == nil || out.Enhanced == nil {
			fmt.Fprintln(w, "metrics unavailable: output could not be decoded")
			return nil
		}
		mc := analyzer.NewMetricsCalculator()
		printMetrics(w, mc.CalculateMetrics(out.Source), mc.CalculateMetrics(out.Enhanced))
	}
	return nil
}

func buildStrategy(ctx context.Context, mode string) (strategy.EnhancementStrategy, error) {
	cfg := factory.Config{}
	if mode == models.ModeGenerative {
		if err := config.LoadDotEnv(".env.local", ".env"); err != nil {
			return nil, err
		}
		cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_GEMINI_API_KEY"))
		cfg.ImageModels = generative.ParseModels(os.Getenv("GEMINI_IMAGE_MODELS"))
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("generative mode requires GOOGLE_GEMINI_API_KEY")
		}
		cfg.OnFallback = func(failedModel, nextModel string, err error) {
			logger.WithError(err).WithField("next_model", nextModel).Warnf("%s failed", failedModel)
		}
	}
	return factory.NewStrategyFactory(cfg).CreateStrategy(ctx, mode)
}

// outputPath returns the explicit output argument or <input>_enhanced.<ext>
func outputPath(input, format string, args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "_enhanced." + ext
}

func printMetrics(w io.Writer, before, after models.ImageMetrics) {
	row := func(name string, b, a float64) {
		fmt.Fprintf(w, "  %-18s %10.3f -> %10.3f\n", name, b, a)
	}
	fmt.Fprintln(w, "metrics:")
	row("brightness", before.Brightness, after.Brightness)
	row("luminance", before.AvgLuminance, after.AvgLuminance)
	row("saturation", before.AvgSaturation, after.AvgSaturation)
	row("laplacian_var", before.LaplacianVar, after.LaplacianVar)
	row("clipped_ratio", before.ClippedRatio, after.ClippedRatio)

	issues := validation.NewQualityValidator().ValidateEnhancement(before, after)
	for _, msg := range validation.NewQualityValidator().ConvertIssuesToMessages(issues) {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}
