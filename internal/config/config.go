package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/detection"
	"github.com/ironsheep/courtcal/internal/homography"
)

// Config is the complete courtcal configuration. It is loaded from a YAML
// file, COURTCAL_* environment variables and command-line flags, in
// increasing order of precedence.
type Config struct {
	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file,omitempty" json:"log_file,omitempty"`

	// Surface used when a request does not name one.
	Surface string `mapstructure:"surface" yaml:"surface" json:"surface"`

	// Batch settings. Zero workers means one per CPU.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`

	Detection  DetectionConfig  `mapstructure:"detection" yaml:"detection" json:"detection"`
	Homography HomographyConfig `mapstructure:"homography" yaml:"homography" json:"homography"`

	// Profiles overrides the built-in per-surface detection thresholds.
	Profiles court.ProfileTable `mapstructure:"profiles" yaml:"profiles" json:"profiles"`
}

// DetectionConfig holds extractor settings that are not per surface.
type DetectionConfig struct {
	Seed int64 `mapstructure:"seed" yaml:"seed" json:"seed"`
}

// HomographyConfig holds estimator settings.
type HomographyConfig struct {
	MinQuadArea      float64 `mapstructure:"min_quad_area" yaml:"min_quad_area" json:"min_quad_area"`
	RansacTolerance  float64 `mapstructure:"ransac_tolerance" yaml:"ransac_tolerance" json:"ransac_tolerance"`
	RansacIterations int     `mapstructure:"ransac_iterations" yaml:"ransac_iterations" json:"ransac_iterations"`
	RansacSeed       int64   `mapstructure:"ransac_seed" yaml:"ransac_seed" json:"ransac_seed"`
}

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	fit := homography.DefaultFitOptions()
	return Config{
		LogLevel:  "info",
		LogFormat: FormatText,
		Surface:   string(court.Hard),
		Detection: DetectionConfig{Seed: detection.DefaultSeed},
		Homography: HomographyConfig{
			MinQuadArea:      homography.DefaultMinQuadArea,
			RansacTolerance:  fit.Tolerance,
			RansacIterations: fit.Iterations,
			RansacSeed:       fit.Seed,
		},
		Profiles: court.DefaultProfiles(),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log_format: unknown format %q", c.LogFormat))
	}
	if _, err := court.ParseSurface(c.Surface); err != nil {
		errs = append(errs, fmt.Errorf("surface: %w", err))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers: must not be negative, got %d", c.Workers))
	}

	h := c.Homography
	if h.MinQuadArea <= 0 {
		errs = append(errs, fmt.Errorf("homography.min_quad_area: must be positive, got %g", h.MinQuadArea))
	}
	if h.RansacTolerance <= 0 {
		errs = append(errs, fmt.Errorf("homography.ransac_tolerance: must be positive, got %g", h.RansacTolerance))
	}
	if h.RansacIterations <= 0 {
		errs = append(errs, fmt.Errorf("homography.ransac_iterations: must be positive, got %d", h.RansacIterations))
	}

	if err := c.Profiles.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("profiles: %w", err))
	}
	return errors.Join(errs...)
}

// DefaultSurface returns the configured fallback surface.
func (c *Config) DefaultSurface() court.Surface {
	return court.Normalize(c.Surface)
}

// FitOptions returns the RANSAC parameters for the estimator.
func (c *Config) FitOptions() homography.FitOptions {
	return homography.FitOptions{
		Tolerance:  c.Homography.RansacTolerance,
		Iterations: c.Homography.RansacIterations,
		Seed:       c.Homography.RansacSeed,
	}
}

// WriteYAML encodes v with two-space indentation.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
