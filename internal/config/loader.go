package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ironsheep/courtcal/internal/court"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "courtcal"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "COURTCAL"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with its own viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// NewLoaderWithViper wraps an existing viper instance, typically one that
// already has command-line flags bound to it.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Viper returns the underlying viper instance.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// ConfigFileUsed returns the path of the config file read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load reads configFile, or searches the standard locations for
// courtcal.yaml when configFile is empty. A missing file in the search path
// is not an error; defaults and environment variables still apply.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	profiles, err := canonicalProfiles(cfg.Profiles)
	if err != nil {
		return nil, err
	}
	cfg.Profiles = profiles

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// canonicalProfiles maps the lower-case keys viper produces back onto
// surface names.
func canonicalProfiles(in court.ProfileTable) (court.ProfileTable, error) {
	out := make(court.ProfileTable, len(in))
	for name, p := range in {
		s, err := court.ParseSurface(string(name))
		if err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		out[s] = p
	}
	return out, nil
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "courtcal"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "courtcal"))
	}

	l.v.AddConfigPath("/etc/courtcal")
}

// setupEnvironmentVariables maps keys such as profiles.clay.canny_low to
// COURTCAL_PROFILES_CLAY_CANNY_LOW.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so partial files and environment
// overrides merge onto the built-in values.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("log_format", defaults.LogFormat)
	l.v.SetDefault("log_file", defaults.LogFile)
	l.v.SetDefault("surface", defaults.Surface)
	l.v.SetDefault("workers", defaults.Workers)

	l.v.SetDefault("detection.seed", defaults.Detection.Seed)

	l.v.SetDefault("homography.min_quad_area", defaults.Homography.MinQuadArea)
	l.v.SetDefault("homography.ransac_tolerance", defaults.Homography.RansacTolerance)
	l.v.SetDefault("homography.ransac_iterations", defaults.Homography.RansacIterations)
	l.v.SetDefault("homography.ransac_seed", defaults.Homography.RansacSeed)

	for s, p := range defaults.Profiles {
		prefix := "profiles." + strings.ToLower(string(s)) + "."
		l.v.SetDefault(prefix+"canny_low", p.CannyLow)
		l.v.SetDefault(prefix+"canny_high", p.CannyHigh)
		l.v.SetDefault(prefix+"hough_threshold", p.HoughThreshold)
		l.v.SetDefault(prefix+"min_segment_length", p.MinSegmentLength)
		l.v.SetDefault(prefix+"max_link_gap", p.MaxLinkGap)
		l.v.SetDefault(prefix+"merge_gap_tolerance", p.MergeGapTolerance)
		l.v.SetDefault(prefix+"angle_tolerance", p.AngleTolerance)
		l.v.SetDefault(prefix+"min_line_lightness", p.MinLineLightness)
		if p.ROI != nil {
			l.v.SetDefault(prefix+"roi.x_min", p.ROI.XMin)
			l.v.SetDefault(prefix+"roi.x_max", p.ROI.XMax)
			l.v.SetDefault(prefix+"roi.y_min", p.ROI.YMin)
			l.v.SetDefault(prefix+"roi.y_max", p.ROI.YMax)
		}
	}
}
