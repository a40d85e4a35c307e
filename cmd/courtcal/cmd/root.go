package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ironsheep/courtcal/internal/calibrate"
	"github.com/ironsheep/courtcal/internal/config"
	"github.com/ironsheep/courtcal/internal/detection"
	"github.com/ironsheep/courtcal/internal/homography"
	"github.com/ironsheep/courtcal/internal/logging"
	"github.com/ironsheep/courtcal/internal/metrics"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
}

// NewRootCommand builds the courtcal command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), log: logging.Discard()}

	root := &cobra.Command{
		Use:   "courtcal",
		Short: "Tennis court line detection and pixel-to-metre calibration",
		Long: `courtcal finds the painted lines of a tennis court in a still frame and
fits the homography that maps image pixels to court coordinates in metres.

The origin is the near-left singles baseline corner, X runs along the
baseline and Y towards the far baseline.

Examples:
  courtcal lines frame.jpg --surface clay
  courtcal calibrate frames/*.png --workers 4 --overlay-dir out/
  courtcal project --image frame.jpg 412,633 980,640
  courtcal serve`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is courtcal.yaml in ., $XDG_CONFIG_HOME/courtcal, /etc/courtcal)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("surface", "hard", "court surface (hard, grass, clay)")

	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("surface", pf.Lookup("surface"))

	root.AddCommand(
		newServeCommand(a),
		newLinesCommand(a),
		newCalibrateCommand(a),
		newProjectCommand(a),
		newSurfacesCommand(a),
		newVersionCommand(),
	)
	return root
}

// init loads configuration and builds the logger. Logs go to stderr so
// stdout stays clean for results and the MCP protocol.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.NewLoaderWithViper(a.v).Load(a.cfgFile)
	if err != nil {
		return err
	}
	log, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	a.cfg = cfg
	a.log = log
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.WithField("file", used).Debug("configuration loaded")
	}
	return nil
}

// calibrator builds the pipeline from the loaded configuration.
func (a *app) calibrator(m *metrics.Metrics) *calibrate.Calibrator {
	extractor := detection.NewExtractor(a.cfg.Profiles,
		detection.WithLogger(a.log),
		detection.WithSeed(a.cfg.Detection.Seed),
	)
	estimator := homography.NewEstimator(
		homography.WithLogger(a.log),
		homography.WithMinQuadArea(a.cfg.Homography.MinQuadArea),
		homography.WithFitOptions(a.cfg.FitOptions()),
	)
	return calibrate.New(
		calibrate.WithLogger(a.log),
		calibrate.WithMetrics(m),
		calibrate.WithExtractor(extractor),
		calibrate.WithEstimator(estimator),
	)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip configuration loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "courtcal %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
