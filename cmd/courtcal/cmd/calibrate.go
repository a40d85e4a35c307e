package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/ironsheep/courtcal/internal/calibrate"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/homography"
	courtimg "github.com/ironsheep/courtcal/internal/imaging"
	"github.com/ironsheep/courtcal/internal/overlay"
)

// frameReport is the JSON shape of one calibrated frame.
type frameReport struct {
	Path       string             `json:"path"`
	OK         bool               `json:"ok"`
	Segments   int                `json:"segments"`
	Homography *homography.Result `json:"homography,omitempty"`
	Error      string             `json:"error,omitempty"`
	Overlay    string             `json:"overlay,omitempty"`
}

func newCalibrateCommand(a *app) *cobra.Command {
	var overlayDir string

	cmd := &cobra.Command{
		Use:   "calibrate <image>...",
		Short: "Fit the pixel-to-metre homography for one or more frames",
		Long: `Calibrate every frame independently and print a JSON report per frame.
Frames are processed in parallel; the report keeps the argument order.
The command fails when any frame could not be calibrated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			frames := make([]calibrate.Frame, len(args))
			for i, path := range args {
				img, err := courtimg.Open(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				frames[i] = calibrate.Frame{ID: path, Image: img, Surface: a.cfg.DefaultSurface()}
			}

			if overlayDir != "" {
				if err := os.MkdirAll(overlayDir, 0o755); err != nil {
					return fmt.Errorf("create overlay dir: %w", err)
				}
			}

			names := overlayNames(args)
			results, err := a.calibrator(nil).CalibrateFrames(ctx, frames, a.cfg.Workers)
			reports := make([]frameReport, len(results))
			failed := 0
			for i, r := range results {
				reports[i] = frameReport{Path: r.ID, OK: r.OK(), Segments: len(r.Segments), Homography: r.Homography}
				if r.Err != nil {
					reports[i].Error = r.Err.Error()
					failed++
				}
				if overlayDir != "" && r.Err == nil {
					out, werr := writeOverlay(filepath.Join(overlayDir, names[i]), frames[i], r.Segments, r.Homography)
					if werr != nil {
						return werr
					}
					reports[i].Overlay = out
				}
			}

			if werr := writeJSON(cmd.OutOrStdout(), reports); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d frames failed", failed, len(frames))
			}
			return nil
		},
	}

	cmd.Flags().Int("workers", 0, "parallel frames (0 = one per CPU)")
	cmd.Flags().StringVar(&overlayDir, "overlay-dir", "", "write a diagnostic PNG per calibrated frame into this directory")
	_ = a.v.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	return cmd
}

// overlayNames returns one overlay file name per frame path. Names are
// <base>_overlay.png; frames whose base names collide get their argument
// index as well, <base>_<index>_overlay.png.
func overlayNames(paths []string) []string {
	stem := func(p string) string {
		return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}
	seen := make(map[string]int, len(paths))
	for _, p := range paths {
		seen[stem(p)]++
	}

	names := make([]string, len(paths))
	for i, p := range paths {
		if seen[stem(p)] > 1 {
			names[i] = fmt.Sprintf("%s_%d_overlay.png", stem(p), i)
		} else {
			names[i] = stem(p) + "_overlay.png"
		}
	}
	return names
}

func writeOverlay(path string, f calibrate.Frame, segs []geometry.Segment, cal *homography.Result) (string, error) {
	opts := overlay.DefaultOptions()
	opts.Segments = segs
	opts.Calibration = cal

	img, _, err := overlay.Draw(f.Image, opts)
	if err != nil {
		return "", err
	}
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("save overlay: %w", err)
	}
	return path, nil
}
