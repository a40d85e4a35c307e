package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/courtcal/internal/detection"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/imaging"
)

func newLinesCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "lines <image>",
		Short: "Detect court line segments in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := imaging.Open(args[0])
			if err != nil {
				return err
			}

			surface := a.cfg.DefaultSurface()
			segs, stats := a.calibrator(nil).Extractor().ExtractWithStats(img, surface)
			if segs == nil {
				segs = []geometry.Segment{}
			}

			switch strings.ToLower(format) {
			case "json":
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"path":     args[0],
					"surface":  surface,
					"segments": segs,
					"stats":    stats,
				})
			case "text":
				writeSegments(cmd.OutOrStdout(), segs, stats)
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	return cmd
}

func writeSegments(w io.Writer, segs []geometry.Segment, stats detection.Stats) {
	fmt.Fprintf(w, "%d segments (edges %d, raw %d, roi %d, angle %d, paint %d)\n",
		len(segs), stats.EdgePixels, stats.Raw, stats.AfterROI, stats.AfterAngle, stats.AfterPaint)
	for i, s := range segs {
		orient := "V"
		if detection.IsHorizontal(s) {
			orient = "H"
		}
		fmt.Fprintf(w, "%3d %s %v -> %v  len %.1f  angle %.1f\n", i, orient, s.A, s.B, s.Length(), s.Angle())
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
