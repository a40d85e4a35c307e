package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/homography"
	"github.com/ironsheep/courtcal/internal/imaging"
)

func newProjectCommand(a *app) *cobra.Command {
	var (
		imagePath string
		matrixArg string
		distance  bool
	)

	cmd := &cobra.Command{
		Use:   "project x,y [x,y...]",
		Short: "Map pixel coordinates to court metres",
		Long: `Project pixel points onto the court plane. The homography comes from
--matrix (nine comma-separated row-major values) or is fitted to --image.
With --distance and exactly two points, the distance between them is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points := make([]geometry.Point, len(args))
			for i, arg := range args {
				p, err := parsePoint(arg)
				if err != nil {
					return err
				}
				points[i] = p
			}

			m, err := a.resolveMatrix(imagePath, matrixArg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range points {
				w, err := homography.ProjectPixelToWorld(m, p)
				if err != nil {
					fmt.Fprintf(out, "%v -> %v\n", p, err)
					continue
				}
				fmt.Fprintf(out, "%v -> (%.3f, %.3f) m\n", p, w.X, w.Y)
			}

			if distance {
				if len(points) != 2 {
					return errors.New("--distance needs exactly two points")
				}
				d, err := homography.MeasureWorldDistance(m, points[0], points[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "distance %.3f m\n", d)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "calibrate this image to obtain the homography")
	cmd.Flags().StringVar(&matrixArg, "matrix", "", "explicit row-major homography h11,h12,...,h33")
	cmd.Flags().BoolVar(&distance, "distance", false, "print the world distance between two points")
	cmd.MarkFlagsMutuallyExclusive("image", "matrix")
	cmd.MarkFlagsOneRequired("image", "matrix")
	return cmd
}

func (a *app) resolveMatrix(imagePath, matrixArg string) (homography.Matrix, error) {
	if matrixArg != "" {
		return parseMatrix(matrixArg)
	}
	img, err := imaging.Open(imagePath)
	if err != nil {
		return homography.Matrix{}, err
	}
	res := a.calibrator(nil).Calibrate(img, a.cfg.DefaultSurface())
	if res.Err != nil {
		return homography.Matrix{}, res.Err
	}
	return res.Homography.Matrix, nil
}

func parsePoint(s string) (geometry.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geometry.Point{}, fmt.Errorf("point %q: want x,y", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err := errors.Join(errX, errY); err != nil {
		return geometry.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return geometry.Pt(x, y), nil
}

func parseMatrix(s string) (homography.Matrix, error) {
	var m homography.Matrix
	parts := strings.Split(s, ",")
	if len(parts) != len(m) {
		return m, fmt.Errorf("matrix: want 9 values, got %d", len(parts))
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return m, fmt.Errorf("matrix value %d: %w", i, err)
		}
		m[i] = v
	}
	return m, nil
}
