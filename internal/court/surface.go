// Package court holds the static knowledge about tennis courts that the
// detection and homography stages consume: playing surfaces, the per-surface
// detection profiles, and the ITF court model in metres.
//
// Everything here is plain data. Profiles and keypoints are returned by
// value so callers can never mutate the process-wide defaults.
package court

import (
	"fmt"
	"strings"
)

// Surface identifies a court playing surface.
type Surface string

const (
	// Hard is an acrylic hard court. It is also the fallback surface.
	Hard Surface = "HARD"
	// Grass is a natural grass court.
	Grass Surface = "GRASS"
	// Clay is a crushed-brick clay court.
	Clay Surface = "CLAY"
)

// Surfaces lists every known surface in a stable order.
func Surfaces() []Surface {
	return []Surface{Hard, Grass, Clay}
}

// ParseSurface converts a case-insensitive name into a Surface.
// Unknown names return an error; use Normalize for silent fallback.
func ParseSurface(name string) (Surface, error) {
	s := Surface(strings.ToUpper(strings.TrimSpace(name)))
	switch s {
	case Hard, Grass, Clay:
		return s, nil
	}
	return Hard, fmt.Errorf("unknown surface %q (expected one of hard, grass, clay)", name)
}

// Normalize returns the canonical surface for name, falling back to Hard.
func Normalize(name string) Surface {
	s, err := ParseSurface(name)
	if err != nil {
		return Hard
	}
	return s
}

// Known reports whether s is one of the supported surfaces.
func (s Surface) Known() bool {
	_, err := ParseSurface(string(s))
	return err == nil
}

func (s Surface) String() string {
	return string(s)
}
