// Package detection extracts the painted lines of a tennis court from a
// single frame.
//
// # Pipeline
//
// Extraction runs in fixed stages, each parameterised by the surface profile
// (see court.Profile):
//
//  1. Edges: grayscale, 5x5 Gaussian blur and Canny hysteresis (imaging.Canny)
//  2. Segments: a progressive probabilistic Hough transform with a 1 pixel by
//     1 degree accumulator, per-surface vote threshold, minimum length and
//     gap bridging for lines broken by players or worn paint
//  3. Filters: centroid region of interest, optional near-axis angle check
//     and optional paint lightness check
//  4. Merge: fragments of one painted line are clustered per orientation and
//     replaced by a single segment along their total-least-squares fit
//
// Any stage that leaves nothing returns an empty slice immediately. An empty
// result means no court is visible; it is never an error.
//
// # Coordinate System
//
// Segments use image convention with float64 pixels: origin at the top-left,
// X rightward, Y downward. Results are expressed in the source image's own
// coordinates, so a sub-image with a non-zero bounds origin yields segments
// offset by that origin.
//
// # Determinism
//
// The Hough stage visits edge points in a seeded random order. With the same
// seed, image and profile the output is identical between runs.
package detection
