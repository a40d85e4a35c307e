// Package homography maps court pixels to world metres.
//
// Estimate takes the consolidated segments of one frame, finds the two
// dominant line directions, picks the baseline, service line and both
// sidelines by position, intersects them and fits a 3x3 projective transform
// from those four pixels to the first four court keypoints. Every failure is
// an *EstimateError naming the stage and wrapping one of the Err* sentinels.
//
// Matrix.Project applies a transform; points that land at infinity return
// ErrPointAtInfinity instead of NaN or Inf coordinates.
package homography
