// Package imaging loads camera frames and computes the edge maps the line
// detector votes on.
//
// Pixel coordinates follow image.Image: (0,0) is the top-left of the
// rectangle, X grows rightward and Y downward. Frames with a non-zero
// Bounds().Min are supported; EdgeMap indices are relative to that origin.
//
// FrameCache is safe for concurrent use. Canny and the other helpers keep no
// state and may run concurrently on different images.
package imaging
