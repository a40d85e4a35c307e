// Package server implements the MCP (Model Context Protocol) server for
// tennis court calibration.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs never go to stdout. Supported MCP methods are initialize,
// tools/list, tools/call and ping.
//
// # Available Tools
//
// Image:
//   - court_load_image: Load an image and get metadata
//   - court_edge_map: Canny edge map with a surface's thresholds
//
// Court:
//   - court_surfaces: Surfaces, detection profiles and world keypoints
//   - court_extract_lines: Merged court line segments
//   - court_calibrate: Role lines, intersections and homography
//   - court_project_points: Pixels to court metres
//   - court_measure_distance: Metres between two pixels
//   - court_overlay: Diagnostic drawing of a calibration
//
// The projection tools accept an explicit matrix or calibrate the image at
// path on demand.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A calibration that fails inside the estimator is not a tool error:
// court_calibrate returns ok=false with the failing stage and counts.
//
// # Usage
//
//	srv := server.New(server.WithLogger(log))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
