package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the court image",
	}
}

func surfaceProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"hard", "grass", "clay"},
		"description": "Playing surface; selects the detection profile. Defaults to the server's configured surface",
	}
}

func matrixProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "number"},
		"minItems":    9,
		"maxItems":    9,
		"description": "Row-major 3x3 pixel-to-world homography. When omitted the image at path is calibrated first",
	}
}

func pointProperty(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": desc,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "court_load_image",
			Description: "Load a court image and return its dimensions, format and file size. The image is cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "court_surfaces",
			Description: "List the supported playing surfaces with their detection profiles, and the world keypoint table in metres.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "court_edge_map",
			Description: "Run Canny edge detection with a surface's thresholds and return the edge map as base64 PNG. This is what the line detector votes on.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"surface": surfaceProperty(),
					"low": map[string]interface{}{
						"type":        "number",
						"description": "Override for the low hysteresis threshold (0-255 intensity scale)",
					},
					"high": map[string]interface{}{
						"type":        "number",
						"description": "Override for the high hysteresis threshold",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "court_extract_lines",
			Description: "Detect the painted court lines in an image and return merged line segments in pixel coordinates, with per-stage counts.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"surface": surfaceProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "court_calibrate",
			Description: "Detect court lines, pick baseline, service line and sidelines, and fit the pixel-to-world homography. Failures are reported with stage diagnostics.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"surface": surfaceProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "court_project_points",
			Description: "Map pixel coordinates to court coordinates in metres (origin at the near-left singles baseline corner).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"surface": surfaceProperty(),
					"matrix":  matrixProperty(),
					"points": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x": pointProperty("Pixel X"),
								"y": pointProperty("Pixel Y"),
							},
							"required": []string{"x", "y"},
						},
						"description": "Pixel points to project",
					},
				},
				"required": []string{"points"},
			},
		},
		{
			Name:        "court_measure_distance",
			Description: "Measure the real-world distance in metres between two pixels on the court plane.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"surface": surfaceProperty(),
					"matrix":  matrixProperty(),
					"x1":      pointProperty("First point X"),
					"y1":      pointProperty("First point Y"),
					"x2":      pointProperty("Second point X"),
					"y2":      pointProperty("Second point Y"),
				},
				"required": []string{"x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "court_overlay",
			Description: "Calibrate an image and return a copy with detected segments, the four role lines, their intersections and reprojected court keypoints drawn on it, as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"surface": surfaceProperty(),
					"show_segments": map[string]interface{}{
						"type":        "boolean",
						"description": "Draw every merged segment. Default true",
						"default":     true,
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Segment colour as #RRGGBB or #RRGGBBAA. Default #FF3030",
					},
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Role line thickness in pixels. Default 3",
					},
					"labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Label role lines and intersections. Default true",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
