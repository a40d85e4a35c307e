package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/courtcal/internal/calibrate"
	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/detection"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/homography"
	"github.com/ironsheep/courtcal/internal/imaging"
	"github.com/ironsheep/courtcal/internal/overlay"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "court_calibrate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.WithField("tool", params.Name).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "court_load_image":
		return s.handleLoadImage(args)
	case "court_surfaces":
		return s.handleSurfaces()
	case "court_edge_map":
		return s.handleEdgeMap(args)
	case "court_extract_lines":
		return s.handleExtractLines(args)
	case "court_calibrate":
		return s.handleCalibrate(args)
	case "court_project_points":
		return s.handleProjectPoints(args)
	case "court_measure_distance":
		return s.handleMeasureDistance(args)
	case "court_overlay":
		return s.handleOverlay(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// surfaceOf resolves an optional surface argument.
func (s *Server) surfaceOf(name string) (court.Surface, error) {
	if name == "" {
		return s.surface, nil
	}
	return court.ParseSurface(name)
}

// === Image handlers ===

type frameArgs struct {
	Path    string `json:"path"`
	Surface string `json:"surface,omitempty"`
}

func (s *Server) handleLoadImage(args json.RawMessage) (interface{}, error) {
	var a frameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.Describe(s.cache, a.Path)
}

type surfaceInfo struct {
	Surface court.Surface `json:"surface"`
	Profile court.Profile `json:"profile"`
	Default bool          `json:"default,omitempty"`
}

func (s *Server) handleSurfaces() (interface{}, error) {
	var out []surfaceInfo
	for _, surface := range court.Surfaces() {
		out = append(out, surfaceInfo{
			Surface: surface,
			Profile: s.calibrator.Extractor().Profile(surface),
			Default: surface == s.surface,
		})
	}
	return map[string]interface{}{
		"surfaces":  out,
		"keypoints": court.Keypoints(),
	}, nil
}

type edgeMapArgs struct {
	frameArgs
	Low  float64 `json:"low,omitempty"`
	High float64 `json:"high,omitempty"`
}

func (s *Server) handleEdgeMap(args json.RawMessage) (interface{}, error) {
	var a edgeMapArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	surface, err := s.surfaceOf(a.Surface)
	if err != nil {
		return nil, err
	}
	p := s.calibrator.Extractor().Profile(surface)
	if a.Low == 0 {
		a.Low = p.CannyLow
	}
	if a.High == 0 {
		a.High = p.CannyHigh
	}
	if a.Low > a.High {
		return nil, fmt.Errorf("low threshold %.1f exceeds high threshold %.1f", a.Low, a.High)
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(img, a.Low, a.High)
}

// === Court handlers ===

type linesResult struct {
	Surface  court.Surface      `json:"surface"`
	Count    int                `json:"count"`
	Segments []geometry.Segment `json:"segments"`
	Stats    detection.Stats    `json:"stats"`
}

func (s *Server) handleExtractLines(args json.RawMessage) (interface{}, error) {
	var a frameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	surface, err := s.surfaceOf(a.Surface)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	segs, stats := s.calibrator.Extractor().ExtractWithStats(img, surface)
	if segs == nil {
		segs = []geometry.Segment{}
	}
	return linesResult{Surface: surface, Count: len(segs), Segments: segs, Stats: stats}, nil
}

// calibrationResult reports a failed estimate as data so clients can see
// the diagnostics.
type calibrationResult struct {
	OK         bool                      `json:"ok"`
	Surface    court.Surface             `json:"surface"`
	Segments   []geometry.Segment        `json:"segments"`
	Stats      detection.Stats           `json:"stats"`
	Homography *homography.Result        `json:"homography,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Failure    *homography.EstimateError `json:"failure,omitempty"`
}

func (s *Server) calibrate(a frameArgs) (calibrate.Result, error) {
	surface, err := s.surfaceOf(a.Surface)
	if err != nil {
		return calibrate.Result{}, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return calibrate.Result{}, err
	}
	return s.calibrator.Calibrate(img, surface), nil
}

func (s *Server) handleCalibrate(args json.RawMessage) (interface{}, error) {
	var a frameArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	res, err := s.calibrate(a)
	if err != nil {
		return nil, err
	}

	out := calibrationResult{
		OK:         res.OK(),
		Surface:    res.Surface,
		Segments:   res.Segments,
		Stats:      res.Stats,
		Homography: res.Homography,
	}
	if out.Segments == nil {
		out.Segments = []geometry.Segment{}
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
		var ee *homography.EstimateError
		if errors.As(res.Err, &ee) {
			out.Failure = ee
		}
	}
	return out, nil
}

// matrixArgs selects a homography: an explicit row-major matrix, or a frame
// to calibrate.
type matrixArgs struct {
	frameArgs
	Matrix *homography.Matrix `json:"matrix,omitempty"`
}

func (s *Server) matrixFor(a matrixArgs) (homography.Matrix, error) {
	if a.Matrix != nil {
		return *a.Matrix, nil
	}
	if a.Path == "" {
		return homography.Matrix{}, errors.New("either matrix or path is required")
	}
	res, err := s.calibrate(a.frameArgs)
	if err != nil {
		return homography.Matrix{}, err
	}
	if res.Err != nil {
		return homography.Matrix{}, res.Err
	}
	return res.Homography.Matrix, nil
}

type projectPointsArgs struct {
	matrixArgs
	Points []geometry.Point `json:"points"`
}

type projectedPoint struct {
	Pixel geometry.Point  `json:"pixel"`
	World *geometry.Point `json:"world,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (s *Server) handleProjectPoints(args json.RawMessage) (interface{}, error) {
	var a projectPointsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Points) == 0 {
		return nil, errors.New("at least one point is required")
	}
	m, err := s.matrixFor(a.matrixArgs)
	if err != nil {
		return nil, err
	}

	out := make([]projectedPoint, len(a.Points))
	for i, p := range a.Points {
		out[i].Pixel = p
		w, err := homography.ProjectPixelToWorld(m, p)
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		out[i].World = &w
	}
	return map[string]interface{}{
		"matrix": m,
		"points": out,
	}, nil
}

type measureDistanceArgs struct {
	matrixArgs
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (s *Server) handleMeasureDistance(args json.RawMessage) (interface{}, error) {
	var a measureDistanceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	m, err := s.matrixFor(a.matrixArgs)
	if err != nil {
		return nil, err
	}

	from, to := geometry.Pt(a.X1, a.Y1), geometry.Pt(a.X2, a.Y2)
	meters, err := homography.MeasureWorldDistance(m, from, to)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"from":          from,
		"to":            to,
		"pixels":        from.Distance(to),
		"meters":        meters,
		"matrix_source": matrixSource(a.matrixArgs),
	}, nil
}

func matrixSource(a matrixArgs) string {
	if a.Matrix != nil {
		return "explicit"
	}
	return "calibrated"
}

type overlayArgs struct {
	frameArgs
	ShowSegments *bool  `json:"show_segments,omitempty"`
	Color        string `json:"color,omitempty"`
	Thickness    int    `json:"thickness,omitempty"`
	Labels       *bool  `json:"labels,omitempty"`
}

func (s *Server) handleOverlay(args json.RawMessage) (interface{}, error) {
	var a overlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	res, err := s.calibrate(a.frameArgs)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	opts := overlay.DefaultOptions()
	if a.ShowSegments == nil || *a.ShowSegments {
		opts.Segments = res.Segments
	}
	if a.Color != "" {
		opts.SegmentColor = a.Color
	}
	if a.Thickness > 0 {
		opts.Thickness = a.Thickness
	}
	if a.Labels != nil {
		opts.Labels = *a.Labels
	}
	opts.Calibration = res.Homography

	out, err := overlay.Render(img, opts)
	if err != nil {
		return nil, err
	}

	status := "calibrated"
	if res.Err != nil {
		status = res.Err.Error()
	}
	return map[string]interface{}{
		"overlay": out,
		"status":  status,
	}, nil
}
