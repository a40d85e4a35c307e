package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/courtcal/internal/calibrate"
	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/imaging"
)

// Server handles MCP protocol communication
type Server struct {
	cache      *imaging.FrameCache
	calibrator *calibrate.Calibrator
	surface    court.Surface
	version    string
	log        logrus.FieldLogger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes used by the server.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Stdout carries the protocol, so the logger
// must write elsewhere.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCalibrator sets the calibrator used by the court tools.
func WithCalibrator(c *calibrate.Calibrator) Option {
	return func(s *Server) {
		if c != nil {
			s.calibrator = c
		}
	}
}

// WithDefaultSurface sets the surface used when a call omits one.
func WithDefaultSurface(surface court.Surface) Option {
	return func(s *Server) {
		s.surface = court.Normalize(string(surface))
	}
}

// WithVersion sets the version reported during initialize.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// New creates a new MCP server instance
func New(opts ...Option) *Server {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	s := &Server{
		cache:   imaging.NewFrameCache(0),
		surface: court.Hard,
		version: "dev",
		log:     silent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.calibrator == nil {
		s.calibrator = calibrate.New(calibrate.WithLogger(s.log))
	}
	return s
}

// Run serves requests from stdin until EOF or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from in and writes responses to
// out. Malformed lines are logged and skipped. It returns nil at EOF and
// ctx.Err() once ctx is cancelled, even while in has nothing to read; in
// that case the goroutine blocked on in is left to finish with the process.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go s.readLines(ctx, in, lines, scanErr)

	encoder := json.NewEncoder(out)
	s.log.WithField("version", s.version).Info("mcp server started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if err := ctx.Err(); err != nil {
				return err
			}
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}
			s.serveLine(line, encoder)
		}
	}
}

// readLines feeds non-empty lines of in to lines, then reports the scanner
// error (nil at EOF) on errc and closes lines. It stops early, without
// reporting, when ctx is cancelled.
func (s *Server) readLines(ctx context.Context, in io.Reader, lines chan<- []byte, errc chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
	errc <- scanner.Err()
}

func (s *Server) serveLine(line []byte, encoder *json.Encoder) {
	var req MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.WithError(err).Warn("failed to parse request")
		return
	}

	resp := s.handleRequest(&req)
	if resp == nil {
		return
	}
	if err := encoder.Encode(resp); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.WithField("method", req.Method).Debug("request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "courtcal",
				"version": s.version,
			},
		},
	}
}
