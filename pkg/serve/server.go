// Package serve runs a long-lived matcher that reads trace requests from a
// stream and answers each with a JSON line.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/frida"
	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

// Version is the server protocol version
const Version = "1.0.0"

// Server manages the streaming matcher
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
	stats   bool
}

// NewServer creates a new streaming server
func NewServer(core *scanner.Core, in io.Reader, out io.Writer) *Server {
	return &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
	}
}

// SetStats includes evaluation counters in every match response.
func (s *Server) SetStats(enabled bool) {
	s.stats = enabled
}

// Run starts the server main loop
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until the input closes or the context is cancelled
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(ctx, req) {
						return nil
					}
				default:
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(ctx, req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(ctx context.Context, req Request) bool {
	switch req.Type {
	case "match":
		s.handleMatch(ctx, req.Payload)
	case "match_file":
		s.handleMatchFile(ctx, req.Payload)
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	data, _ := json.Marshal(ReadyData{Version: Version, Probes: len(s.core.Probes())})
	s.encoder.Encode(Response{
		Success: true,
		Type:    "ready",
		Data:    data,
	})
}

func (s *Server) handleMatch(ctx context.Context, payload json.RawMessage) {
	var p MatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("match", err.Error())
		return
	}

	report, err := frida.ParseReport(strings.NewReader(p.Trace))
	if err != nil {
		s.sendError("match", err.Error())
		return
	}
	s.match(ctx, "match", frida.New(report))
}

func (s *Server) handleMatchFile(ctx context.Context, payload json.RawMessage) {
	var p MatchFilePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("match_file", err.Error())
		return
	}

	ext, err := frida.FromJSONLFile(p.Path)
	if err != nil {
		s.sendError("match_file", err.Error())
		return
	}
	s.match(ctx, "match_file", ext)
}

func (s *Server) match(ctx context.Context, reqType string, ext extractor.FeatureExtractor) {
	result, err := s.core.Scan(ctx, ext)
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	slog.Debug("request matched", "type", reqType, "hits", len(result.Hits))

	data, _ := json.Marshal(result.Summary(s.stats))
	s.encoder.Encode(Response{
		Success: true,
		Type:    reqType,
		Data:    data,
	})
}

func (s *Server) sendError(reqType, msg string) {
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
}
