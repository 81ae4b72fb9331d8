package serve

import (
	"encoding/json"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // "match" | "match_file" | "close"
	Payload json.RawMessage `json:"payload"`
}

// MatchPayload is the payload for "match" requests: a whole JSONL trace.
type MatchPayload struct {
	Trace string `json:"trace"`
}

// MatchFilePayload is the payload for "match_file" requests
type MatchFilePayload struct {
	Path string `json:"path"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | "match" | "match_file" | "error"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version string `json:"version"`
	Probes  int    `json:"probes"`
}
