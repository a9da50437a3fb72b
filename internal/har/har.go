// Package har reads HTTP Archive documents as capture sources.
package har

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgnsrekt/authscope/internal/types"
)

// HAR represents an HTTP Archive file.
type HAR struct {
	Log Log `json:"log"`
}

// Log contains the HAR log data.
type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Entries []Entry `json:"entries"`
}

// Creator contains tool information.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry represents a single request/response pair.
type Entry struct {
	StartedDateTime string    `json:"startedDateTime"`
	Time            float64   `json:"time"`
	Request         Request   `json:"request"`
	Response        *Response `json:"response,omitempty"`
}

// Request represents an HTTP request.
type Request struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []types.Header `json:"headers"`
}

// Response represents an HTTP response. Browsers export in-flight requests
// with status 0.
type Response struct {
	Status     int            `json:"status"`
	StatusText string         `json:"statusText"`
	Headers    []types.Header `json:"headers"`
}

// Parse decodes a HAR document and converts its entries.
func Parse(r io.Reader) ([]types.CapturedRequest, error) {
	var doc HAR
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("har: decode: %w", err)
	}
	return Convert(doc.Log.Entries), nil
}

// Load reads and parses a HAR file.
func Load(path string) ([]types.CapturedRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("har: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Convert maps HAR entries to capture records, preserving order. Entries
// with an unreadable startedDateTime are logged and skipped.
func Convert(entries []Entry) []types.CapturedRequest {
	out := make([]types.CapturedRequest, 0, len(entries))
	for i, e := range entries {
		started, err := ParseStartedDateTime(e.StartedDateTime)
		if err != nil {
			slog.Warn("Skipping HAR entry", "entry", i, "url", e.Request.URL, "error", err)
			continue
		}
		rec := types.CapturedRequest{
			Method:    e.Request.Method,
			URL:       e.Request.URL,
			StartedAt: started,
			Source:    types.SourceHAR,
			Request: types.HTTPRequest{
				HTTPVersion: e.Request.HTTPVersion,
				Headers:     e.Request.Headers,
			},
		}
		if e.Response != nil && e.Response.Status > 0 {
			rec.Response = &types.HTTPResponse{
				Status:     e.Response.Status,
				StatusText: e.Response.StatusText,
				Headers:    e.Response.Headers,
			}
		}
		out = append(out, rec)
	}
	return out
}

// startedLayouts are tried in order. Some exporters write the zone offset
// without a colon.
var startedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
}

// ParseStartedDateTime parses the ISO 8601 timestamp HAR uses.
func ParseStartedDateTime(s string) (time.Time, error) {
	var err error
	for _, layout := range startedLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid startedDateTime %q: %w", s, err)
}
