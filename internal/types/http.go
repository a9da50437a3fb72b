package types

import (
	"strings"
	"time"
)

// Capture sources.
const (
	SourceCDP = "cdp"
	SourceHAR = "har"
	SourceAPI = "api"
)

// Header is a single name/value pair. Order is preserved from the capture.
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// CapturedRequest is a request/response record as delivered by a capture source.
type CapturedRequest struct {
	Method    string        `json:"method"`
	URL       string        `json:"url"`
	StartedAt time.Time     `json:"started_at"`
	Source    string        `json:"source,omitempty"`
	TabID     string        `json:"tab_id,omitempty"`
	Request   HTTPRequest   `json:"request"`
	Response  *HTTPResponse `json:"response,omitempty"`
}

// HTTPRequest represents the request portion of a capture.
type HTTPRequest struct {
	HTTPVersion string   `json:"http_version,omitempty" yaml:"http_version,omitempty"`
	Headers     []Header `json:"headers" yaml:"headers"`
}

// HTTPResponse represents the response portion of a capture. A nil response
// means the request is still pending.
type HTTPResponse struct {
	Status     int      `json:"status" yaml:"status"`
	StatusText string   `json:"status_text" yaml:"status_text"`
	Headers    []Header `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// TrackedRequest is a captured request that carried an Authorization header.
type TrackedRequest struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	Method     string        `json:"method"`
	Status     int           `json:"status,omitempty"`
	StatusText string        `json:"status_text,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	AuthHeader string        `json:"auth_header"`
	Source     string        `json:"source,omitempty"`
	Request    HTTPRequest   `json:"request"`
	Response   *HTTPResponse `json:"response,omitempty"`
}

// Pending reports whether no response has been observed yet.
func (t TrackedRequest) Pending() bool {
	return t.Response == nil
}

// FindHeader returns the first header whose name matches case-insensitively.
func FindHeader(headers []Header, name string) (Header, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h, true
		}
	}
	return Header{}, false
}

// ISOTimestamp formats t the way browsers serialize Date values
// (UTC, millisecond precision).
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
