// Package tokens extracts and decodes Authorization header credentials for
// display. Nothing in this package verifies signatures: a decoded token is
// presentation data, not proof of anything.
package tokens

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const inspectBaseURL = "https://jwt.io/?token="

var bearerPrefix = regexp.MustCompile(`(?i)^bearer\s+`)

// Decoded holds the three parts of a JWT.
type Decoded struct {
	Header    map[string]any `json:"header" yaml:"header"`
	Payload   map[string]any `json:"payload" yaml:"payload"`
	Signature string         `json:"signature,omitempty" yaml:"signature,omitempty"`
}

// ExtractBearerToken strips a leading case-insensitive "Bearer " prefix and the
// whitespace after it. Any other value is returned unchanged.
func ExtractBearerToken(headerValue string) string {
	return bearerPrefix.ReplaceAllString(headerValue, "")
}

// LooksLikeJWT reports whether token has exactly three dot-separated segments.
// The segments themselves are not inspected.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// Decode splits a JWT and parses its header and payload as JSON objects.
// The signature segment is returned verbatim.
func Decode(token string) (*Decoded, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, &MalformedTokenError{
			Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts)),
		}
	}

	header, err := decodeSegment(parts[0], SegmentHeader)
	if err != nil {
		return nil, err
	}
	payload, err := decodeSegment(parts[1], SegmentPayload)
	if err != nil {
		return nil, err
	}

	return &Decoded{Header: header, Payload: payload, Signature: parts[2]}, nil
}

// InspectURL returns a jwt.io link that opens token in the external debugger.
func InspectURL(token string) string {
	return inspectBaseURL + url.QueryEscape(token)
}

func decodeSegment(segment string, name Segment) (map[string]any, error) {
	std := strings.NewReplacer("-", "+", "_", "/").Replace(segment)
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(std, "="))
	if err != nil {
		return nil, &MalformedTokenError{Reason: "invalid base64", Segment: name, Cause: err}
	}
	if !utf8.Valid(raw) {
		return nil, &MalformedTokenError{Reason: "segment is not valid UTF-8", Segment: name}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, &MalformedTokenError{Reason: "invalid JSON", Segment: name, Cause: err}
	}
	if out == nil {
		return nil, &MalformedTokenError{Reason: "segment is not a JSON object", Segment: name}
	}
	if dec.More() {
		return nil, &MalformedTokenError{Reason: "trailing data after JSON object", Segment: name}
	}
	return out, nil
}
