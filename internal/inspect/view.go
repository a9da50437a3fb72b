// Package inspect turns tracked requests into display-ready views.
package inspect

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dgnsrekt/authscope/internal/tokens"
	"github.com/dgnsrekt/authscope/internal/types"
)

// ErrNotFound is returned when a request ID is not tracked.
var ErrNotFound = errors.New("request not found")

// RequestView is one row of the request list with its token panels.
type RequestView struct {
	ID          string         `json:"id" yaml:"id"`
	Method      string         `json:"method" yaml:"method"`
	URL         string         `json:"url" yaml:"url"`
	Host        string         `json:"host" yaml:"host"`
	Path        string         `json:"path" yaml:"path"`
	Status      string         `json:"status" yaml:"status"`
	StatusText  string         `json:"status_text,omitempty" yaml:"status_text,omitempty"`
	StatusClass string         `json:"status_class,omitempty" yaml:"status_class,omitempty"`
	Timestamp   time.Time      `json:"timestamp" yaml:"timestamp"`
	TimeAgo     string         `json:"time_ago" yaml:"time_ago"`
	Source      string         `json:"source,omitempty" yaml:"source,omitempty"`
	Token       TokenView      `json:"token" yaml:"token"`
	Headers     []types.Header `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// TokenView is the raw and decoded presentation of an Authorization value.
type TokenView struct {
	Raw         string          `json:"raw" yaml:"raw"`
	AuthHeader  string          `json:"auth_header" yaml:"auth_header"`
	IsJWT       bool            `json:"is_jwt" yaml:"is_jwt"`
	InspectURL  string          `json:"inspect_url" yaml:"inspect_url"`
	Decoded     *tokens.Decoded `json:"decoded,omitempty" yaml:"decoded,omitempty"`
	Summary     *tokens.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	DecodeError string          `json:"decode_error,omitempty" yaml:"decode_error,omitempty"`
}

// BuildToken renders the token panels for an Authorization header value.
// A token that fails to decode yields a view with DecodeError set instead of
// an error, so one bad token never hides the rest of the list.
func BuildToken(authHeader string) TokenView {
	raw := tokens.ExtractBearerToken(authHeader)
	tv := TokenView{
		Raw:        raw,
		AuthHeader: authHeader,
		IsJWT:      tokens.LooksLikeJWT(raw),
		InspectURL: tokens.InspectURL(raw),
	}
	if !tv.IsJWT {
		return tv
	}

	decoded, err := tokens.Decode(raw)
	if err != nil {
		tv.DecodeError = DecodeErrorMessage(err)
		return tv
	}
	decoded.Payload = tokens.AnnotateTimestampClaims(decoded.Payload)
	tv.Decoded = decoded

	if summary, err := tokens.Summarize(raw); err == nil {
		tv.Summary = &summary
	}
	return tv
}

// DecodeErrorMessage is the user-facing text for a decode failure.
func DecodeErrorMessage(err error) string {
	var malformed *tokens.MalformedTokenError
	if errors.As(err, &malformed) {
		return "Could not decode JWT: " + malformed.Error()
	}
	return fmt.Sprintf("Could not decode JWT: %v", err)
}

// Build renders a single tracked request as of now.
func Build(req types.TrackedRequest, now time.Time, withHeaders bool) RequestView {
	host, path := splitURL(req.URL)
	v := RequestView{
		ID:         req.ID,
		Method:     req.Method,
		URL:        req.URL,
		Host:       host,
		Path:       path,
		Status:     "pending",
		StatusText: req.StatusText,
		Timestamp:  req.Timestamp,
		TimeAgo:    TimeAgo(req.Timestamp, now),
		Source:     req.Source,
		Token:      BuildToken(req.AuthHeader),
	}
	if !req.Pending() {
		v.Status = fmt.Sprintf("%d", req.Status)
		v.StatusClass = StatusClass(req.Status)
	}
	if withHeaders {
		v.Headers = req.Request.Headers
	}
	return v
}

// BuildAll renders requests in the given order.
func BuildAll(reqs []types.TrackedRequest, now time.Time) []RequestView {
	out := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, Build(r, now, false))
	}
	return out
}

// StatusClass buckets an HTTP status for styling.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "status-200"
	case status >= 400 && status < 500:
		return "status-400"
	case status >= 500:
		return "status-500"
	}
	return ""
}

// TimeAgo formats the age of ts relative to now.
func TimeAgo(ts, now time.Time) string {
	d := now.Sub(ts)
	if d < 0 {
		d = 0
	}
	seconds := int(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	}
	return ts.Local().Format("2006-01-02")
}

func splitURL(raw string) (host, path string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", raw
	}
	path = u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return u.Hostname(), path
}
