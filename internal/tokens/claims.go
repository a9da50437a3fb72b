package tokens

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	StatusExpired = "EXPIRED"
	StatusValid   = "Valid"

	localTimeLayout = "2006-01-02 15:04:05 MST"

	// calendar rendering covers years 0000 to 9999
	minRenderableSecs = -62167219200
	maxRenderableSecs = 253402300799
)

var timestampClaims = []string{"iat", "exp", "nbf"}

// AnnotateTimestampClaims returns a shallow copy of payload in which numeric
// iat, exp and nbf claims are replaced by "<epoch> (<local time>)". The exp
// claim also carries EXPIRED or Valid, judged against the clock at call time,
// so the verdict for the same payload changes once exp passes.
func AnnotateTimestampClaims(payload map[string]any) map[string]any {
	return annotateAt(payload, time.Now())
}

func annotateAt(payload map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	for _, claim := range timestampClaims {
		raw, secs, ok := numericClaim(payload[claim])
		if !ok {
			continue
		}
		display := raw + " (" + renderEpoch(secs) + ")"
		if claim == "exp" {
			if secs < epochSeconds(now) {
				display += " " + StatusExpired
			} else {
				display += " " + StatusValid
			}
		}
		out[claim] = display
	}
	return out
}

// numericClaim returns the claim's literal text and its value in seconds.
func numericClaim(v any) (string, float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return "", 0, false
		}
		return n.String(), f, true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), n, true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), float64(n), true
	case int:
		return strconv.Itoa(n), float64(n), true
	case int64:
		return strconv.FormatInt(n, 10), float64(n), true
	case int32:
		return strconv.FormatInt(int64(n), 10), float64(n), true
	case uint64:
		return strconv.FormatUint(n, 10), float64(n), true
	}
	return "", 0, false
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func renderEpoch(secs float64) string {
	if secs < minRenderableSecs || secs > maxRenderableSecs {
		return "out of range"
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).Local().Format(localTimeLayout)
}

// Summary lists the registered claims and header fields people usually look
// for first. It is read without verifying the signature.
type Summary struct {
	Algorithm string    `json:"alg,omitempty" yaml:"alg,omitempty"`
	KeyID     string    `json:"kid,omitempty" yaml:"kid,omitempty"`
	Issuer    string    `json:"iss,omitempty" yaml:"iss,omitempty"`
	Subject   string    `json:"sub,omitempty" yaml:"sub,omitempty"`
	Audience  []string  `json:"aud,omitempty" yaml:"aud,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero" yaml:"issued_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero" yaml:"expires_at,omitempty"`
	NotBefore time.Time `json:"not_before,omitzero" yaml:"not_before,omitempty"`
}

// Summarize extracts a Summary from token. Errors from the unverified parser
// are wrapped in MalformedTokenError.
func Summarize(token string) (Summary, error) {
	var claims jwt.RegisteredClaims
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return Summary{}, &MalformedTokenError{Reason: "unparseable claims", Cause: err}
	}

	s := Summary{
		Issuer:   claims.Issuer,
		Subject:  claims.Subject,
		Audience: claims.Audience,
	}
	if alg, ok := parsed.Header["alg"].(string); ok {
		s.Algorithm = alg
	}
	if kid, ok := parsed.Header["kid"].(string); ok {
		s.KeyID = kid
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.NotBefore != nil {
		s.NotBefore = claims.NotBefore.Time
	}
	return s, nil
}
