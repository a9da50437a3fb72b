package tokens

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segment(t *testing.T, v string) string {
	t.Helper()
	return base64.RawURLEncoding.EncodeToString([]byte(v))
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"BEARER \t  abc", "abc"},
		{"Basic dXNlcjpwYXNz", "Basic dXNlcjpwYXNz"},
		{"Bearer", "Bearer"},
		{"", ""},
		{"token Bearer abc", "token Bearer abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractBearerToken(tt.in), "ExtractBearerToken(%q)", tt.in)
	}
}

func TestLooksLikeJWT(t *testing.T) {
	assert.True(t, LooksLikeJWT("a.b.c"))
	assert.True(t, LooksLikeJWT("..")) // structural only
	assert.False(t, LooksLikeJWT("a.b"))
	assert.False(t, LooksLikeJWT("abc"))
	assert.False(t, LooksLikeJWT("a.b.c.d"))
}

func TestDecode(t *testing.T) {
	header := `{"alg":"HS256","typ":"JWT"}`
	payload := `{"sub":"123","iat":1700000000,"exp":9999999999}`
	token := segment(t, header) + "." + segment(t, payload) + ".sig"

	got, err := Decode(token)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"alg": "HS256", "typ": "JWT"}, got.Header)
	assert.Equal(t, map[string]any{
		"sub": "123",
		"iat": json.Number("1700000000"),
		"exp": json.Number("9999999999"),
	}, got.Payload)
	assert.Equal(t, "sig", got.Signature)
}

func TestDecodeAcceptsPaddedAndURLSafeSegments(t *testing.T) {
	// encodes to eyJxIjoiPz8-PiJ9
	payload := `{"q":"??>>"}`
	padded := base64.URLEncoding.EncodeToString([]byte(payload))
	require.True(t, strings.ContainsAny(padded, "-_="), "fixture should use url-safe or padding characters: %s", padded)

	got, err := Decode(segment(t, `{}`) + "." + padded + ".x")
	require.NoError(t, err)
	assert.Equal(t, "??>>", got.Payload["q"])
}

func TestDecodeSignedToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"scope": "read write",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, err := Decode(ExtractBearerToken("Bearer " + signed))
	require.NoError(t, err)
	assert.Equal(t, "HS256", got.Header["alg"])
	assert.Equal(t, "user-1", got.Payload["sub"])
	assert.Equal(t, signed[strings.LastIndex(signed, ".")+1:], got.Signature)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		segment Segment
		cause   bool
	}{
		{name: "two_segments", token: "not.valid"},
		{name: "one_segment", token: "abc"},
		{name: "four_segments", token: "a.b.c.d"},
		{name: "invalid_base64_payload", token: segment(t, `{}`) + ".!!!.c", segment: SegmentPayload, cause: true},
		{name: "invalid_base64_header", token: "a.!!!.c", segment: SegmentHeader, cause: true},
		{name: "header_not_json", token: segment(t, "nope") + "." + segment(t, `{}`) + ".c", segment: SegmentHeader, cause: true},
		{name: "payload_array", token: segment(t, `{}`) + "." + segment(t, `[1,2]`) + ".c", segment: SegmentPayload, cause: true},
		{name: "payload_null", token: segment(t, `{}`) + "." + segment(t, `null`) + ".c", segment: SegmentPayload},
		{name: "payload_not_utf8", token: segment(t, `{}`) + "." + base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xfe}) + ".c", segment: SegmentPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.token)
			require.Error(t, err)
			assert.Nil(t, got)

			var malformed *MalformedTokenError
			require.True(t, errors.As(err, &malformed), "Decode() error = %T; want *MalformedTokenError", err)
			assert.Equal(t, tt.segment, malformed.Segment)
			if tt.cause {
				assert.NotNil(t, errors.Unwrap(err))
			}
		})
	}
}

func TestAnnotateTimestampClaims(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	payload := map[string]any{
		"sub": "123",
		"iat": json.Number("1700000000"),
		"nbf": float64(1700000000),
		"exp": json.Number("1700003600"),
	}

	got := annotateAt(payload, now)

	iat, ok := got["iat"].(string)
	require.True(t, ok, "iat = %T; want string", got["iat"])
	assert.True(t, strings.HasPrefix(iat, "1700000000 ("), iat)
	assert.True(t, strings.HasSuffix(iat, ")"), iat)
	assert.Contains(t, got["nbf"], "1700000000 (")
	assert.True(t, strings.HasSuffix(got["exp"].(string), ") "+StatusExpired), got["exp"])
	assert.Equal(t, "123", got["sub"])

	// the input is left untouched
	assert.Equal(t, json.Number("1700000000"), payload["iat"])
}

func TestAnnotateTimestampClaimsExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()

	expired := AnnotateTimestampClaims(map[string]any{"exp": past})
	assert.True(t, strings.HasSuffix(expired["exp"].(string), StatusExpired), expired["exp"])

	valid := AnnotateTimestampClaims(map[string]any{"exp": future})
	assert.True(t, strings.HasSuffix(valid["exp"].(string), StatusValid), valid["exp"])
}

func TestAnnotateTimestampClaimsFarFuture(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := annotateAt(map[string]any{
		"exp": json.Number("1e19"),
		"nbf": json.Number("-1e19"),
		"iat": float64(32503680000), // year 3000
	}, now)

	assert.Equal(t, "1e19 (out of range) "+StatusValid, got["exp"])
	assert.Equal(t, "-1e19 (out of range)", got["nbf"])
	assert.NotContains(t, got["iat"], "out of range")

	past := annotateAt(map[string]any{"exp": json.Number("-1e19")}, now)
	assert.Equal(t, "-1e19 (out of range) "+StatusExpired, past["exp"])
}

func TestAnnotateTimestampClaimsSubSecond(t *testing.T) {
	now := time.Unix(1700000000, 600_000_000)
	got := annotateAt(map[string]any{"exp": 1700000000.5}, now)
	assert.True(t, strings.HasSuffix(got["exp"].(string), StatusExpired), got["exp"])
}

func TestAnnotateTimestampClaimsPassThrough(t *testing.T) {
	payload := map[string]any{
		"exp": "tomorrow",
		"iat": true,
		"aud": []any{"a"},
	}
	got := AnnotateTimestampClaims(payload)
	assert.Equal(t, payload, got)

	empty := AnnotateTimestampClaims(nil)
	assert.Empty(t, empty)
}

func TestInspectURL(t *testing.T) {
	assert.Equal(t, "https://jwt.io/?token=a.b%2Bc.d%3D", InspectURL("a.b+c.d="))
}

func TestSummarize(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "https://issuer.example",
		Subject:   "user-7",
		Audience:  jwt.ClaimStrings{"api"},
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	tok.Header["kid"] = "key-1"
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	got, err := Summarize(signed)
	require.NoError(t, err)
	assert.Equal(t, "HS256", got.Algorithm)
	assert.Equal(t, "key-1", got.KeyID)
	assert.Equal(t, "https://issuer.example", got.Issuer)
	assert.Equal(t, "user-7", got.Subject)
	assert.Equal(t, []string{"api"}, got.Audience)
	assert.True(t, got.ExpiresAt.Equal(exp), "ExpiresAt = %v; want %v", got.ExpiresAt, exp)
	assert.True(t, got.IssuedAt.IsZero())

	_, err = Summarize("not-a-jwt")
	var malformed *MalformedTokenError
	assert.True(t, errors.As(err, &malformed))
}
