package tokens

import "fmt"

// Segment names a JWT part.
type Segment string

const (
	SegmentHeader  Segment = "header"
	SegmentPayload Segment = "payload"
)

// MalformedTokenError is returned by Decode when a token cannot be split or
// its header/payload cannot be decoded.
type MalformedTokenError struct {
	Reason  string
	Segment Segment // empty when the failure is structural
	Cause   error
}

func (e *MalformedTokenError) Error() string {
	msg := "malformed token: " + e.Reason
	if e.Segment != "" {
		msg = fmt.Sprintf("malformed token: %s: %s", e.Segment, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *MalformedTokenError) Unwrap() error { return e.Cause }
