package sanitize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/bouncer/internal/engine"
)

// Validation sentinels. ValidationError wraps exactly one of these.
var (
	ErrContextRequired  = errors.New("context is required")
	ErrTextRequired     = errors.New("text is required")
	ErrTextTooLong      = errors.New("text exceeds maximum length")
	ErrInvalidAmbiguity = errors.New("ambiguity level out of range")
	ErrInvalidNoise     = errors.New("noise level out of range")
)

// Messages returned to clients, one per field.
const (
	msgContextRequired  = "Context description is required"
	msgTextRequired     = "No text provided"
	msgInvalidAmbiguity = "Ambiguity level must be an integer between 0 and 10"
	msgInvalidNoise     = "Noise level must be an integer between 0 and 10"
)

// invalidLevel marks a level that was missing or not an integer.
const invalidLevel = -1

// ValidationError reports the first invalid field of a request.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// Request is one rewrite request.
type Request struct {
	Context   string `json:"context"`
	Text      string `json:"text"`
	Ambiguity int    `json:"ambiguity"`
	Noise     int    `json:"noise"`
}

// Normalize trims context and text and validates every field in order:
// context, text, ambiguity, noise. maxTextLength <= 0 disables the length
// check.
func (r *Request) Normalize(maxTextLength int) error {
	r.Context = strings.TrimSpace(r.Context)
	r.Text = strings.TrimSpace(r.Text)

	if r.Context == "" {
		return &ValidationError{Field: "context", Message: msgContextRequired, Err: ErrContextRequired}
	}
	if r.Text == "" {
		return &ValidationError{Field: "text", Message: msgTextRequired, Err: ErrTextRequired}
	}
	if maxTextLength > 0 && utf8.RuneCountInString(r.Text) > maxTextLength {
		return &ValidationError{
			Field:   "text",
			Message: fmt.Sprintf("Text exceeds maximum length of %d characters", maxTextLength),
			Err:     ErrTextTooLong,
		}
	}
	if !validLevel(r.Ambiguity) {
		return &ValidationError{Field: "ambiguity", Message: msgInvalidAmbiguity, Err: ErrInvalidAmbiguity}
	}
	if !validLevel(r.Noise) {
		return &ValidationError{Field: "noise", Message: msgInvalidNoise, Err: ErrInvalidNoise}
	}
	return nil
}

func validLevel(l int) bool {
	return l >= engine.MinLevel && l <= engine.MaxLevel
}

// Payload is the loosely typed wire form of a Request. Fields that have the
// wrong JSON type are reported by Normalize with the field's own message
// rather than as a decoding failure.
//
// AmbiguityLevel and NoiseLevel are the names older browser clients send.
// They are read only when the short names are absent.
type Payload struct {
	Context        json.RawMessage `json:"context"`
	Text           json.RawMessage `json:"text"`
	Ambiguity      json.RawMessage `json:"ambiguity"`
	Noise          json.RawMessage `json:"noise"`
	AmbiguityLevel json.RawMessage `json:"ambiguityLevel,omitempty"`
	NoiseLevel     json.RawMessage `json:"noiseLevel,omitempty"`
}

// Request converts the payload. Non-string context or text become empty;
// levels that are not JSON integers become out of range.
func (p Payload) Request() Request {
	return Request{
		Context:   jsonString(p.Context),
		Text:      jsonString(p.Text),
		Ambiguity: jsonLevel(firstPresent(p.Ambiguity, p.AmbiguityLevel)),
		Noise:     jsonLevel(firstPresent(p.Noise, p.NoiseLevel)),
	}
}

func firstPresent(primary, alias json.RawMessage) json.RawMessage {
	if len(primary) > 0 {
		return primary
	}
	return alias
}

func jsonString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// jsonLevel accepts integral numbers, including 5.0. Strings, booleans,
// null and fractions are rejected.
func jsonLevel(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return invalidLevel
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return invalidLevel
	}
	if f != math.Trunc(f) || f < engine.MinLevel || f > engine.MaxLevel {
		return invalidLevel
	}
	return int(f)
}
