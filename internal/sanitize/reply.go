package sanitize

import (
	"errors"
	"strings"

	"github.com/fyrsmithlabs/bouncer/internal/engine"
)

const (
	replyDelimiter = "MODIFIED TEXT:"
	summaryMarker  = "SUMMARY:"

	// GenericSummary is used when a reply has no summary section.
	GenericSummary = "AI processing completed successfully"
)

// ErrMalformedReply indicates a provider reply with no usable text.
var ErrMalformedReply = errors.New("malformed provider reply")

// ParseReply splits a provider reply at the first "MODIFIED TEXT:". The part
// before it, without a leading "SUMMARY:", is the summary. A reply without
// the delimiter is taken whole as the processed text.
func ParseReply(reply string) (engine.Result, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return engine.Result{}, ErrMalformedReply
	}

	before, after, found := strings.Cut(reply, replyDelimiter)
	if !found {
		return engine.Result{Summary: GenericSummary, ProcessedText: reply}, nil
	}

	text := strings.TrimSpace(after)
	if text == "" {
		return engine.Result{}, ErrMalformedReply
	}
	summary := strings.TrimSpace(strings.Replace(before, summaryMarker, "", 1))
	if summary == "" {
		summary = GenericSummary
	}
	return engine.Result{Summary: summary, ProcessedText: text}, nil
}
