package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/bouncer/internal/rules"
)

// ErrEmptyText is returned by Compose when the original text has no words.
// Requests are validated upstream, so seeing it indicates a defect.
var ErrEmptyText = errors.New("original text has no words")

// DefaultNote is used when Rewrite is called without a reason.
const DefaultNote = "no text generation provider configured"

// Result is the output shape shared by the local and provider paths.
type Result struct {
	Summary       string `json:"summary" yaml:"summary"`
	ProcessedText string `json:"processed_text" yaml:"processed_text"`
}

// Report describes a local run for the summary.
type Report struct {
	Context   string
	Category  rules.Category
	Ambiguity int
	Noise     int
	// Note explains why rule-based processing was used.
	Note string
}

// WordStats compares word counts before and after processing.
type WordStats struct {
	Original     int
	Processed    int
	Delta        int
	DeltaPercent float64
}

// CountWords tokenizes on runs of whitespace.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Stats computes word-count statistics. It fails with ErrEmptyText when
// original contains no words.
func Stats(original, processed string) (WordStats, error) {
	o := CountWords(original)
	if o == 0 {
		return WordStats{}, ErrEmptyText
	}
	p := CountWords(processed)
	d := p - o
	return WordStats{
		Original:     o,
		Processed:    p,
		Delta:        d,
		DeltaPercent: float64(d) / float64(o) * 100,
	}, nil
}

// String renders the stats as "50 → 55 words (+5, 10.0%)".
func (s WordStats) String() string {
	return fmt.Sprintf("%d → %d words (%s, %.1f%%)", s.Original, s.Processed, signed(s.Delta), s.DeltaPercent)
}

func signed(n int) string {
	if n >= 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// AmbiguityDescription explains what an ambiguity level does.
func AmbiguityDescription(level int) string {
	switch {
	case level <= 0:
		return "no changes made (ambiguity=0 preserves original text exactly)"
	case level <= 3:
		return "light ambiguity adjustments"
	case level <= 7:
		return "moderate ambiguity in sensitive areas"
	default:
		return "high ambiguity for potentially flagged content"
	}
}

// NoiseDescription explains what a noise level does.
func NoiseDescription(level int) string {
	switch {
	case level <= 0:
		return "no noise insertion"
	case level <= 3:
		return "minimal strategic noise via phrase expansion"
	case level <= 7:
		return "moderate signal masking through strategic replacements"
	default:
		return "heavy noise via comprehensive phrase expansion and qualifying language"
	}
}

// Compose builds the human-readable summary for a local run.
func Compose(original, processed string, rep Report) (Result, error) {
	stats, err := Stats(original, processed)
	if err != nil {
		return Result{}, fmt.Errorf("compose summary: %w", err)
	}

	note := rep.Note
	if note == "" {
		note = DefaultNote
	}
	category := rep.Category
	if category == "" {
		category = rules.Classify(rep.Context)
	}

	var b strings.Builder
	b.WriteString("**Rule-Based Processing Applied**\n\n")
	fmt.Fprintf(&b, "**Context Analysis:** Based on \"%s\", applied targeted modifications for the %s category.\n\n", rep.Context, category)
	fmt.Fprintf(&b, "**Ambiguity Level (%d/10):** %s\n\n", rep.Ambiguity, AmbiguityDescription(rep.Ambiguity))
	fmt.Fprintf(&b, "**Noise Level (%d/10):** %s\n\n", rep.Noise, NoiseDescription(rep.Noise))
	fmt.Fprintf(&b, "**Word Count Impact:** %s\n\n", stats)
	fmt.Fprintf(&b, "Note: This is rule-based processing (%s). For full AI-powered analysis, configure a text generation provider.", note)

	return Result{Summary: b.String(), ProcessedText: processed}, nil
}
