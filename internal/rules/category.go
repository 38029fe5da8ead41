// Package rules holds the static rewrite tables used by the local engine.
//
// Everything in this package is immutable after init. Tables are keyed by
// Category and returned as copies so callers cannot mutate shared state.
package rules

import (
	"fmt"
	"strings"
)

// Category selects which rule subsets apply to a request.
type Category string

const (
	// CategoryDefault applies only the general transform set and the default noise list.
	CategoryDefault Category = "default"
	// CategoryGrant targets funding-agency review (NSF, grant panels).
	CategoryGrant Category = "grant"
	// CategoryAuthoritarian targets state review in authoritarian jurisdictions.
	CategoryAuthoritarian Category = "authoritarian"
)

var (
	grantMarkers         = []string{"nsf", "grant"}
	authoritarianMarkers = []string{"china", "beijing"}
)

// Markers returns the context substrings that select c. Grant markers are
// checked before authoritarian ones. CategoryDefault has none.
func Markers(c Category) []string {
	var src []string
	switch c {
	case CategoryGrant:
		src = grantMarkers
	case CategoryAuthoritarian:
		src = authoritarianMarkers
	default:
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Categories returns every category in precedence order.
func Categories() []Category {
	return []Category{CategoryGrant, CategoryAuthoritarian, CategoryDefault}
}

// Classify derives the category from a free-text context description.
// Grant markers win over authoritarian markers; otherwise the default applies.
func Classify(context string) Category {
	lower := strings.ToLower(context)
	if containsAny(lower, grantMarkers) {
		return CategoryGrant
	}
	if containsAny(lower, authoritarianMarkers) {
		return CategoryAuthoritarian
	}
	return CategoryDefault
}

// ParseCategory converts a string into a known Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryDefault, CategoryGrant, CategoryAuthoritarian:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
