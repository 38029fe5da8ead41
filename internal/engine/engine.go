// Package engine implements the deterministic rule-based rewrite pipeline.
//
// The engine is pure: no I/O, no shared mutable state. It is used directly by
// the offline CLI and as the fallback path of the sanitize service.
package engine

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/bouncer/internal/rules"
)

// MinLevel and MaxLevel bound the ambiguity and noise dials.
const (
	MinLevel = 0
	MaxLevel = 10
)

// suffixLevel is the noise level from which qualifying suffixes are appended.
const suffixLevel = 8

// sentenceSeparator is split on literally; abbreviations and decimals are
// not special-cased.
const sentenceSeparator = ". "

// matchers caches one compiled whole-word, case-insensitive pattern per term.
// Populated once in init and read-only afterwards.
var matchers = map[string]*regexp.Regexp{}

func init() {
	for _, c := range rules.Categories() {
		for _, r := range rules.TransformRules(c) {
			register(r.Term)
		}
		for _, r := range rules.NoiseRules(c) {
			register(r.Word)
		}
	}
}

func register(term string) {
	if _, ok := matchers[term]; ok {
		return
	}
	matchers[term] = compileTerm(term)
}

func compileTerm(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

func matcher(term string) *regexp.Regexp {
	if re, ok := matchers[term]; ok {
		return re
	}
	return compileTerm(term)
}

// ApplyAmbiguity replaces sensitive terms with neutral equivalents.
//
// Level 0 returns text unchanged. Otherwise the general rules and then the
// category rules are applied in declaration order, each one rewriting every
// whole-word occurrence with the replacement of its highest threshold below
// level. Replacements are inserted verbatim.
func ApplyAmbiguity(text string, category rules.Category, level int) string {
	if level <= MinLevel {
		return text
	}

	out := text
	for _, r := range rules.TransformRules(category) {
		repl, ok := r.Select(level)
		if !ok {
			continue
		}
		out = matcher(r.Term).ReplaceAllLiteralString(out, repl)
	}
	return out
}

// ApplyNoise expands generic words into aligned phrases.
//
// Only the first min(level/2, len(list)) entries of the category's noise list
// are considered, each firing when level exceeds its threshold. From level 8
// the leading sentences also receive a qualifying suffix.
func ApplyNoise(text string, category rules.Category, level int) string {
	if level <= MinLevel {
		return text
	}

	list := rules.NoiseRules(category)
	k := min(level/2, len(list))

	out := text
	for _, r := range list[:k] {
		if !r.Active(level) {
			continue
		}
		out = matcher(r.Word).ReplaceAllLiteralString(out, r.Expansion)
	}

	if level >= suffixLevel {
		out = appendSuffixes(out, rules.QualifyingSuffixes(category))
	}
	return out
}

func appendSuffixes(text string, suffixes []string) string {
	sentences := strings.Split(text, sentenceSeparator)
	for i := range sentences {
		if i >= len(suffixes) {
			break
		}
		sentences[i] += suffixes[i]
	}
	return strings.Join(sentences, sentenceSeparator)
}

// Rewrite runs the full local pipeline: classify, ambiguity, noise, compose.
// note is recorded in the summary as the reason the local path was used.
func Rewrite(context, text string, ambiguity, noise int, note string) (Result, error) {
	category := rules.Classify(context)
	processed := ApplyNoise(ApplyAmbiguity(text, category, ambiguity), category, noise)
	return Compose(text, processed, Report{
		Context:   context,
		Category:  category,
		Ambiguity: ambiguity,
		Noise:     noise,
		Note:      note,
	})
}
