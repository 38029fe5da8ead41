// Package secrets keeps credentials from leaving the process.
//
// The Guard scans outbound text with the gitleaks default rule set before it
// is sent to a remote text generation provider.
package secrets

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// ErrSecretsFound is returned by Check when any input contains a secret.
var ErrSecretsFound = errors.New("input contains secrets")

// Finding is one detected secret. The secret itself is never retained.
type Finding struct {
	RuleID      string
	Description string
	Line        int
}

// Guard scans text for credentials. It is safe for concurrent use.
type Guard struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGuard builds a guard from the gitleaks default configuration.
// allow lists regular expressions whose matches are never reported.
func NewGuard(allow ...string) (*Guard, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret detector: %w", err)
	}

	if len(allow) > 0 {
		al := &gitleaksConfig.Allowlist{Description: "bouncer allowlist"}
		for _, pattern := range allow {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid allowlist pattern %q: %w", pattern, err)
			}
			al.Regexes = append(al.Regexes, (*gitleaksRegexp.Regexp)(re))
		}
		detector.Config.Allowlists = append(detector.Config.Allowlists, al)
	}

	return &Guard{detector: detector}, nil
}

// Scan returns the findings in content.
func (g *Guard) Scan(content string) []Finding {
	if content == "" {
		return nil
	}

	// The detector keeps per-scan state and is not safe for concurrent use.
	g.mu.Lock()
	found := g.detector.DetectString(content)
	g.mu.Unlock()

	out := make([]Finding, 0, len(found))
	for _, f := range found {
		out = append(out, Finding{RuleID: f.RuleID, Description: f.Description, Line: f.StartLine})
	}
	return out
}

// Check scans every input and wraps ErrSecretsFound with the matching rule
// IDs when anything is found.
func (g *Guard) Check(inputs ...string) error {
	rules := map[string]struct{}{}
	for _, in := range inputs {
		for _, f := range g.Scan(in) {
			rules[f.RuleID] = struct{}{}
		}
	}
	if len(rules) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Errorf("%w: %v", ErrSecretsFound, ids)
}
