// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package policy

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// Mode selects what a Guard does with a result that matches a rule.
type Mode string

const (
	// ModeOff disables screening.
	ModeOff Mode = "off"
	// ModeFlag logs matches and returns the result unchanged.
	ModeFlag Mode = "flag"
	// ModeRedact replaces matched regions with RedactionMarker.
	ModeRedact Mode = "redact"
	// ModeBlock replaces the result with an error.
	ModeBlock Mode = "block"
)

// RedactionMarker replaces each redacted region.
const RedactionMarker = "[REDACTED]"

// ParseMode parses a mode name, case-insensitively. Empty means ModeOff.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeOff, nil
	case ModeOff, ModeFlag, ModeRedact, ModeBlock:
		return m, nil
	default:
		return "", quarryerr.Errorf(quarryerr.CodePolicyModeInvalid,
			"invalid result scan mode %q: expected off, flag, redact or block", s)
	}
}

// Severity ranks a rule.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Rule is one detection pattern.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
}

// Match is one rule hit. Location and Length are byte offsets into
// Result.Content.
type Match struct {
	Rule     string
	Location int
	Length   int
	Severity Severity
}

// Result is the outcome of scanning one result text.
type Result struct {
	Matches []Match
	// Content is the scanned text after normalization (NFKC with invisible
	// characters removed). Match offsets refer to it.
	Content string
}

// Threat reports whether any rule matched.
func (r Result) Threat() bool {
	return len(r.Matches) > 0
}

// Rules lists the distinct rule names that matched, in match order.
func (r Result) Rules() []string {
	var names []string
	for _, m := range r.Matches {
		if !slices.Contains(names, m.Rule) {
			names = append(names, m.Rule)
		}
	}
	return names
}

// Guard screens operation results for leaked credentials and for text
// planted to steer the calling agent.
type Guard struct {
	mode  Mode
	rules []Rule
}

// NewGuard returns a Guard in mode using rules, or DefaultRules when none
// are given.
func NewGuard(mode Mode, rules ...Rule) (*Guard, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for i, r := range rules {
		if r.Name == "" {
			return nil, quarryerr.Errorf(quarryerr.CodePolicyPatternInvalid, "rule %d has empty name", i)
		}
		if r.Pattern == nil {
			return nil, quarryerr.Errorf(quarryerr.CodePolicyPatternInvalid, "rule %d (%s) has nil pattern", i, r.Name)
		}
	}
	return &Guard{mode: mode, rules: rules}, nil
}

// Mode returns the guard's mode. A nil Guard is ModeOff.
func (g *Guard) Mode() Mode {
	if g == nil || g.mode == "" {
		return ModeOff
	}
	return g.mode
}

// Scan checks content against every rule.
func (g *Guard) Scan(content string) Result {
	res := Result{Content: normalize(content)}
	for _, rule := range g.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(res.Content, -1) {
			res.Matches = append(res.Matches, Match{
				Rule:     rule.Name,
				Location: loc[0],
				Length:   loc[1] - loc[0],
				Severity: rule.Severity,
			})
		}
	}
	return res
}

// Screen applies the guard's mode to the result text of operation. Clean
// content is returned unchanged in every mode.
func (g *Guard) Screen(ctx context.Context, operation, content string) (string, error) {
	mode := g.Mode()
	if mode == ModeOff || content == "" {
		return content, nil
	}

	res := g.Scan(content)
	if !res.Threat() {
		return content, nil
	}

	slog.WarnContext(ctx, "operation result matched screening rules",
		"operation", operation,
		"mode", string(mode),
		"matches", len(res.Matches),
		"rules", res.Rules(),
	)

	switch mode {
	case ModeRedact:
		return redact(res.Content, res.Matches), nil
	case ModeBlock:
		return "", quarryerr.New(quarryerr.CodePolicyResultBlocked,
			"result of "+operation+" withheld: matched "+strings.Join(res.Rules(), ", "),
			quarryerr.FieldOperation(operation),
			quarryerr.Field("matches", len(res.Matches)),
		)
	default:
		return content, nil
	}
}

// invisible strips zero-width and other invisible characters used to split
// a token so a pattern no longer sees it.
var invisible = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // zero-width no-break space
	"\u00ad", "", // soft hyphen
	"\u034f", "", // combining grapheme joiner
	"\u2060", "", // word joiner
	"\u2061", "", // function application
	"\u2062", "", // invisible times
	"\u2063", "", // invisible separator
	"\u2064", "", // invisible plus
)

func normalize(s string) string {
	return norm.NFKC.String(invisible.Replace(s))
}

// redact replaces matched regions with RedactionMarker, merging overlaps.
func redact(content string, matches []Match) string {
	sorted := slices.DeleteFunc(slices.Clone(matches), func(m Match) bool {
		return m.Location < 0 || m.Length < 0 || m.Location > len(content)
	})
	if len(sorted) == 0 {
		return content
	}
	slices.SortFunc(sorted, func(a, b Match) int { return a.Location - b.Location })

	type span struct{ start, end int }
	spans := []span{{sorted[0].Location, sorted[0].Location + sorted[0].Length}}
	for _, m := range sorted[1:] {
		last := &spans[len(spans)-1]
		end := m.Location + m.Length
		if m.Location <= last.end {
			last.end = max(last.end, end)
			continue
		}
		spans = append(spans, span{m.Location, end})
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, s := range spans {
		b.WriteString(content[pos:s.start])
		b.WriteString(RedactionMarker)
		pos = min(s.end, len(content))
	}
	b.WriteString(content[pos:])
	return b.String()
}
