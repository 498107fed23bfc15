package masking

import (
	"log/slog"
	"regexp"
	"strings"
)

// Pattern is a named regex with the number of leading and trailing
// characters to keep visible in each match.
type Pattern struct {
	Name        string
	Expr        string
	KeepPrefix  int
	KeepSuffix  int
	Description string
}

// CompiledPattern holds a pre-compiled pattern.
type CompiledPattern struct {
	Name       string
	Regex      *regexp.Regexp
	KeepPrefix int
	KeepSuffix int
}

// builtinPatterns cover the PII customers volunteer in a retail chat:
// mainland mobile numbers and email addresses.
var builtinPatterns = []Pattern{
	{
		Name:        "phone_cn",
		Expr:        `1[3-9]\d{9}`,
		KeepPrefix:  3,
		KeepSuffix:  2,
		Description: "mainland China mobile number",
	},
	{
		Name:        "email",
		Expr:        `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		KeepPrefix:  2,
		KeepSuffix:  0,
		Description: "email address",
	},
}

// compile turns pattern definitions into compiled patterns. Invalid
// expressions are logged and skipped.
func compile(patterns []Pattern) []*CompiledPattern {
	compiled := make([]*CompiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			slog.Error("Failed to compile masking pattern, skipping",
				"pattern", p.Name, "error", err)
			continue
		}
		compiled = append(compiled, &CompiledPattern{
			Name:       p.Name,
			Regex:      re,
			KeepPrefix: p.KeepPrefix,
			KeepSuffix: p.KeepSuffix,
		})
	}
	return compiled
}

// maskMatch blanks the middle of a match, keeping the configured edges.
func (p *CompiledPattern) maskMatch(match string) string {
	keep := p.KeepPrefix + p.KeepSuffix
	if len(match) <= keep {
		return strings.Repeat("*", len(match))
	}
	return match[:p.KeepPrefix] +
		strings.Repeat("*", len(match)-keep) +
		match[len(match)-p.KeepSuffix:]
}
