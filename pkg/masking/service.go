// Package masking scrubs customer PII from session snapshots before they
// leave the process. The live in-memory session keeps the raw text the
// agents need; only persisted copies are masked.
package masking

import (
	"github.com/wardrobe-labs/concierge/pkg/session"
)

// Service applies data masking to transcript text. Created once at startup;
// thread-safe and stateless aside from compiled patterns.
type Service struct {
	patterns []*CompiledPattern
}

// NewService compiles the built-in patterns plus any extras.
func NewService(extra ...Pattern) *Service {
	all := make([]Pattern, 0, len(builtinPatterns)+len(extra))
	all = append(all, builtinPatterns...)
	all = append(all, extra...)
	return &Service{patterns: compile(all)}
}

// MaskText applies every pattern to the text.
func (s *Service) MaskText(text string) string {
	for _, p := range s.patterns {
		text = p.Regex.ReplaceAllStringFunc(text, p.maskMatch)
	}
	return text
}

// MaskSnapshot returns a copy of the snapshot with transcript contents and
// string context values masked. The input is not modified.
func (s *Service) MaskSnapshot(snap session.Snapshot) session.Snapshot {
	transcript := make([]session.TurnRecord, len(snap.Transcript))
	copy(transcript, snap.Transcript)
	for i := range transcript {
		transcript[i].Content = s.MaskText(transcript[i].Content)
	}
	snap.Transcript = transcript

	ctx := make(map[string]any, len(snap.Context))
	for k, v := range snap.Context {
		if text, ok := v.(string); ok {
			ctx[k] = s.MaskText(text)
		} else {
			ctx[k] = v
		}
	}
	snap.Context = ctx
	return snap
}
