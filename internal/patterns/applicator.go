package patterns

import (
	"context"
	"strings"
	"sync"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// AppliedPattern records that a pattern rewrote one extracted value (§4.6).
type AppliedPattern struct {
	PatternID  string
	Trigger    string
	Meaning    string
	EntityType types.PatternType
}

// Applicator holds an in-memory cache of auto-applicable patterns (confidence >= 70),
// loaded at startup and on explicit Refresh (§4.6).
type Applicator struct {
	mu       sync.RWMutex
	patterns []types.Pattern
}

// NewApplicator returns an empty Applicator; call Refresh before first use.
func NewApplicator() *Applicator {
	return &Applicator{}
}

// Refresh reloads the applicable-pattern cache from gw.
func (a *Applicator) Refresh(ctx context.Context, gw kb.Gateway) error {
	patterns, err := gw.QueryPatterns(ctx, kb.PatternFilter{MinConfidence: 70})
	if err != nil {
		return err
	}
	applicable := patterns[:0:0]
	for _, p := range patterns {
		if p.AutoApplicable() {
			applicable = append(applicable, p)
		}
	}
	a.mu.Lock()
	a.patterns = applicable
	a.mu.Unlock()
	return nil
}

// matchesTrigger implements §4.6's matching rule: normalized equal, or normalized
// trigger is a substring of normalized value, or (value length >= 3 and value is a
// substring of trigger).
func matchesTrigger(value, trigger string) bool {
	nv, nt := normalize(value), normalize(trigger)
	if nv == nt {
		return true
	}
	if strings.Contains(nv, nt) {
		return true
	}
	if len(nv) >= 3 && strings.Contains(nt, nv) {
		return true
	}
	return false
}

// findFirstMatch returns the first pattern (in cache order) whose trigger matches value.
func (a *Applicator) findFirstMatch(value string) (types.Pattern, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, p := range a.patterns {
		if matchesTrigger(value, p.Trigger) {
			return p, true
		}
	}
	return types.Pattern{}, false
}

// ApplyResult is the outcome of applying patterns to one message's extracted entities
// and title (§4.6).
type ApplyResult struct {
	People  []string // rewritten person names, same order/len as input
	Places  []string // rewritten place names, same order/len as input
	Title   string
	Applied []AppliedPattern
}

// Apply rewrites each extracted person/place value against the first matching pattern
// (at most one pattern per entity instance), and case-insensitively rewrites any
// occurrence of the original value within title too (§4.6).
func (a *Applicator) Apply(people, places []string, title string) ApplyResult {
	result := ApplyResult{
		People: append([]string(nil), people...),
		Places: append([]string(nil), places...),
		Title:  title,
	}

	for i, name := range people {
		if p, ok := a.findFirstMatch(name); ok {
			result.People[i] = p.Meaning
			result.Title = replaceCaseInsensitive(result.Title, name, p.Meaning)
			result.Applied = append(result.Applied, AppliedPattern{PatternID: p.ID, Trigger: p.Trigger, Meaning: p.Meaning, EntityType: p.Type})
		}
	}

	for i, name := range places {
		if p, ok := a.findFirstMatch(name); ok {
			result.Places[i] = p.Meaning
			result.Title = replaceCaseInsensitive(result.Title, name, p.Meaning)
			result.Applied = append(result.Applied, AppliedPattern{PatternID: p.ID, Trigger: p.Trigger, Meaning: p.Meaning, EntityType: p.Type})
		}
	}

	// Title-only patterns (no entity-value match) are recorded but never edit title
	// text, per §4.6; they appear only in result.Applied.
	if p, ok := a.findFirstMatch(title); ok && !titleAlreadyCovered(result.Applied, p) {
		result.Applied = append(result.Applied, AppliedPattern{PatternID: p.ID, Trigger: p.Trigger, Meaning: p.Meaning, EntityType: p.Type})
	}

	return result
}

func titleAlreadyCovered(applied []AppliedPattern, p types.Pattern) bool {
	for _, a := range applied {
		if a.PatternID == p.ID {
			return true
		}
	}
	return false
}

func replaceCaseInsensitive(haystack, old, new string) string {
	if old == "" {
		return haystack
	}
	lowerHaystack := strings.ToLower(haystack)
	lowerOld := strings.ToLower(old)
	idx := strings.Index(lowerHaystack, lowerOld)
	if idx == -1 {
		return haystack
	}
	return haystack[:idx] + new + haystack[idx+len(old):]
}
