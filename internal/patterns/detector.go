package patterns

import (
	"context"
	"time"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// CorrectionRecord is one observed original->corrected pair (§4.6 Detector state).
type CorrectionRecord struct {
	Original   string
	Corrected  string
	Context    string
	EntityType types.PatternType
	Timestamp  time.Time
}

// DetectedPattern is a candidate pattern not yet confirmed for persistence (§4.6).
type DetectedPattern struct {
	Trigger     string
	Meaning     string
	Occurrences int
	Confidence  int
	Type        types.PatternType
}

// Detector accumulates CorrectionRecords and emits DetectedPatterns once a correction
// shape repeats at least 3 times (§4.6). One Detector per process, as the spec
// describes; it is not safe for concurrent use, so callers must serialize access.
type Detector struct {
	history []CorrectionRecord
	pending map[string]DetectedPattern // trigger|meaning -> pattern
}

// NewDetector returns an empty Detector.
func NewDetector() *Detector {
	return &Detector{pending: map[string]DetectedPattern{}}
}

// Observe records a new correction and runs the detection algorithm over history,
// returning the newly detected pattern (if the similar-set just crossed the threshold)
// and ok=true.
func (d *Detector) Observe(original, corrected, context string, entityType types.PatternType, at time.Time) (DetectedPattern, bool) {
	rec := CorrectionRecord{Original: original, Corrected: corrected, Context: context, EntityType: entityType, Timestamp: at}
	d.history = append(d.history, rec)

	similarSet := d.similarTo(rec)
	if len(similarSet) < 3 {
		return DetectedPattern{}, false
	}

	trigger := mode(originalsOf(similarSet))
	meaning := mode(correctedsOf(similarSet))
	key := normalize(trigger) + "|" + normalize(meaning)
	if _, exists := d.pending[key]; exists {
		return DetectedPattern{}, false
	}

	allAgree := true
	for _, r := range similarSet {
		if normalize(r.Corrected) != normalize(meaning) {
			allAgree = false
			break
		}
	}

	confidence := 50 + 10*(len(similarSet)-3)
	if allAgree {
		confidence += 10
	}
	if confidence > 100 {
		confidence = 100
	}

	detected := DetectedPattern{
		Trigger:     trigger,
		Meaning:     meaning,
		Occurrences: len(similarSet),
		Confidence:  confidence,
		Type:        inferType(similarSet),
	}
	d.pending[key] = detected
	return detected, true
}

func (d *Detector) similarTo(target CorrectionRecord) []CorrectionRecord {
	var out []CorrectionRecord
	for _, r := range d.history {
		if similar(r.Original, r.Corrected, target.Original, target.Corrected) {
			out = append(out, r)
		}
	}
	return out
}

// BulkAnalyse re-runs the detection algorithm over the full history, grouped by
// normalized original then normalized corrected (§4.6's bulk path, used to seed patterns
// from historical log data rather than only live corrections).
func (d *Detector) BulkAnalyse() []DetectedPattern {
	groups := map[string][]CorrectionRecord{}
	for _, r := range d.history {
		key := normalize(r.Original) + "|" + normalize(r.Corrected)
		groups[key] = append(groups[key], r)
	}

	var out []DetectedPattern
	for _, group := range groups {
		if len(group) < 3 {
			continue
		}
		trigger := mode(originalsOf(group))
		meaning := mode(correctedsOf(group))
		allAgree := true
		for _, r := range group {
			if normalize(r.Corrected) != normalize(meaning) {
				allAgree = false
				break
			}
		}
		confidence := 50 + 10*(len(group)-3)
		if allAgree {
			confidence += 10
		}
		if confidence > 100 {
			confidence = 100
		}
		out = append(out, DetectedPattern{
			Trigger: trigger, Meaning: meaning, Occurrences: len(group),
			Confidence: confidence, Type: inferType(group),
		})
	}
	return out
}

func originalsOf(recs []CorrectionRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Original
	}
	return out
}

func correctedsOf(recs []CorrectionRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Corrected
	}
	return out
}

func inferType(recs []CorrectionRecord) types.PatternType {
	counts := map[types.PatternType]int{}
	for _, r := range recs {
		counts[r.EntityType]++
	}
	best := types.PatternTypeName
	bestCount := -1
	for t, c := range counts {
		if c > bestCount {
			best, bestCount = t, c
		}
	}
	return best
}

// Persist stores pattern via kb.Gateway as given; it does not check Occurrences itself.
// Patterns returned by Observe/BulkAnalyse already meet the "occurrences >= 3" threshold
// (§4.6).
func Persist(ctx context.Context, gw kb.Gateway, p DetectedPattern) (types.Pattern, error) {
	return gw.CreatePattern(ctx, types.Pattern{
		Trigger:        p.Trigger,
		Meaning:        p.Meaning,
		Confidence:     p.Confidence,
		TimesConfirmed: p.Occurrences,
		Type:           p.Type,
		LastUsed:       time.Now().UTC(),
	})
}
