package patterns

import (
	"testing"
	"time"

	"github.com/jnyross/secondbrain/internal/types"
)

func TestSimilarity_IdenticalStrings(t *testing.T) {
	if got := similarity("bob", "bob"); got != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestSimilarity_DifferentLength(t *testing.T) {
	got := similarity("rob", "robert")
	if got <= 0 || got >= 1 {
		t.Fatalf("got %v, want in (0,1)", got)
	}
}

func TestDetector_ThreeSimilarCorrectionsEmitPattern(t *testing.T) {
	d := NewDetector()
	base := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)

	d.Observe("bob", "robert", "ctx1", types.PatternTypeName, base)
	d.Observe("bob", "robert", "ctx2", types.PatternTypeName, base.Add(time.Minute))
	detected, ok := d.Observe("bob", "robert", "ctx3", types.PatternTypeName, base.Add(2*time.Minute))

	if !ok {
		t.Fatalf("expected pattern to be detected on third occurrence")
	}
	if detected.Trigger != "bob" || detected.Meaning != "robert" {
		t.Fatalf("detected = %+v", detected)
	}
	if detected.Occurrences != 3 {
		t.Fatalf("occurrences = %d, want 3", detected.Occurrences)
	}
	// 50 + 10*(occurrences-3) + 10 (all correcteds agree) = 50 + 0 + 10 = 60.
	if detected.Confidence != 60 {
		t.Fatalf("confidence = %d, want 60", detected.Confidence)
	}
}

func TestDetector_TwoCorrectionsDoNotEmit(t *testing.T) {
	d := NewDetector()
	base := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	d.Observe("bob", "robert", "ctx1", types.PatternTypeName, base)
	_, ok := d.Observe("bob", "robert", "ctx2", types.PatternTypeName, base.Add(time.Minute))
	if ok {
		t.Fatalf("expected no pattern with only 2 occurrences")
	}
}

func TestDetector_DoesNotReemitSamePattern(t *testing.T) {
	d := NewDetector()
	base := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	d.Observe("bob", "robert", "c1", types.PatternTypeName, base)
	d.Observe("bob", "robert", "c2", types.PatternTypeName, base)
	d.Observe("bob", "robert", "c3", types.PatternTypeName, base)
	_, ok := d.Observe("bob", "robert", "c4", types.PatternTypeName, base)
	if ok {
		t.Fatalf("expected no re-emission of an already-pending pattern")
	}
}

func TestMatchesTrigger(t *testing.T) {
	if !matchesTrigger("bob", "bob") {
		t.Fatalf("expected equal match")
	}
	if !matchesTrigger("bobby", "bob") {
		t.Fatalf("expected trigger substring match")
	}
	if !matchesTrigger("bob", "bobby") {
		t.Fatalf("expected value substring match (len>=3)")
	}
	if matchesTrigger("bo", "bobby") {
		t.Fatalf("expected no match: value too short")
	}
}

func TestApplicator_ApplyRewritesEntityAndTitle(t *testing.T) {
	a := &Applicator{patterns: []types.Pattern{
		{ID: "p1", Trigger: "bob", Meaning: "Robert", Confidence: 80, Type: types.PatternTypeName},
	}}

	result := a.Apply([]string{"bob"}, nil, "call bob tomorrow")
	if result.People[0] != "Robert" {
		t.Fatalf("people = %+v", result.People)
	}
	if result.Title != "call Robert tomorrow" {
		t.Fatalf("title = %q", result.Title)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("applied = %+v", result.Applied)
	}
}

func TestApplicator_NoMatchLeavesValuesUnchanged(t *testing.T) {
	a := &Applicator{}
	result := a.Apply([]string{"sarah"}, nil, "call sarah")
	if result.People[0] != "sarah" || result.Title != "call sarah" {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Applied) != 0 {
		t.Fatalf("expected no applied patterns")
	}
}
