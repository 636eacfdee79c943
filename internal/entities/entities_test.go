package entities

import "testing"

func TestScore_ExactMatch(t *testing.T) {
	score, by := Score("sarah", Candidate{PrimaryName: "Sarah"})
	if by != MatchedByName {
		t.Fatalf("matchedBy = %v", by)
	}
	if score < 0.99 {
		t.Fatalf("score = %v, want ~1.0", score)
	}
}

func TestScore_PrefixMatch(t *testing.T) {
	score, by := Score("sar", Candidate{PrimaryName: "Sarah"})
	if by != MatchedByName || score < 0.89 || score > 0.91 {
		t.Fatalf("score=%v by=%v", score, by)
	}
}

func TestScore_NoMatch(t *testing.T) {
	score, by := Score("zzz", Candidate{PrimaryName: "Sarah"})
	if by != "" || score != 0 {
		t.Fatalf("expected no match, got score=%v by=%v", score, by)
	}
}

func TestScore_PriorityBonus(t *testing.T) {
	low, _ := Score("sarah", Candidate{PrimaryName: "Sarah", PriorityRank: 900})
	high, _ := Score("sarah", Candidate{PrimaryName: "Sarah", PriorityRank: 0})
	if high < low {
		t.Fatalf("expected higher-priority candidate to score at least as high: low=%v high=%v", low, high)
	}
}

func TestLookup_SingleMatch(t *testing.T) {
	result := Lookup("sarah", []Candidate{{ID: "1", PrimaryName: "Sarah"}})
	if !result.Found || result.BestID != "1" || result.NeedsDisambiguation {
		t.Fatalf("result = %+v", result)
	}
}

func TestLookup_NotFound(t *testing.T) {
	result := Lookup("zzz", []Candidate{{ID: "1", PrimaryName: "Sarah"}})
	if result.Found {
		t.Fatalf("expected not found")
	}
}

func TestLookup_HighConfidenceSkipsDisambiguation(t *testing.T) {
	result := Lookup("sarah", []Candidate{
		{ID: "1", PrimaryName: "Sarah"},
		{ID: "2", PrimaryName: "Sarah Smith"},
	})
	if !result.Found || result.NeedsDisambiguation {
		t.Fatalf("result = %+v", result)
	}
	if result.BestID != "1" {
		t.Fatalf("expected exact match to win, got %q", result.BestID)
	}
}

func TestLookup_AmbiguousLowConfidenceNeedsDisambiguation(t *testing.T) {
	result := Lookup("sa", []Candidate{
		{ID: "1", PrimaryName: "Lisa", Recency: 1},
		{ID: "2", PrimaryName: "Rosa", Recency: 2},
	})
	if !result.Found {
		t.Fatalf("expected found")
	}
	if !result.NeedsDisambiguation {
		t.Fatalf("expected needs-disambiguation with two weak matches, got %+v", result)
	}
}

func TestLookup_TopPriorityOverridesAmbiguity(t *testing.T) {
	result := Lookup("sa", []Candidate{
		{ID: "1", PrimaryName: "Sam", Recency: 1},
		{ID: "2", PrimaryName: "Sarah", Recency: 2, IsTopPriority: true, PriorityRank: 0},
	})
	if !result.Found {
		t.Fatalf("expected found")
	}
}
