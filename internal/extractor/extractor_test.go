package extractor

import "testing"

func TestExtract_WithProperIsHighestPrecedence(t *testing.T) {
	res := Extract("Lunch with Sarah tomorrow at Dino's")
	if len(res.People) == 0 || res.People[0].Name != "Sarah" {
		t.Fatalf("people = %+v", res.People)
	}
	if res.People[0].Confidence != 90 {
		t.Fatalf("confidence = %d, want 90", res.People[0].Confidence)
	}
}

func TestExtract_ActionVerbBeforeName(t *testing.T) {
	res := Extract("call Marcus about the invoice")
	found := false
	for _, p := range res.People {
		if p.Name == "Marcus" && p.Confidence == 85 {
			found = true
		}
	}
	if !found {
		t.Fatalf("people = %+v", res.People)
	}
}

func TestExtract_PlacePreposition(t *testing.T) {
	res := Extract("meet at Blue Bottle Coffee at 9am")
	if len(res.Places) == 0 {
		t.Fatalf("expected a place match, got %+v", res.Places)
	}
}

func TestExtract_DeduplicatesNames(t *testing.T) {
	res := Extract("call Marcus then call Marcus again")
	count := 0
	for _, p := range res.People {
		if p.Name == "Marcus" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected Marcus once, got %d", count)
	}
}

func TestExtract_StopwordsAreNotPeople(t *testing.T) {
	res := Extract("See you Monday morning")
	for _, p := range res.People {
		if p.Name == "Monday" || p.Name == "Morning" {
			t.Fatalf("stopword leaked into people: %+v", res.People)
		}
	}
}

func TestExtract_DateFragments(t *testing.T) {
	res := Extract("call mom tomorrow at 3pm")
	if len(res.Dates) == 0 {
		t.Fatalf("expected date fragments, got none")
	}
}
