package relations

import (
	"context"
	"testing"

	"github.com/jnyross/secondbrain/internal/entities"
	"github.com/jnyross/secondbrain/internal/extractor"
	"github.com/jnyross/secondbrain/internal/kb"
)

func TestLink_CreatesMissingPersonAndPlace(t *testing.T) {
	gw := kb.NewMemory()
	linker := New(entities.NewPeopleService(gw), entities.NewPlacesService(gw, nil, nil), entities.NewProjectsService(gw))

	extracted := extractor.Result{
		People: []extractor.Person{{Name: "Sarah", Confidence: 90}},
		Places: []extractor.Place{{Name: "Blue Bottle", Confidence: 80}},
	}

	linked, err := linker.Link(context.Background(), extracted, "", true)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if len(linked.People) != 1 || !linked.People[0].IsNew {
		t.Fatalf("people = %+v", linked.People)
	}
	if len(linked.Places) != 1 || !linked.Places[0].IsNew {
		t.Fatalf("places = %+v", linked.Places)
	}
	if linked.NewCount != 2 {
		t.Fatalf("newCount = %d, want 2", linked.NewCount)
	}
}

func TestLink_NoCreateMissingSkipsUnresolved(t *testing.T) {
	gw := kb.NewMemory()
	linker := New(entities.NewPeopleService(gw), entities.NewPlacesService(gw, nil, nil), entities.NewProjectsService(gw))

	extracted := extractor.Result{People: []extractor.Person{{Name: "Nobody", Confidence: 60}}}
	linked, err := linker.Link(context.Background(), extracted, "", false)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if len(linked.People) != 0 {
		t.Fatalf("expected no people linked, got %+v", linked.People)
	}
}

func TestLink_ReusesExistingPerson(t *testing.T) {
	gw := kb.NewMemory()
	linker := New(entities.NewPeopleService(gw), entities.NewPlacesService(gw, nil, nil), entities.NewProjectsService(gw))
	ctx := context.Background()

	first, err := linker.Link(ctx, extractor.Result{People: []extractor.Person{{Name: "Sarah", Confidence: 90}}}, "", true)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	firstID := first.People[0].ID

	second, err := linker.Link(ctx, extractor.Result{People: []extractor.Person{{Name: "Sarah", Confidence: 90}}}, "", true)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if second.People[0].ID != firstID {
		t.Fatalf("expected same id reused, got %q vs %q", second.People[0].ID, firstID)
	}
	if second.People[0].IsNew {
		t.Fatalf("expected reused match to not be marked new")
	}
}
