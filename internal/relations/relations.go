// Package relations implements the Relation Linker (§4.5): pure orchestration over
// internal/entities that turns extracted entity names into a bundle of linked ids. It
// performs no extraction and no persistence beyond what internal/entities' lookup/create
// calls do.
package relations

import (
	"context"

	"github.com/jnyross/secondbrain/internal/entities"
	"github.com/jnyross/secondbrain/internal/extractor"
	"github.com/jnyross/secondbrain/internal/types"
)

// LinkedEntity is one resolved relation member (§4.5).
type LinkedEntity struct {
	ID                  string
	Type                string // "person" | "place" | "project"
	Name                string
	CombinedConfidence  float64 // extraction-confidence * match-confidence
	IsNew               bool
	NeedsDisambiguation bool
}

// LinkedRelations bundles every entity resolved for one message (§4.5).
type LinkedRelations struct {
	People      []LinkedEntity
	Places      []LinkedEntity
	Project     *LinkedEntity
	NeedsReview bool
	NewCount    int
}

// Linker resolves extracted entity names against the People/Places/Projects services.
type Linker struct {
	people   *entities.PeopleService
	places   *entities.PlacesService
	projects *entities.ProjectsService
}

// New builds a Linker bound to the three entity services.
func New(people *entities.PeopleService, places *entities.PlacesService, projects *entities.ProjectsService) *Linker {
	return &Linker{people: people, places: places, projects: projects}
}

// Link resolves extracted people/places and an optional project name, creating missing
// records when createMissing is true (§4.5).
func (l *Linker) Link(ctx context.Context, extracted extractor.Result, projectName string, createMissing bool) (LinkedRelations, error) {
	var out LinkedRelations

	for _, p := range extracted.People {
		entity, err := l.linkPerson(ctx, p, createMissing)
		if err != nil {
			return LinkedRelations{}, err
		}
		if entity == nil {
			continue
		}
		out.People = append(out.People, *entity)
		if entity.IsNew {
			out.NewCount++
		}
		if entity.NeedsDisambiguation {
			out.NeedsReview = true
		}
	}

	for _, p := range extracted.Places {
		entity, err := l.linkPlace(ctx, p, createMissing)
		if err != nil {
			return LinkedRelations{}, err
		}
		if entity == nil {
			continue
		}
		out.Places = append(out.Places, *entity)
		if entity.IsNew {
			out.NewCount++
		}
		if entity.NeedsDisambiguation {
			out.NeedsReview = true
		}
	}

	if projectName != "" && l.projects != nil {
		entity, err := l.linkProject(ctx, projectName, createMissing)
		if err != nil {
			return LinkedRelations{}, err
		}
		if entity != nil {
			out.Project = entity
			if entity.IsNew {
				out.NewCount++
			}
			if entity.NeedsDisambiguation {
				out.NeedsReview = true
			}
		}
	}

	return out, nil
}

func (l *Linker) linkPerson(ctx context.Context, p extractor.Person, createMissing bool) (*LinkedEntity, error) {
	if l.people == nil {
		return nil, nil
	}
	result, err := l.people.Lookup(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if result.Found {
		matchConf := confidenceOf(result)
		return &LinkedEntity{
			ID: result.BestID, Type: "person", Name: p.Name,
			CombinedConfidence: combinedConfidence(p.Confidence, matchConf),
			NeedsDisambiguation: result.NeedsDisambiguation,
		}, nil
	}
	if !createMissing {
		return nil, nil
	}
	id, isNew, err := l.people.LookupOrCreate(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	return &LinkedEntity{ID: id, Type: "person", Name: p.Name, CombinedConfidence: combinedConfidence(p.Confidence, 1.0), IsNew: isNew}, nil
}

func (l *Linker) linkPlace(ctx context.Context, p extractor.Place, createMissing bool) (*LinkedEntity, error) {
	if l.places == nil {
		return nil, nil
	}
	result, err := l.places.Lookup(ctx, p.Name, "")
	if err != nil {
		return nil, err
	}
	if result.Found {
		matchConf := confidenceOf(result)
		return &LinkedEntity{
			ID: result.BestID, Type: "place", Name: p.Name,
			CombinedConfidence: combinedConfidence(p.Confidence, matchConf),
			NeedsDisambiguation: result.NeedsDisambiguation,
		}, nil
	}
	if !createMissing {
		return nil, nil
	}
	id, isNew, err := l.places.LookupOrCreate(ctx, p.Name, types.PlaceTypeOther)
	if err != nil {
		return nil, err
	}
	return &LinkedEntity{ID: id, Type: "place", Name: p.Name, CombinedConfidence: combinedConfidence(p.Confidence, 1.0), IsNew: isNew}, nil
}

func (l *Linker) linkProject(ctx context.Context, name string, createMissing bool) (*LinkedEntity, error) {
	result, err := l.projects.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if result.Found {
		matchConf := confidenceOf(result)
		return &LinkedEntity{
			ID: result.BestID, Type: "project", Name: name,
			CombinedConfidence: matchConf,
			NeedsDisambiguation: result.NeedsDisambiguation,
		}, nil
	}
	if !createMissing {
		return nil, nil
	}
	id, isNew, err := l.projects.LookupOrCreate(ctx, name, "")
	if err != nil {
		return nil, err
	}
	return &LinkedEntity{ID: id, Type: "project", Name: name, CombinedConfidence: 1.0, IsNew: isNew}, nil
}

func confidenceOf(r entities.LookupResult) float64 {
	if len(r.Matches) == 0 {
		return 0
	}
	for _, m := range r.Matches {
		if m.ID == r.BestID {
			return m.Confidence
		}
	}
	return r.Matches[0].Confidence
}

// combinedConfidence multiplies extraction confidence (0-100) by match confidence
// (0.0-1.0), per §4.5.
func combinedConfidence(extractionConfidence int, matchConfidence float64) float64 {
	return (float64(extractionConfidence) / 100.0) * matchConfidence
}
