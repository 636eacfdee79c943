package entities

import (
	"context"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// PeopleService is the People-domain instance of the generic lookup-or-create shape
// (§4.4).
type PeopleService struct {
	gw kb.Gateway
}

// NewPeopleService builds a PeopleService bound to gw.
func NewPeopleService(gw kb.Gateway) *PeopleService { return &PeopleService{gw: gw} }

// Lookup scores every non-deleted person against query.
func (s *PeopleService) Lookup(ctx context.Context, query string) (LookupResult, error) {
	people, err := s.gw.QueryPeople(ctx, kb.PersonFilter{})
	if err != nil {
		return LookupResult{}, err
	}
	candidates := make([]Candidate, 0, len(people))
	for _, p := range people {
		rank := types.RelationshipPriority[p.Relationship]
		candidates = append(candidates, Candidate{
			ID: p.ID, PrimaryName: p.Name, Aliases: p.Aliases,
			PriorityRank: rank, IsTopPriority: rank == 0,
			Recency: recencyOf(p.LastModifiedAt),
		})
	}
	return Lookup(query, candidates), nil
}

// LookupOrCreate looks query up; on miss, creates a new Person with relationship
// defaulting to acquaintance (the lowest-priority, safest default per §4.4).
func (s *PeopleService) LookupOrCreate(ctx context.Context, name string) (personID string, isNew bool, err error) {
	result, err := s.Lookup(ctx, name)
	if err != nil {
		return "", false, err
	}
	if result.Found && !result.NeedsDisambiguation {
		return result.BestID, false, nil
	}
	if result.Found && result.NeedsDisambiguation {
		return result.BestID, false, nil
	}
	p, err := s.gw.CreatePerson(ctx, types.Person{Name: name, Relationship: types.RelationshipAcquaintance})
	if err != nil {
		return "", false, err
	}
	return p.ID, true, nil
}

// PlacesService is the Places-domain instance, plus the maps-enrichment path (§4.4).
type PlacesService struct {
	gw      kb.Gateway
	enricher MapsEnricher
	cache   EnrichmentCache
}

// MapsEnricher is the out-of-scope maps client boundary (§6): given a free-text query,
// return geocoding + contact fields for the best match.
type MapsEnricher interface {
	Geocode(ctx context.Context, query string) (EnrichedPlace, error)
}

// EnrichedPlace is what a maps lookup returns.
type EnrichedPlace struct {
	Geo             types.Geo
	Address         string
	ExternalPlaceID string
}

// EnrichmentCache records which place ids have already been enriched, so re-enrichment
// stays at-most-once per record even across restarts (§4.4).
type EnrichmentCache interface {
	WasEnriched(placeID string) (bool, error)
	MarkEnriched(placeID string) error
}

// NewPlacesService builds a PlacesService. enricher/cache may be nil if maps enrichment
// is not configured; with a nil enricher, Enrich returns the place unchanged and a nil error.
func NewPlacesService(gw kb.Gateway, enricher MapsEnricher, cache EnrichmentCache) *PlacesService {
	return &PlacesService{gw: gw, enricher: enricher, cache: cache}
}

// Lookup scores every non-deleted place against query, optionally filtered by type.
func (s *PlacesService) Lookup(ctx context.Context, query string, placeType types.PlaceType) (LookupResult, error) {
	places, err := s.gw.QueryPlaces(ctx, kb.PlaceFilter{Type: placeType})
	if err != nil {
		return LookupResult{}, err
	}
	candidates := make([]Candidate, 0, len(places))
	for _, p := range places {
		rank := types.PlaceTypePriority[p.Type]
		candidates = append(candidates, Candidate{
			ID: p.ID, PrimaryName: p.Name, Address: p.Address,
			PriorityRank: rank, IsTopPriority: rank == 0,
			Recency: recencyOf(p.LastModifiedAt),
		})
	}
	return Lookup(query, candidates), nil
}

// LookupOrCreate looks query up; on miss, creates a new Place of the given type.
func (s *PlacesService) LookupOrCreate(ctx context.Context, name string, placeType types.PlaceType) (placeID string, isNew bool, err error) {
	if placeType == "" {
		placeType = types.PlaceTypeOther
	}
	result, err := s.Lookup(ctx, name, "")
	if err != nil {
		return "", false, err
	}
	if result.Found {
		return result.BestID, false, nil
	}
	p, err := s.gw.CreatePlace(ctx, types.Place{Name: name, Type: placeType})
	if err != nil {
		return "", false, err
	}
	return p.ID, true, nil
}

// Enrich geocodes placeID at most once (§4.4): already-enriched records are skipped.
func (s *PlacesService) Enrich(ctx context.Context, place types.Place) (types.Place, error) {
	if place.Enriched() {
		return place, nil
	}
	if s.cache != nil {
		done, err := s.cache.WasEnriched(place.ID)
		if err != nil {
			return place, err
		}
		if done {
			return place, nil
		}
	}
	if s.enricher == nil {
		return place, nil
	}
	enriched, err := s.enricher.Geocode(ctx, place.Address)
	if err != nil {
		return place, err
	}
	fields := map[string]any{"geo": &enriched.Geo}
	if enriched.Address != "" {
		fields["address"] = enriched.Address
	}
	updated, err := s.gw.UpdatePlaceFields(ctx, place.ID, fields)
	if err != nil {
		return place, err
	}
	if s.cache != nil {
		_ = s.cache.MarkEnriched(place.ID)
	}
	return updated, nil
}

// ProjectsService is the Projects-domain instance.
type ProjectsService struct {
	gw kb.Gateway
}

// NewProjectsService builds a ProjectsService bound to gw.
func NewProjectsService(gw kb.Gateway) *ProjectsService { return &ProjectsService{gw: gw} }

// Lookup scores every non-deleted project against query.
func (s *ProjectsService) Lookup(ctx context.Context, query string) (LookupResult, error) {
	projects, err := s.gw.QueryProjects(ctx, kb.ProjectFilter{})
	if err != nil {
		return LookupResult{}, err
	}
	candidates := make([]Candidate, 0, len(projects))
	for _, p := range projects {
		rank := types.ProjectStatusPriority[p.Status]
		candidates = append(candidates, Candidate{
			ID: p.ID, PrimaryName: p.Name,
			PriorityRank: rank, IsTopPriority: rank == 0,
			Recency: recencyOf(p.LastModifiedAt),
		})
	}
	return Lookup(query, candidates), nil
}

// LookupOrCreate looks query up; on miss, creates a new Project.
func (s *ProjectsService) LookupOrCreate(ctx context.Context, name string, projectType types.ProjectType) (projectID string, isNew bool, err error) {
	if projectType == "" {
		projectType = types.ProjectTypePersonal
	}
	result, err := s.Lookup(ctx, name)
	if err != nil {
		return "", false, err
	}
	if result.Found {
		return result.BestID, false, nil
	}
	p, err := s.gw.CreateProject(ctx, types.Project{Name: name, Type: projectType, Status: types.ProjectStatusActive})
	if err != nil {
		return "", false, err
	}
	return p.ID, true, nil
}

func recencyOf(t interface{ Unix() int64 }) int64 {
	return t.Unix()
}
