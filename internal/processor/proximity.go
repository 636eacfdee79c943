package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jnyross/secondbrain/internal/geo"
	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// MapsClient is the out-of-scope collaborator (§6) that resolves a free-text location to
// coordinates and, optionally, a travel time between two points.
type MapsClient interface {
	Geocode(ctx context.Context, query string) (geo.Point, error)
	TravelTime(ctx context.Context, from, to geo.Point) (time.Duration, bool, error)
}

// ProximityService answers "what can I do near <place>?" queries (§4.11 step 4) by
// ranking open tasks whose linked place falls within a radius of the resolved location.
// Grounded on original_source's services/proximity.py (geocode query, Haversine-filter
// open tasks, sort by distance), reusing internal/geo for the distance math.
type ProximityService struct {
	gw          kb.Gateway
	maps        MapsClient
	maxRadiusKm float64
}

// NewProximityService builds a ProximityService. maxRadiusKm<=0 defaults to 5km (§4.11).
func NewProximityService(gw kb.Gateway, maps MapsClient, maxRadiusKm float64) *ProximityService {
	if maxRadiusKm <= 0 {
		maxRadiusKm = 5
	}
	return &ProximityService{gw: gw, maps: maps, maxRadiusKm: maxRadiusKm}
}

type candidate struct {
	task       types.Task
	place      types.Place
	distanceKm float64
	travelTime time.Duration
	hasTravel  bool
}

// Query resolves locationQuery and returns a bulleted list of nearby open tasks sorted by
// distance, closest first.
func (s *ProximityService) Query(ctx context.Context, locationQuery string) (string, error) {
	origin, err := s.maps.Geocode(ctx, locationQuery)
	if err != nil {
		return "", err
	}

	tasks, err := s.gw.QueryTasks(ctx, kb.TaskFilter{
		ExcludeStatus: []types.TaskStatus{types.TaskStatusDone, types.TaskStatusCancelled},
	})
	if err != nil {
		return "", err
	}

	places, err := s.gw.QueryPlaces(ctx, kb.PlaceFilter{})
	if err != nil {
		return "", err
	}
	placeByID := make(map[string]types.Place, len(places))
	for _, p := range places {
		placeByID[p.ID] = p
	}

	var candidates []candidate
	for _, t := range tasks {
		if len(t.Relations.PlaceIDs) == 0 {
			continue
		}
		place, ok := placeByID[t.Relations.PlaceIDs[0]]
		if !ok || place.Geo == nil {
			continue
		}
		d := geo.HaversineKm(origin, geo.Point{Lat: place.Geo.Lat, Lng: place.Geo.Lng})
		if d > s.maxRadiusKm {
			continue
		}
		c := candidate{task: t, place: place, distanceKm: d}
		if s.maps != nil {
			if dur, ok, err := s.maps.TravelTime(ctx, origin, geo.Point{Lat: place.Geo.Lat, Lng: place.Geo.Lng}); err == nil && ok {
				c.travelTime, c.hasTravel = dur, true
			}
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distanceKm < candidates[j].distanceKm })

	if len(candidates) == 0 {
		return "Nothing nearby.", nil
	}

	var b strings.Builder
	b.WriteString("Nearby:\n")
	for _, c := range candidates {
		b.WriteString(fmt.Sprintf("• %s at %s (%.1fkm", c.task.Title, c.place.Name, c.distanceKm))
		if c.hasTravel {
			b.WriteString(fmt.Sprintf(", %s", c.travelTime.Round(time.Minute)))
		}
		b.WriteString(")\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
