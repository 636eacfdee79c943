package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jnyross/secondbrain/internal/kb"
	"github.com/jnyross/secondbrain/internal/types"
)

// bufferMinutes and checkWindowHours mirror original_source's schedule_conflict.py
// constants (BUFFER_MINUTES, CONFLICT_CHECK_WINDOW_HOURS): a restored feature not named
// in the distilled spec.
const (
	bufferMinutes    = 15
	checkWindowHours = 24
	skipAboveMinutes = 240
)

// TravelTimer is the out-of-scope maps collaborator (§6); shared shape with
// internal/processor.MapsClient but scoped to this package to keep C12 independent of
// C11's port.
type TravelTimer interface {
	TravelTimeMinutes(ctx context.Context, originAddress, destinationAddress string) (int, bool, error)
}

// Conflict is one detected unrealistic-schedule warning (§4.12 supplement, grounded on
// original_source's ScheduleConflict).
type Conflict struct {
	ExistingTaskID    string
	ExistingTaskTitle string
	ExistingTime      time.Time
	TravelMinutes     int
	AvailableMinutes  int
	RequiredDeparture time.Time
}

// Impossible reports whether the required travel exceeds the time actually available.
func (c Conflict) Impossible() bool { return c.TravelMinutes > c.AvailableMinutes }

// Warning renders the human-readable message for this conflict.
func (c Conflict) Warning() string {
	if c.Impossible() {
		return fmt.Sprintf("Travel time ~%s - schedule conflict detected. You have %q at %s.",
			formatDuration(c.TravelMinutes), c.ExistingTaskTitle, c.ExistingTime.Format("3:04pm"))
	}
	buffer := c.AvailableMinutes - c.TravelMinutes
	return fmt.Sprintf("Tight schedule: ~%s travel time, only %d min buffer before %q.",
		formatDuration(c.TravelMinutes), buffer, c.ExistingTaskTitle)
}

func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours, remaining := minutes/60, minutes%60
	if remaining == 0 {
		return fmt.Sprintf("%d hr", hours)
	}
	return fmt.Sprintf("%d hr %d min", hours, remaining)
}

// ConflictDetector flags tasks whose due time and place can't realistically be reached
// given travel time to/from a nearby existing task (§4.12 supplement).
type ConflictDetector struct {
	gw    kb.Gateway
	timer TravelTimer
}

// NewConflictDetector builds a ConflictDetector. timer may be nil, in which case Check
// always returns no conflicts (travel time is unknowable).
func NewConflictDetector(gw kb.Gateway, timer TravelTimer) *ConflictDetector {
	return &ConflictDetector{gw: gw, timer: timer}
}

// Check looks for existing open tasks within a 24h window of newTime whose place differs
// from newLocation, and flags a Conflict wherever required travel time doesn't fit in the
// gap between the two.
func (d *ConflictDetector) Check(ctx context.Context, newLocation string, newTime time.Time) ([]Conflict, error) {
	if d.timer == nil || newLocation == "" {
		return nil, nil
	}

	windowStart := newTime.Add(-checkWindowHours * time.Hour)
	windowEnd := newTime.Add(checkWindowHours * time.Hour)
	existing, err := d.gw.QueryTasks(ctx, kb.TaskFilter{
		DueAfter: &windowStart, DueBefore: &windowEnd,
		ExcludeStatus: []types.TaskStatus{types.TaskStatusDone, types.TaskStatusCancelled, types.TaskStatusDeleted},
	})
	if err != nil {
		return nil, err
	}

	places, err := d.gw.QueryPlaces(ctx, kb.PlaceFilter{})
	if err != nil {
		return nil, err
	}
	placeByID := make(map[string]types.Place, len(places))
	for _, p := range places {
		placeByID[p.ID] = p
	}

	var conflicts []Conflict
	for _, t := range existing {
		if t.DueAt == nil || len(t.Relations.PlaceIDs) == 0 {
			continue
		}
		place, ok := placeByID[t.Relations.PlaceIDs[0]]
		if !ok || place.Address == "" {
			continue
		}
		if locationsMatch(newLocation, place.Address) {
			continue
		}

		conflict, err := d.checkSingle(ctx, newLocation, newTime, t, place)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}
	return conflicts, nil
}

func (d *ConflictDetector) checkSingle(ctx context.Context, newLocation string, newTime time.Time, existing types.Task, existingPlace types.Place) (*Conflict, error) {
	existingStart := *existing.DueAt
	existingEnd := existingStart.Add(time.Hour)

	var availableMinutes int
	var origin, destination string
	var departBasis time.Time

	switch {
	case newTime.Before(existingStart):
		assumedNewEnd := newTime.Add(time.Hour)
		availableMinutes = int(existingStart.Sub(assumedNewEnd).Minutes())
		origin, destination = newLocation, existingPlace.Address
		departBasis = existingStart
	case !newTime.Before(existingEnd):
		availableMinutes = int(newTime.Sub(existingEnd).Minutes())
		origin, destination = existingPlace.Address, newLocation
		departBasis = newTime
	default:
		// Overlap: a direct time conflict, not a travel one.
		return &Conflict{
			ExistingTaskID: existing.ID, ExistingTaskTitle: existing.Title, ExistingTime: existingStart,
			TravelMinutes: 0, AvailableMinutes: 0, RequiredDeparture: newTime,
		}, nil
	}

	if availableMinutes > skipAboveMinutes {
		return nil, nil
	}

	minutes, ok, err := d.timer.TravelTimeMinutes(ctx, origin, destination)
	if err != nil || !ok {
		return nil, nil
	}
	total := minutes + bufferMinutes
	if total <= availableMinutes {
		return nil, nil
	}

	return &Conflict{
		ExistingTaskID: existing.ID, ExistingTaskTitle: existing.Title, ExistingTime: existingStart,
		TravelMinutes: total, AvailableMinutes: availableMinutes,
		RequiredDeparture: departBasis.Add(-time.Duration(total) * time.Minute),
	}, nil
}

func locationsMatch(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
