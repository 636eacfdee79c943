// Package recent implements the per-chat ring buffers backing the correction/undo
// handlers (§3 RecentAction/DeletedAction, §4.7/§4.8): bounded in memory by both age and
// capacity, pruned on every access. Grounded on the teacher's bounded in-memory
// bookkeeping in internal/concurrency/dedup.go, generalized from a dedupe-key set to an
// ordered, capacity-and-age-pruned action history.
package recent

import (
	"sync"
	"time"

	"github.com/jnyross/secondbrain/internal/types"
)

// ActionRing is a per-chat LIFO ring buffer of RecentAction, capped at maxSize entries
// and maxAge age (§3: "≤10, ≤30 min" for corrections).
type ActionRing struct {
	mu      sync.Mutex
	maxSize int
	maxAge  time.Duration
	byChat  map[string][]types.RecentAction
}

// NewActionRing builds a ring with the given capacity and age bounds.
func NewActionRing(maxSize int, maxAge time.Duration) *ActionRing {
	return &ActionRing{maxSize: maxSize, maxAge: maxAge, byChat: map[string][]types.RecentAction{}}
}

// Track appends an action to chatID's ring, pruning by age and capacity.
func (r *ActionRing) Track(chatID string, action types.RecentAction, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.prune(r.byChat[chatID], now)
	list = append(list, action)
	if len(list) > r.maxSize {
		list = list[len(list)-r.maxSize:]
	}
	r.byChat[chatID] = list
}

// Last returns the most recent non-expired action for chatID.
func (r *ActionRing) Last(chatID string, now time.Time) (types.RecentAction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.prune(r.byChat[chatID], now)
	r.byChat[chatID] = list
	if len(list) == 0 {
		return types.RecentAction{}, false
	}
	return list[len(list)-1], true
}

// PopLast removes and returns the most recent non-expired action for chatID.
func (r *ActionRing) PopLast(chatID string, now time.Time) (types.RecentAction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.prune(r.byChat[chatID], now)
	if len(list) == 0 {
		r.byChat[chatID] = list
		return types.RecentAction{}, false
	}
	last := list[len(list)-1]
	r.byChat[chatID] = list[:len(list)-1]
	return last, true
}

// UpdateLastTitle rewrites the title of the most recent action, used after a correction
// updates an entity's display name (§4.7).
func (r *ActionRing) UpdateLastTitle(chatID, title string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.prune(r.byChat[chatID], now)
	if len(list) > 0 {
		list[len(list)-1].Title = title
	}
	r.byChat[chatID] = list
}

func (r *ActionRing) prune(list []types.RecentAction, now time.Time) []types.RecentAction {
	cutoff := now.Add(-r.maxAge)
	out := list[:0:0]
	for _, a := range list {
		if a.Timestamp.After(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// DeletedRing is a per-chat ring of DeletedAction, capped at maxSize entries and pruned
// by a separate, much longer age window (§3: "≤50" entries, 30-day undo window).
type DeletedRing struct {
	mu      sync.Mutex
	maxSize int
	maxAge  time.Duration
	byChat  map[string][]types.DeletedAction
}

// NewDeletedRing builds a ring with the given capacity and age bounds.
func NewDeletedRing(maxSize int, maxAge time.Duration) *DeletedRing {
	return &DeletedRing{maxSize: maxSize, maxAge: maxAge, byChat: map[string][]types.DeletedAction{}}
}

// Track appends a deletion to chatID's ring, capacity-pruning only (age-based expiry
// happens lazily in PopLastUndoable/PendingDeletes, per §4.8: "may still be restored by
// id" after age expiry).
func (r *DeletedRing) Track(chatID string, action types.DeletedAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.byChat[chatID], action)
	if len(list) > r.maxSize {
		list = list[len(list)-r.maxSize:]
	}
	r.byChat[chatID] = list
}

// PopLastUndoable removes and returns the newest non-expired deletion for chatID.
func (r *DeletedRing) PopLastUndoable(chatID string, now time.Time) (types.DeletedAction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byChat[chatID]
	for i := len(list) - 1; i >= 0; i-- {
		if now.Sub(list[i].DeletedAt) <= r.maxAge {
			action := list[i]
			r.byChat[chatID] = append(list[:i:i], list[i+1:]...)
			return action, true
		}
	}
	return types.DeletedAction{}, false
}

// PendingDeletes returns all non-expired deletions for chatID, newest first.
func (r *DeletedRing) PendingDeletes(chatID string, now time.Time) []types.DeletedAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byChat[chatID]
	out := make([]types.DeletedAction, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if now.Sub(list[i].DeletedAt) <= r.maxAge {
			out = append(out, list[i])
		}
	}
	return out
}

// Remove deletes the entry matching entityID from chatID's ring, used after
// RestoreByID so the ring doesn't still offer an already-restored entry for undo.
func (r *DeletedRing) Remove(chatID, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byChat[chatID]
	out := list[:0:0]
	for _, a := range list {
		if a.EntityID != entityID {
			out = append(out, a)
		}
	}
	r.byChat[chatID] = out
}
