package store

import (
	"sort"

	"threadcast/pkg/models"
)

// assignUniqueTimes gives every event in the batch a collision-free time.
// Events without a requested time get now. Candidates are then visited in
// ascending requested order and, while any two share a time, the later one
// is nudged forward by one millisecond. Quadratic in the batch size, which
// is always small; a requested [5, 5, 5] becomes [5, 6, 7].
//
// Caller-specified times keep their relative order whenever they did not
// collide. The input slice keeps its order; only Time fields change.
func assignUniqueTimes(events []models.ThreadEvent, now int64) {
	for i := range events {
		if events[i].Time == 0 {
			events[i].Time = now
		}
	}
	// Sorted view biases nudges toward later-requested events.
	view := make([]*models.ThreadEvent, len(events))
	for i := range events {
		view[i] = &events[i]
	}
	sort.SliceStable(view, func(i, j int) bool { return view[i].Time < view[j].Time })

	for {
		dup := findTimeDuplicate(view)
		if dup == nil {
			return
		}
		dup.Time++
	}
}

// findTimeDuplicate returns the later member of the first pair of events
// sharing a time, or nil when all times are distinct.
func findTimeDuplicate(events []*models.ThreadEvent) *models.ThreadEvent {
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if events[j].Time == events[i].Time {
				return events[j]
			}
		}
	}
	return nil
}
