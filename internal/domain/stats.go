package domain

import "github.com/google/uuid"

// TripStatistics is the per-trip completion summary computed at trip end.
// TotalChildren == CheckedIn + len(MissedChildren) always holds.
type TripStatistics struct {
	TotalChildren  int         `json:"total_children"`
	CheckedIn      int         `json:"checked_in_children"`
	MissedChildren []uuid.UUID `json:"missed_children"`
}

// CalculateStatistics derives the completion counts and the missed-child set
// from a trip's expected children and its check-in sequence. Pure function:
// no I/O, no side effects. Order of MissedChildren follows childrenIDs order.
func CalculateStatistics(childrenIDs, checkedIn []uuid.UUID) TripStatistics {
	seen := make(map[uuid.UUID]struct{}, len(checkedIn))
	for _, id := range checkedIn {
		seen[id] = struct{}{}
	}

	missed := make([]uuid.UUID, 0)
	for _, id := range childrenIDs {
		if _, ok := seen[id]; !ok {
			missed = append(missed, id)
		}
	}

	return TripStatistics{
		TotalChildren:  len(childrenIDs),
		CheckedIn:      len(checkedIn),
		MissedChildren: missed,
	}
}
