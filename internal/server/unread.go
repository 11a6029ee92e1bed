package server

import "time"

// UnreadState is one counterpart's unread tally plus the time it was last
// updated.
type UnreadState struct {
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MergeUnreadCounts reconciles two unread tallies keyed by counterpart id,
// typically one derived from the durable store and one tracked from live
// notifications. For a counterpart present in both, the entry with the
// more recent UpdatedAt wins; on an exact tie the first argument's entry
// is kept.
func MergeUnreadCounts(a, b map[int]UnreadState) map[int]UnreadState {
	merged := make(map[int]UnreadState, len(a)+len(b))
	for counterpart, state := range a {
		merged[counterpart] = state
	}

	for counterpart, state := range b {
		if cur, ok := merged[counterpart]; ok && !state.UpdatedAt.After(cur.UpdatedAt) {
			continue
		}
		merged[counterpart] = state
	}

	return merged
}
