// Package messages accumulates the messages of one channel and rebuilds the
// indented reply tree shown for a thread.
package messages

import (
	"sort"

	"github.com/aeolun/afternoon/pkg/api"
)

// Merge combines an initial page with the accumulated messages.
//
// The result starts with existing, unchanged. Fetched messages follow when
// their id is not yet known, in fetched order, each id at most once.
// When op (the originating post) is neither accumulated nor in fetched, it is
// placed first if nothing was accumulated yet, or right after existing
// otherwise. The inputs are never modified.
func Merge(existing, fetched []api.Message, op *api.Message) []api.Message {
	known := make(map[string]struct{}, len(existing)+len(fetched)+1)
	for _, msg := range existing {
		known[msg.ID] = struct{}{}
	}

	result := make([]api.Message, 0, len(existing)+len(fetched)+1)

	if op != nil && !containsID(existing, op.ID) && !containsID(fetched, op.ID) {
		if len(existing) == 0 {
			result = append(result, *op)
		} else {
			result = append(result, existing...)
			result = append(result, *op)
		}
		known[op.ID] = struct{}{}
	} else {
		result = append(result, existing...)
	}

	return appendUnique(result, fetched, known)
}

// Append adds the fetched messages whose id is neither accumulated nor in
// exclude. Existing messages are kept in place.
func Append(existing, fetched []api.Message, exclude ...string) []api.Message {
	known := make(map[string]struct{}, len(existing)+len(exclude))
	for _, msg := range existing {
		known[msg.ID] = struct{}{}
	}
	for _, id := range exclude {
		if id != "" {
			known[id] = struct{}{}
		}
	}

	result := make([]api.Message, 0, len(existing)+len(fetched))
	result = append(result, existing...)
	return appendUnique(result, fetched, known)
}

// appendUnique appends every message of fetched whose id is not in known,
// recording the ids it appends
func appendUnique(dst, fetched []api.Message, known map[string]struct{}) []api.Message {
	for _, msg := range fetched {
		if _, ok := known[msg.ID]; ok {
			continue
		}
		known[msg.ID] = struct{}{}
		dst = append(dst, msg)
	}
	return dst
}

func containsID(msgs []api.Message, id string) bool {
	for _, msg := range msgs {
		if msg.ID == id {
			return true
		}
	}
	return false
}

// SortByTimestamp returns a copy ordered ascending by timestamp.
// Timestamps are ISO-8601 in one format, so a string compare is enough.
// Equal timestamps keep their relative order.
func SortByTimestamp(msgs []api.Message) []api.Message {
	sorted := make([]api.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}

// RecentRanks ranks the n most recent messages, 0 being the newest.
// Messages outside the top n are absent from the map.
func RecentRanks(msgs []api.Message, n int) map[string]int {
	ranks := make(map[string]int, n)
	if n <= 0 {
		return ranks
	}

	sorted := SortByTimestamp(msgs)
	for i := len(sorted) - 1; i >= 0 && len(ranks) < n; i-- {
		id := sorted[i].ID
		if _, ok := ranks[id]; ok {
			continue
		}
		ranks[id] = len(ranks)
	}
	return ranks
}
