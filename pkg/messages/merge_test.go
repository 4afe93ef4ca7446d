package messages

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/aeolun/afternoon/pkg/api"
)

// msg builds a message whose timestamp sorts in id order for small ids
func msg(id int, replyTo ...int) api.Message {
	m := api.Message{
		ID:        fmt.Sprint(id),
		Content:   fmt.Sprintf("message %d", id),
		Timestamp: fmt.Sprintf("2024-01-01T00:%02d:%02d.000000+00:00", id/60, id%60),
	}
	if len(replyTo) > 0 {
		m.MessageReference = &api.MessageReference{MessageID: fmt.Sprint(replyTo[0])}
	}
	return m
}

func ids(msgs []api.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestMergePrependsOriginatingPostOnEmptySet(t *testing.T) {
	op := msg(1)
	got := Merge(nil, []api.Message{msg(3), msg(2)}, &op)

	assert.Equal(t, []string{"1", "3", "2"}, ids(got))
}

func TestMergeAppendsOriginatingPostOnNonEmptySet(t *testing.T) {
	op := msg(1)
	existing := []api.Message{msg(5), msg(6)}

	got := Merge(existing, []api.Message{msg(7)}, &op)

	assert.Equal(t, []string{"5", "6", "1", "7"}, ids(got))
	assert.Equal(t, []string{"5", "6"}, ids(existing), "input must not be modified")
}

func TestMergeOriginatingPostAlreadyFetched(t *testing.T) {
	op := msg(1)
	got := Merge(nil, []api.Message{msg(2), msg(1)}, &op)

	assert.Equal(t, []string{"2", "1"}, ids(got))
}

func TestMergeSkipsKnownAndRepeatedIDs(t *testing.T) {
	existing := []api.Message{msg(1), msg(2)}
	fetched := []api.Message{msg(2), msg(3), msg(3), msg(4)}

	got := Merge(existing, fetched, nil)

	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(got))
}

func TestAppendExcludesOriginatingPost(t *testing.T) {
	existing := []api.Message{msg(2)}
	fetched := []api.Message{msg(1), msg(3)}

	got := Append(existing, fetched, "1")

	assert.Equal(t, []string{"2", "3"}, ids(got))
}

func TestSortByTimestampIsStable(t *testing.T) {
	a := api.Message{ID: "a", Timestamp: "2024-01-01T00:00:01Z"}
	b := api.Message{ID: "b", Timestamp: "2024-01-01T00:00:00Z"}
	c := api.Message{ID: "c", Timestamp: "2024-01-01T00:00:01Z"}

	in := []api.Message{a, b, c}
	got := SortByTimestamp(in)

	assert.Equal(t, []string{"b", "a", "c"}, ids(got))
	assert.Equal(t, []string{"a", "b", "c"}, ids(in))
}

func TestRecentRanks(t *testing.T) {
	msgs := []api.Message{msg(4), msg(1), msg(7), msg(3), msg(9), msg(2), msg(8)}

	ranks := RecentRanks(msgs, 5)

	assert.Equal(t, map[string]int{"9": 0, "8": 1, "7": 2, "4": 3, "3": 4}, ranks)
	assert.Empty(t, RecentRanks(msgs, 0))
	assert.Len(t, RecentRanks(msgs[:2], 5), 2)
}

// drawPage draws a page of messages with ids from a small range so that
// pages overlap with each other
func drawPage(t *rapid.T, label string) []api.Message {
	idList := rapid.SliceOfN(rapid.IntRange(1, 40), 0, 15).Draw(t, label)
	page := make([]api.Message, len(idList))
	for i, id := range idList {
		page[i] = msg(id)
	}
	return page
}

// TestRepeatedAppendNeverDuplicatesOrLoses checks the accumulate invariant
// across a sequence of overlapping pages
func TestRepeatedAppendNeverDuplicatesOrLoses(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var acc []api.Message
		pages := rapid.IntRange(1, 8).Draw(t, "pages")

		for p := 0; p < pages; p++ {
			before := make(map[string]bool, len(acc))
			for _, m := range acc {
				before[m.ID] = true
			}

			page := drawPage(t, fmt.Sprintf("page%d", p))
			acc = SortByTimestamp(Append(acc, page))

			seen := make(map[string]bool, len(acc))
			for _, m := range acc {
				if seen[m.ID] {
					t.Fatalf("duplicate id %s after page %d", m.ID, p)
				}
				seen[m.ID] = true
			}
			for id := range before {
				if !seen[id] {
					t.Fatalf("id %s lost after page %d", id, p)
				}
			}
			for _, m := range page {
				if !seen[m.ID] {
					t.Fatalf("fetched id %s missing after page %d", m.ID, p)
				}
			}
		}
	})
}

// TestMergeKeepsExistingPrefix checks that a merge never reorders or drops
// what was accumulated before it
func TestMergeKeepsExistingPrefix(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		existing := Append(nil, drawPage(t, "existing"))
		fetched := drawPage(t, "fetched")

		var op *api.Message
		if rapid.Bool().Draw(t, "withOP") {
			m := msg(rapid.IntRange(1, 40).Draw(t, "op"))
			op = &m
		}

		got := Merge(existing, fetched, op)

		for i, m := range existing {
			if got[i].ID != m.ID {
				t.Fatalf("position %d changed: got %s want %s", i, got[i].ID, m.ID)
			}
		}
		if op != nil && len(existing) == 0 && !containsID(fetched, op.ID) {
			if got[0].ID != op.ID {
				t.Fatalf("originating post not first: %v", ids(got))
			}
		}
	})
}
