package messages

import (
	"github.com/aeolun/afternoon/pkg/api"
)

// Entry is one row of the thread view: a message and its reply depth
type Entry struct {
	Message api.Message
	Indent  int
}

// ThreadNode is a message and the replies to it, oldest first.
// Nodes are rebuilt from the message set and never edited in place.
type ThreadNode struct {
	Message  api.Message
	Children []*ThreadNode
}

// BuildThreadTree arranges messages into reply trees.
//
// Roots are messages without a reply reference, or whose target is not among
// msgs. Roots and siblings are in timestamp order. Each id appears once: a
// branch that revisits an id is cut, and messages that only hang off a reply
// cycle (including self replies) become roots where the cycle is first met.
func BuildThreadTree(msgs []api.Message) []*ThreadNode {
	sorted := SortByTimestamp(msgs)

	present := make(map[string]struct{}, len(sorted))
	for _, msg := range sorted {
		present[msg.ID] = struct{}{}
	}

	// Build a map of parent id -> children, in timestamp order
	children := make(map[string][]int)
	var roots []int
	for i, msg := range sorted {
		parent := msg.ReplyTo()
		if _, ok := present[parent]; parent == "" || !ok {
			roots = append(roots, i)
			continue
		}
		children[parent] = append(children[parent], i)
	}

	visited := make(map[string]struct{}, len(sorted))

	// Depth-first traversal from a message, skipping ids already emitted
	var build func(i int) *ThreadNode
	build = func(i int) *ThreadNode {
		msg := sorted[i]
		if _, seen := visited[msg.ID]; seen {
			return nil
		}
		visited[msg.ID] = struct{}{}

		node := &ThreadNode{Message: msg}
		for _, child := range children[msg.ID] {
			if n := build(child); n != nil {
				node.Children = append(node.Children, n)
			}
		}
		return node
	}

	var trees []*ThreadNode
	for _, i := range roots {
		if n := build(i); n != nil {
			trees = append(trees, n)
		}
	}

	// Whatever is left is only reachable through a reply cycle
	for i := range sorted {
		if n := build(i); n != nil {
			trees = append(trees, n)
		}
	}

	return trees
}

// BuildThreadView flattens the reply trees into display rows:
// depth-first, pre-order, roots at indent 0.
func BuildThreadView(msgs []api.Message) []Entry {
	trees := BuildThreadTree(msgs)

	entries := make([]Entry, 0, len(msgs))
	var walk func(n *ThreadNode, indent int)
	walk = func(n *ThreadNode, indent int) {
		entries = append(entries, Entry{Message: n.Message, Indent: indent})
		for _, child := range n.Children {
			walk(child, indent+1)
		}
	}
	for _, root := range trees {
		walk(root, 0)
	}
	return entries
}
