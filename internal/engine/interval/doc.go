// Package interval provides an interval-indexed store for objects anchored to
// half-open ranges of line coordinates.
//
// The central type is [Tree], a treap keyed by (start, id) whose nodes carry
// subtree summaries (maximum end, minimum end, size). The summaries let the
// tree answer overlap queries and locate ended intervals without visiting
// every entry.
//
// # Coordinates
//
// Coordinates are line indexes relative to the current buffer origin. When
// the oldest lines of a buffer are trimmed, every coordinate moves down by
// the trimmed amount. The tree stores coordinates relative to an internal
// origin so that renumbering is a constant-time adjustment:
//
//	tree := interval.NewTree[string]()
//	_ = tree.Insert(1, interval.New(10, 11), "prompt")
//
//	// Drop the first 5 lines: entries ending at or before line 5 are
//	// evicted, the rest move down by 5.
//	evicted, _ := tree.Shift(5, 5)
//
// # Ordering
//
// Every query that returns more than one entry returns them ascending by
// start, ties broken by id. Nearest-neighbour queries walk the same order.
//
// # Thread Safety
//
// Tree is not safe for concurrent use. Callers serialise access.
package interval
