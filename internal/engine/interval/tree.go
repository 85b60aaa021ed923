package interval

import (
	"fmt"
	"math"
)

// ID identifies an entry in a Tree. IDs are chosen by the caller.
type ID uint64

// Entry is a read-only copy of a tree entry.
type Entry[T any] struct {
	ID       ID
	Interval Interval
	Value    T
}

// node is a treap node. start and end are stored relative to the tree origin.
type node[T any] struct {
	id       ID
	start    int64
	end      int64
	value    T
	priority uint64

	left  *node[T]
	right *node[T]

	// Subtree summaries
	maxEnd int64
	minEnd int64
	size   int
}

// update recomputes the subtree summaries from the children.
func (n *node[T]) update() {
	n.size = 1
	n.maxEnd = n.end
	n.minEnd = n.end
	if l := n.left; l != nil {
		n.size += l.size
		n.maxEnd = max(n.maxEnd, l.maxEnd)
		n.minEnd = min(n.minEnd, l.minEnd)
	}
	if r := n.right; r != nil {
		n.size += r.size
		n.maxEnd = max(n.maxEnd, r.maxEnd)
		n.minEnd = min(n.minEnd, r.minEnd)
	}
}

// keyLess orders nodes by (start, id).
func keyLess(start int64, id ID, otherStart int64, otherID ID) bool {
	if start != otherStart {
		return start < otherStart
	}
	return id < otherID
}

// priorityFor derives a deterministic heap priority from an id (splitmix64).
func priorityFor(id ID) uint64 {
	z := uint64(id) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Tree is an interval-indexed store of values keyed by caller-chosen ids.
// The zero value is not usable; create trees with NewTree.
type Tree[T any] struct {
	root  *node[T]
	index map[ID]*node[T]

	// origin is added to public coordinates to obtain stored coordinates.
	origin int64
}

// NewTree creates an empty tree.
func NewTree[T any]() *Tree[T] {
	return &Tree[T]{
		index: make(map[ID]*node[T]),
	}
}

// Len returns the number of entries.
func (t *Tree[T]) Len() int {
	if t.root == nil {
		return 0
	}
	return t.root.size
}

// Clear removes all entries. The coordinate origin is kept.
func (t *Tree[T]) Clear() {
	t.root = nil
	t.index = make(map[ID]*node[T])
}

// Insert adds an entry anchored at iv.
// It fails with ErrInvalidInterval if iv is malformed and ErrDuplicateID if
// id is already present. The tree is unchanged on failure.
func (t *Tree[T]) Insert(id ID, iv Interval, value T) error {
	if !iv.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, iv)
	}
	if _, exists := t.index[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	n := &node[T]{
		id:       id,
		start:    iv.Start + t.origin,
		end:      iv.End + t.origin,
		value:    value,
		priority: priorityFor(id),
	}
	n.update()
	t.root = insertNode(t.root, n)
	t.index[id] = n
	return nil
}

// Remove deletes the entry with the given id and returns it.
// Returns false if no such entry exists.
func (t *Tree[T]) Remove(id ID) (Entry[T], bool) {
	n, ok := t.index[id]
	if !ok {
		return Entry[T]{}, false
	}
	e := t.entry(n)
	t.root = removeNode(t.root, n.start, n.id)
	delete(t.index, id)
	return e, true
}

// Get returns the entry with the given id.
func (t *Tree[T]) Get(id ID) (Entry[T], bool) {
	n, ok := t.index[id]
	if !ok {
		return Entry[T]{}, false
	}
	return t.entry(n), true
}

// Contains reports whether id is present.
func (t *Tree[T]) Contains(id ID) bool {
	_, ok := t.index[id]
	return ok
}

// Overlap returns every entry whose interval intersects r, ascending by
// start with ties broken by id.
func (t *Tree[T]) Overlap(r Interval) ([]Entry[T], error) {
	if r.Start > r.End {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, r)
	}

	lo := t.stored(r.Start)
	hi := t.stored(r.End)

	var result []Entry[T]
	var walk func(n *node[T])
	walk = func(n *node[T]) {
		if n == nil || n.maxEnd <= lo {
			return
		}
		walk(n.left)
		if n.start >= hi {
			// This node and its right subtree start at or after hi
			return
		}
		if n.end > lo {
			result = append(result, t.entry(n))
		}
		walk(n.right)
	}
	walk(t.root)

	return result, nil
}

// Nearest returns the closest entry relative to pos.
//
// Before selects the entry with the greatest start <= pos (ties: greatest id).
// After selects the entry with the smallest start >= pos (ties: smallest id).
// If accept is non-nil, entries it rejects are skipped and the search
// continues outward. Returns false if no entry qualifies.
func (t *Tree[T]) Nearest(pos int64, dir Direction, accept func(Entry[T]) bool) (Entry[T], bool) {
	var found Entry[T]
	var ok bool

	visit := func(e Entry[T]) bool {
		if accept != nil && !accept(e) {
			return true
		}
		found, ok = e, true
		return false
	}

	switch dir {
	case Before:
		t.DescendFrom(pos, visit)
	case After:
		t.AscendFrom(pos, visit)
	}

	return found, ok
}

// Ascend calls fn for every entry in ascending order until fn returns false.
func (t *Tree[T]) Ascend(fn func(Entry[T]) bool) {
	var walk func(n *node[T]) bool
	walk = func(n *node[T]) bool {
		if n == nil {
			return true
		}
		if !walk(n.left) {
			return false
		}
		if !fn(t.entry(n)) {
			return false
		}
		return walk(n.right)
	}
	walk(t.root)
}

// Descend calls fn for every entry in descending order until fn returns false.
func (t *Tree[T]) Descend(fn func(Entry[T]) bool) {
	var walk func(n *node[T]) bool
	walk = func(n *node[T]) bool {
		if n == nil {
			return true
		}
		if !walk(n.right) {
			return false
		}
		if !fn(t.entry(n)) {
			return false
		}
		return walk(n.left)
	}
	walk(t.root)
}

// AscendFrom calls fn, in ascending order, for every entry whose start is
// >= pos, until fn returns false.
func (t *Tree[T]) AscendFrom(pos int64, fn func(Entry[T]) bool) {
	from := t.stored(pos)

	var walk func(n *node[T]) bool
	walk = func(n *node[T]) bool {
		if n == nil {
			return true
		}
		if n.start < from {
			return walk(n.right)
		}
		if !walk(n.left) {
			return false
		}
		if !fn(t.entry(n)) {
			return false
		}
		return walk(n.right)
	}
	walk(t.root)
}

// DescendFrom calls fn, in descending order, for every entry whose start is
// <= pos, until fn returns false.
func (t *Tree[T]) DescendFrom(pos int64, fn func(Entry[T]) bool) {
	from := t.stored(pos)

	var walk func(n *node[T]) bool
	walk = func(n *node[T]) bool {
		if n == nil {
			return true
		}
		if n.start > from {
			return walk(n.left)
		}
		if !walk(n.right) {
			return false
		}
		if !fn(t.entry(n)) {
			return false
		}
		return walk(n.left)
	}
	walk(t.root)
}

// Shift evicts every entry whose end is <= below, then moves every remaining
// coordinate down by delta. Entries that straddle the new origin keep their
// end and are re-anchored at start 0.
//
// Shift fails with ErrInvalidInterval, leaving the tree untouched, when
// below or delta is negative or delta > below (which would push surviving
// ends to or below zero). Evicted entries are returned in ascending order
// with their pre-shift coordinates.
func (t *Tree[T]) Shift(below, delta int64) ([]Entry[T], error) {
	if below < 0 || delta < 0 || delta > below {
		return nil, fmt.Errorf("%w: shift below %d by %d", ErrInvalidInterval, below, delta)
	}

	limit := t.stored(below)

	var ended []*node[T]
	var collect func(n *node[T])
	collect = func(n *node[T]) {
		if n == nil || n.minEnd > limit {
			return
		}
		collect(n.left)
		if n.end <= limit {
			ended = append(ended, n)
		}
		collect(n.right)
	}
	collect(t.root)

	evicted := make([]Entry[T], 0, len(ended))
	for _, n := range ended {
		evicted = append(evicted, t.entry(n))
		t.root = removeNode(t.root, n.start, n.id)
		delete(t.index, n.id)
	}

	t.origin += delta

	// Entries that began before the new origin but end after it.
	var straddling []*node[T]
	var scan func(n *node[T]) bool
	scan = func(n *node[T]) bool {
		if n == nil {
			return true
		}
		if !scan(n.left) {
			return false
		}
		if n.start >= t.origin {
			return false
		}
		straddling = append(straddling, n)
		return scan(n.right)
	}
	scan(t.root)

	for _, n := range straddling {
		t.root = removeNode(t.root, n.start, n.id)
		n.start = t.origin
		n.left, n.right = nil, nil
		n.update()
		t.root = insertNode(t.root, n)
	}

	return evicted, nil
}

// entry converts a node into a public Entry.
func (t *Tree[T]) entry(n *node[T]) Entry[T] {
	return Entry[T]{
		ID:       n.id,
		Interval: Interval{Start: n.start - t.origin, End: n.end - t.origin},
		Value:    n.value,
	}
}

// stored converts a public coordinate to a stored one, saturating at the
// int64 bounds.
func (t *Tree[T]) stored(pos int64) int64 {
	if pos > 0 && t.origin > math.MaxInt64-pos {
		return math.MaxInt64
	}
	if pos < 0 && t.origin < math.MinInt64-pos {
		return math.MinInt64
	}
	return pos + t.origin
}

// insertNode inserts x into the subtree rooted at n and returns the new root.
func insertNode[T any](n, x *node[T]) *node[T] {
	if n == nil {
		return x
	}
	if keyLess(x.start, x.id, n.start, n.id) {
		n.left = insertNode(n.left, x)
		if n.left.priority > n.priority {
			n = rotateRight(n)
		}
	} else {
		n.right = insertNode(n.right, x)
		if n.right.priority > n.priority {
			n = rotateLeft(n)
		}
	}
	n.update()
	return n
}

// removeNode removes the node keyed (start, id) and returns the new root.
func removeNode[T any](n *node[T], start int64, id ID) *node[T] {
	if n == nil {
		return nil
	}
	if n.id == id {
		return mergeNodes(n.left, n.right)
	}
	if keyLess(start, id, n.start, n.id) {
		n.left = removeNode(n.left, start, id)
	} else {
		n.right = removeNode(n.right, start, id)
	}
	n.update()
	return n
}

// mergeNodes joins two treaps where every key in a precedes every key in b.
func mergeNodes[T any](a, b *node[T]) *node[T] {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.priority > b.priority {
		a.right = mergeNodes(a.right, b)
		a.update()
		return a
	}
	b.left = mergeNodes(a, b.left)
	b.update()
	return b
}

func rotateRight[T any](n *node[T]) *node[T] {
	l := n.left
	n.left = l.right
	n.update()
	l.right = n
	l.update()
	return l
}

func rotateLeft[T any](n *node[T]) *node[T] {
	r := n.right
	n.right = r.left
	n.update()
	r.left = n
	r.update()
	return r
}
