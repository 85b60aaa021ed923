package mark

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/gobwas/glob"

	"github.com/dshills/termmark/internal/engine/interval"
)

// MarksInRange returns the marks whose anchors intersect r, ascending by
// anchor start with ties broken by id. With visibleOnly set, captured-output
// marks are left out.
func (r *Registry) MarksInRange(rng interval.Interval, visibleOnly bool) ([]View, error) {
	entries, err := r.tree.Overlap(rng)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(entries))
	for _, e := range entries {
		if visibleOnly && !e.Value.Visible() {
			continue
		}
		if v, ok := r.view(e); ok {
			views = append(views, v)
		}
	}
	return views, nil
}

// NearestMark returns the mark closest to pos in the given direction.
// Before picks the greatest anchor start <= pos, After the smallest anchor
// start >= pos. Returns false when no mark qualifies.
func (r *Registry) NearestMark(pos int64, dir interval.Direction, visibleOnly bool) (View, bool) {
	var accept func(interval.Entry[Kind]) bool
	if visibleOnly {
		accept = func(e interval.Entry[Kind]) bool {
			return e.Value.Visible()
		}
	}

	e, ok := r.tree.Nearest(pos, dir, accept)
	if !ok {
		return View{}, false
	}
	return r.view(e)
}

// MarksForSession returns every mark owned by sessionID in position order.
func (r *Registry) MarksForSession(sessionID int) []View {
	var views []View
	r.tree.Ascend(func(e interval.Entry[Kind]) bool {
		rec, ok := r.arena.get(ID(e.ID))
		if ok && rec.sessionID == sessionID {
			views = append(views, newView(rec, e.Interval))
		}
		return true
	})
	return views
}

// LastCommandMark returns the command mark of sessionID with the greatest
// anchor start.
func (r *Registry) LastCommandMark(sessionID int) (View, bool) {
	e, ok := r.tree.Nearest(math.MaxInt64, interval.Before, func(e interval.Entry[Kind]) bool {
		if e.Value != KindCommand {
			return false
		}
		rec, ok := r.arena.get(ID(e.ID))
		return ok && rec.sessionID == sessionID
	})
	if !ok {
		return View{}, false
	}
	return r.view(e)
}

// Marks returns every mark in position order.
func (r *Registry) Marks(visibleOnly bool) []View {
	views := make([]View, 0, r.tree.Len())
	r.tree.Ascend(func(e interval.Entry[Kind]) bool {
		if visibleOnly && !e.Value.Visible() {
			return true
		}
		if v, ok := r.view(e); ok {
			views = append(views, v)
		}
		return true
	})
	return views
}

// CommandsBetween returns the command marks whose start date lies in
// [from, to), in start-date order with ties broken by id. A zero to means
// no upper bound.
func (r *Registry) CommandsBetween(from, to time.Time) []View {
	var views []View
	r.tree.Ascend(func(e interval.Entry[Kind]) bool {
		if e.Value != KindCommand {
			return true
		}
		rec, ok := r.arena.get(ID(e.ID))
		if !ok {
			return true
		}
		start := rec.cmd.startDate
		if start.Before(from) || (!to.IsZero() && !start.Before(to)) {
			return true
		}
		views = append(views, newView(rec, e.Interval))
		return true
	})

	slices.SortStableFunc(views, func(a, b View) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return views
}

// CommandsMatching returns the command marks whose command text matches a
// glob pattern (for example "git *"), in position order.
func (r *Registry) CommandsMatching(pattern string) ([]View, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}

	var views []View
	r.tree.Ascend(func(e interval.Entry[Kind]) bool {
		if e.Value != KindCommand {
			return true
		}
		rec, ok := r.arena.get(ID(e.ID))
		if ok && g.Match(rec.cmd.text) {
			views = append(views, newView(rec, e.Interval))
		}
		return true
	})
	return views, nil
}
