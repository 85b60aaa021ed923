package mark

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/dshills/termmark/internal/engine/interval"
	"github.com/dshills/termmark/internal/logging"
)

// Registry owns every mark of a buffer and keeps their anchors consistent
// with the buffer as it grows and is trimmed.
type Registry struct {
	tree  *interval.Tree[Kind]
	arena arena

	lines   int64 // Lines currently in the buffer, as reported by the owner
	trimmed int64 // Lines trimmed since creation

	now       func() time.Time
	logger    pslog.Logger
	onEvict   func(View)
	maxOutput int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tree:   interval.NewTree[Kind](),
		now:    time.Now,
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Len returns the number of live marks.
func (r *Registry) Len() int {
	return r.arena.len()
}

// LineCount returns the buffer length last reported through the buffer hooks.
func (r *Registry) LineCount() int64 {
	return r.lines
}

// TotalTrimmed returns the number of lines trimmed since the registry was
// created. Adding it to a coordinate yields an absolute line number.
func (r *Registry) TotalTrimmed() int64 {
	return r.trimmed
}

// SetMaxCapturedOutput changes the per-command cap on captured output
// records for future appends. Zero or less removes the cap.
func (r *Registry) SetMaxCapturedOutput(n int) {
	r.maxOutput = max(n, 0)
}

// OnLinesAppended records that count lines were added to the buffer.
// Anchors are unaffected.
func (r *Registry) OnLinesAppended(count uint) {
	r.lines += int64(count)
}

// OnLinesTrimmed records that the oldest count lines were removed.
func (r *Registry) OnLinesTrimmed(count uint) {
	r.Trim(count)
}

// Trim evicts every mark whose anchor ends at or before line count, shifts
// the remaining anchors down by count and returns the evicted marks.
// Command marks take their captured output with them.
func (r *Registry) Trim(count uint) []View {
	if count == 0 {
		return nil
	}
	n := int64(count)

	evicted, err := r.tree.Shift(n, n)
	if err != nil {
		// Unreachable: below == delta >= 0 always forms a valid shift.
		r.logger.Error("trim rejected", "count", n, "err", err)
		return nil
	}

	r.trimmed += n
	r.lines = max(r.lines-n, 0)

	if len(evicted) == 0 {
		return nil
	}

	views := make([]View, 0, len(evicted))
	for _, e := range evicted {
		id := ID(e.ID)
		rec, ok := r.arena.get(id)
		if !ok {
			continue
		}
		v := newView(rec, e.Interval)
		r.arena.release(id)
		views = append(views, v)
		if r.onEvict != nil {
			r.onEvict(v)
		}
	}

	r.logger.Debug("marks evicted", "count", len(views), "trimmed", n, "live", r.arena.len())
	return views
}

// CreateCommandMark registers a visible command mark anchored at anchor.
// The start date is taken from the registry clock.
func (r *Registry) CreateCommandMark(anchor interval.Interval, sessionID int) (ID, error) {
	return r.create(KindCommand, anchor, sessionID)
}

// CreateCapturedOutputMark registers an invisible mark anchoring a piece of
// captured output.
func (r *Registry) CreateCapturedOutputMark(anchor interval.Interval) (ID, error) {
	return r.create(KindCapturedOutput, anchor, 0)
}

func (r *Registry) create(kind Kind, anchor interval.Interval, sessionID int) (ID, error) {
	if !anchor.IsValid() {
		r.logger.Warn("mark rejected", "kind", kind.String(), "anchor", anchor.String())
		return 0, fmt.Errorf("%w: %s", ErrInvalidInterval, anchor)
	}

	id, rec := r.arena.alloc()
	rec.guid = uuid.NewString()
	rec.kind = kind
	rec.sessionID = sessionID
	if kind == KindCommand {
		rec.cmd = &command{
			code:      CodeUnknown,
			startDate: r.now(),
		}
	}

	if err := r.tree.Insert(interval.ID(id), anchor, kind); err != nil {
		r.arena.release(id)
		return 0, err
	}

	r.logger.Debug("mark created", "id", id.String(), "kind", kind.String(), "anchor", anchor.String(), "session", sessionID)
	return id, nil
}

// FinishCommandMark records the exit code and end date of a command.
// A zero end date means now. Finishing twice fails with ErrAlreadyFinished
// and an end date before the start date fails with ErrEndBeforeStart; the
// mark is unchanged in both cases.
func (r *Registry) FinishCommandMark(id ID, code int, endDate time.Time) error {
	rec, err := r.command(id)
	if err != nil {
		return err
	}
	c := rec.cmd
	if !c.endDate.IsZero() {
		return fmt.Errorf("%w: %s", ErrAlreadyFinished, id)
	}
	if endDate.IsZero() {
		endDate = r.now()
	}
	if endDate.Before(c.startDate) {
		return fmt.Errorf("%w: %s ends %s, started %s", ErrEndBeforeStart, id,
			endDate.Format(time.RFC3339Nano), c.startDate.Format(time.RFC3339Nano))
	}

	c.code = code
	c.endDate = endDate
	r.logger.Debug("command finished", "id", id.String(), "code", code)
	return nil
}

// SetCommand sets the command text of a command mark.
func (r *Registry) SetCommand(id ID, text string) error {
	rec, err := r.command(id)
	if err != nil {
		return err
	}
	rec.cmd.text = text
	return nil
}

// AddCapturedOutput appends a captured output record to a command mark.
// The mark's anchor is not affected.
func (r *Registry) AddCapturedOutput(id ID, output CapturedOutput) error {
	rec, err := r.command(id)
	if err != nil {
		return err
	}
	c := rec.cmd
	if r.maxOutput > 0 && len(c.output) >= r.maxOutput {
		drop := len(c.output) - r.maxOutput + 1
		c.output = append(c.output[:0], c.output[drop:]...)
	}
	c.output = append(c.output, output.clone())
	return nil
}

// Remove deletes a mark. Removing a command mark discards its captured output.
func (r *Registry) Remove(id ID) error {
	if _, ok := r.arena.get(id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.tree.Remove(interval.ID(id))
	r.arena.release(id)
	r.logger.Debug("mark removed", "id", id.String())
	return nil
}

// Clear removes every mark. Line counters are kept.
func (r *Registry) Clear() {
	r.tree.Ascend(func(e interval.Entry[Kind]) bool {
		r.arena.release(ID(e.ID))
		return true
	})
	r.tree.Clear()
}

// Mark returns a snapshot of the mark with the given id.
func (r *Registry) Mark(id ID) (View, bool) {
	rec, ok := r.arena.get(id)
	if !ok {
		return View{}, false
	}
	e, ok := r.tree.Get(interval.ID(id))
	if !ok {
		return View{}, false
	}
	return newView(rec, e.Interval), true
}

// command returns the record for id, checking it is a live command mark.
func (r *Registry) command(id ID) (*record, error) {
	rec, ok := r.arena.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.kind != KindCommand {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongKind, id, rec.kind)
	}
	return rec, nil
}

// view converts a tree entry into a snapshot.
func (r *Registry) view(e interval.Entry[Kind]) (View, bool) {
	rec, ok := r.arena.get(ID(e.ID))
	if !ok {
		return View{}, false
	}
	return newView(rec, e.Interval), true
}
