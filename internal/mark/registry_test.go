package mark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/termmark/internal/engine/interval"
)

// fakeClock returns a clock advancing one second per call from a fixed base.
func fakeClock() func() time.Time {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func newTestRegistry(opts ...Option) *Registry {
	return NewRegistry(append([]Option{WithClock(fakeClock())}, opts...)...)
}

func viewIDs(views []View) []ID {
	out := make([]ID, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestScenarioTrimKeepsCapturedOutput(t *testing.T) {
	reg := newTestRegistry()
	reg.OnLinesAppended(20)

	id, err := reg.CreateCommandMark(interval.New(10, 11), 1)
	require.NoError(t, err)

	recordA := CapturedOutput{Line: "error: a", Values: []string{"a"}}
	recordB := CapturedOutput{Line: "error: b", Values: []string{"b"}}
	require.NoError(t, reg.AddCapturedOutput(id, recordA))
	require.NoError(t, reg.AddCapturedOutput(id, recordB))

	reg.OnLinesTrimmed(5)

	v, ok := reg.Mark(id)
	require.True(t, ok)
	assert.Equal(t, interval.New(5, 6), v.Anchor)

	found, err := reg.MarksInRange(interval.New(4, 7), false)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID)
	assert.Equal(t, []CapturedOutput{recordA, recordB}, found[0].CapturedOutput())

	assert.Equal(t, int64(15), reg.LineCount())
	assert.Equal(t, int64(5), reg.TotalTrimmed())
}

func TestScenarioTrimEvictsOldMark(t *testing.T) {
	reg := newTestRegistry()

	first, err := reg.CreateCommandMark(interval.New(3, 4), 1)
	require.NoError(t, err)
	second, err := reg.CreateCommandMark(interval.New(100, 101), 1)
	require.NoError(t, err)
	require.NoError(t, reg.AddCapturedOutput(first, CapturedOutput{Line: "gone"}))

	evicted := reg.Trim(50)
	require.Len(t, evicted, 1)
	assert.Equal(t, first, evicted[0].ID)
	assert.Equal(t, 1, evicted[0].CapturedOutputLen())

	_, ok := reg.Mark(first)
	assert.False(t, ok, "evicted mark must not be reachable by id")

	all, err := reg.MarksInRange(interval.New(0, 1000), false)
	require.NoError(t, err)
	assert.Equal(t, []ID{second}, viewIDs(all))

	_, ok = reg.NearestMark(0, interval.After, false)
	assert.True(t, ok)
	assert.Equal(t, []ID{second}, viewIDs(reg.MarksForSession(1)))

	v, ok := reg.Mark(second)
	require.True(t, ok)
	assert.Equal(t, interval.New(50, 51), v.Anchor)

	assert.ErrorIs(t, reg.AddCapturedOutput(first, CapturedOutput{}), ErrNotFound)
	assert.ErrorIs(t, reg.FinishCommandMark(first, 0, time.Time{}), ErrNotFound)
	assert.ErrorIs(t, reg.Remove(first), ErrNotFound)
}

func TestScenarioNearestBefore(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.CreateCommandMark(interval.New(5, 6), 1)
	require.NoError(t, err)
	second, err := reg.CreateCommandMark(interval.New(15, 16), 1)
	require.NoError(t, err)

	v, ok := reg.NearestMark(20, interval.Before, true)
	require.True(t, ok)
	assert.Equal(t, second, v.ID)

	empty := newTestRegistry()
	_, err = empty.CreateCommandMark(interval.New(25, 26), 1)
	require.NoError(t, err)
	_, ok = empty.NearestMark(20, interval.Before, true)
	assert.False(t, ok)
}

func TestAnchorMonotonicity(t *testing.T) {
	reg := newTestRegistry()
	original := make(map[ID]interval.Interval)
	for i := int64(0); i < 40; i++ {
		anchor := interval.New(i*3, i*3+2)
		id, err := reg.CreateCommandMark(anchor, int(i%3))
		require.NoError(t, err)
		original[id] = anchor
	}

	var total int64
	for _, n := range []uint{4, 9, 0, 17, 1} {
		reg.OnLinesTrimmed(n)
		total += int64(n)

		for _, v := range reg.Marks(false) {
			assert.Greater(t, v.Anchor.End, int64(0))
			assert.Equal(t, original[v.ID].End-total, v.Anchor.End)
		}
		for id, anchor := range original {
			_, ok := reg.Mark(id)
			assert.Equal(t, anchor.End > total, ok, "mark %s with end %d after trimming %d", id, anchor.End, total)
		}
	}
}

func TestOrderPreservationWithInterleaving(t *testing.T) {
	reg := newTestRegistry()
	cmd, err := reg.CreateCommandMark(interval.Line(50), 2)
	require.NoError(t, err)

	var want []CapturedOutput
	for i := 0; i < 30; i++ {
		rec := CapturedOutput{Line: string(rune('a' + i%26)), Values: []string{"v"}}
		require.NoError(t, reg.AddCapturedOutput(cmd, rec))
		want = append(want, rec)

		// Unrelated registry traffic between appends.
		other, err := reg.CreateCapturedOutputMark(interval.Line(int64(60 + i)))
		require.NoError(t, err)
		if i%2 == 0 {
			require.NoError(t, reg.Remove(other))
		}
		if i%7 == 0 {
			reg.OnLinesTrimmed(1)
		}
	}

	v, ok := reg.Mark(cmd)
	require.True(t, ok)
	assert.Equal(t, want, v.CapturedOutput())
}

func TestVisibilityFilter(t *testing.T) {
	reg := newTestRegistry()
	cmd, err := reg.CreateCommandMark(interval.New(2, 3), 1)
	require.NoError(t, err)
	out, err := reg.CreateCapturedOutputMark(interval.New(4, 8))
	require.NoError(t, err)

	visible, err := reg.MarksInRange(interval.New(0, 10), true)
	require.NoError(t, err)
	assert.Equal(t, []ID{cmd}, viewIDs(visible))
	for _, v := range visible {
		assert.True(t, v.Visible())
	}

	all, err := reg.MarksInRange(interval.New(0, 10), false)
	require.NoError(t, err)
	assert.Equal(t, []ID{cmd, out}, viewIDs(all))

	v, ok := reg.NearestMark(9, interval.Before, true)
	require.True(t, ok)
	assert.Equal(t, cmd, v.ID)

	v, ok = reg.NearestMark(9, interval.Before, false)
	require.True(t, ok)
	assert.Equal(t, out, v.ID)
	assert.False(t, v.Visible())
	assert.Empty(t, v.CapturedOutput())

	assert.Equal(t, []ID{cmd}, viewIDs(reg.Marks(true)))
}

func TestZeroWidthAnchorIsLocatable(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateCapturedOutputMark(interval.Point(12))
	require.NoError(t, err)

	v, ok := reg.NearestMark(12, interval.After, false)
	require.True(t, ok)
	assert.Equal(t, id, v.ID)

	v, ok = reg.NearestMark(30, interval.Before, false)
	require.True(t, ok)
	assert.Equal(t, id, v.ID)
}

func TestCreateRejectsMalformedAnchor(t *testing.T) {
	reg := newTestRegistry()

	_, err := reg.CreateCommandMark(interval.New(9, 3), 1)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	_, err = reg.CreateCapturedOutputMark(interval.New(-1, 3))
	assert.ErrorIs(t, err, ErrInvalidInterval)
	assert.Equal(t, 0, reg.Len())

	_, err = reg.MarksInRange(interval.New(5, 1), false)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestCommandLifecycle(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateCommandMark(interval.Line(0), 3)
	require.NoError(t, err)

	v, _ := reg.Mark(id)
	assert.Equal(t, StatePending, v.State())
	assert.Equal(t, CodeUnknown, v.Code)
	assert.False(t, v.StartDate.IsZero())
	assert.True(t, v.EndDate.IsZero())
	assert.Zero(t, v.Duration())
	assert.NotEmpty(t, v.GUID)

	require.NoError(t, reg.SetCommand(id, "make test"))

	early := v.StartDate.Add(-time.Minute)
	assert.ErrorIs(t, reg.FinishCommandMark(id, 1, early), ErrEndBeforeStart)
	v, _ = reg.Mark(id)
	assert.Equal(t, StatePending, v.State(), "rejected finish must not change the mark")

	end := v.StartDate.Add(3 * time.Second)
	require.NoError(t, reg.FinishCommandMark(id, 2, end))

	v, _ = reg.Mark(id)
	assert.Equal(t, StateFinished, v.State())
	assert.Equal(t, 2, v.Code)
	assert.Equal(t, "make test", v.Command)
	assert.Equal(t, 3*time.Second, v.Duration())

	assert.ErrorIs(t, reg.FinishCommandMark(id, 0, end.Add(time.Second)), ErrAlreadyFinished)
	v, _ = reg.Mark(id)
	assert.Equal(t, 2, v.Code)
	assert.Equal(t, end, v.EndDate)
}

func TestFinishWithoutEndDateUsesClock(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateCommandMark(interval.Line(0), 1)
	require.NoError(t, err)
	require.NoError(t, reg.FinishCommandMark(id, 0, time.Time{}))

	v, _ := reg.Mark(id)
	assert.True(t, v.Finished())
	assert.True(t, v.EndDate.After(v.StartDate))
}

func TestWrongKindOperations(t *testing.T) {
	reg := newTestRegistry()
	out, err := reg.CreateCapturedOutputMark(interval.Line(1))
	require.NoError(t, err)

	assert.ErrorIs(t, reg.AddCapturedOutput(out, CapturedOutput{}), ErrWrongKind)
	assert.ErrorIs(t, reg.FinishCommandMark(out, 0, time.Time{}), ErrWrongKind)
	assert.ErrorIs(t, reg.SetCommand(out, "ls"), ErrWrongKind)
}

func TestCapturedOutputIsCopied(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateCommandMark(interval.Line(0), 1)
	require.NoError(t, err)

	values := []string{"x"}
	require.NoError(t, reg.AddCapturedOutput(id, CapturedOutput{Line: "l", Values: values}))
	values[0] = "mutated"

	v, _ := reg.Mark(id)
	got := v.CapturedOutput()
	assert.Equal(t, "x", got[0].Values[0])

	got[0].Values[0] = "changed"
	v, _ = reg.Mark(id)
	assert.Equal(t, "x", v.CapturedOutput()[0].Values[0])
}

func TestMaxCapturedOutputDropsOldest(t *testing.T) {
	reg := newTestRegistry(WithMaxCapturedOutput(2))
	id, err := reg.CreateCommandMark(interval.Line(0), 1)
	require.NoError(t, err)

	for _, line := range []string{"a", "b", "c"} {
		require.NoError(t, reg.AddCapturedOutput(id, CapturedOutput{Line: line}))
	}

	v, _ := reg.Mark(id)
	assert.Equal(t, []CapturedOutput{{Line: "b"}, {Line: "c"}}, v.CapturedOutput())
}

func TestEvictHookAndCapturedOutputMarks(t *testing.T) {
	var hooked []View
	reg := newTestRegistry(WithEvictHook(func(v View) { hooked = append(hooked, v) }))

	cmd, err := reg.CreateCommandMark(interval.Line(2), 1)
	require.NoError(t, err)
	// The output anchor outlives the command line.
	out, err := reg.CreateCapturedOutputMark(interval.New(3, 9))
	require.NoError(t, err)
	require.NoError(t, reg.AddCapturedOutput(cmd, CapturedOutput{Line: "warn", Mark: out}))

	reg.OnLinesTrimmed(4)
	require.Len(t, hooked, 1)
	assert.Equal(t, cmd, hooked[0].ID)

	v, ok := reg.Mark(out)
	require.True(t, ok)
	assert.Equal(t, interval.New(0, 5), v.Anchor, "straddling anchor keeps its end")
}

func TestMarksForSessionAndLastCommand(t *testing.T) {
	reg := newTestRegistry()
	a, _ := reg.CreateCommandMark(interval.Line(1), 1)
	_, _ = reg.CreateCommandMark(interval.Line(2), 2)
	c, _ := reg.CreateCommandMark(interval.Line(3), 1)
	_, _ = reg.CreateCapturedOutputMark(interval.Line(4))

	assert.Equal(t, []ID{a, c}, viewIDs(reg.MarksForSession(1)))
	assert.Empty(t, reg.MarksForSession(9))

	last, ok := reg.LastCommandMark(1)
	require.True(t, ok)
	assert.Equal(t, c, last.ID)

	_, ok = reg.LastCommandMark(9)
	assert.False(t, ok)
}

func TestCommandsBetween(t *testing.T) {
	reg := newTestRegistry()
	// Created in reverse position order so time order differs from position order.
	late, _ := reg.CreateCommandMark(interval.Line(30), 1)
	mid, _ := reg.CreateCommandMark(interval.Line(20), 1)
	early, _ := reg.CreateCommandMark(interval.Line(10), 1)

	lv, _ := reg.Mark(late)
	ev, _ := reg.Mark(early)

	all := reg.CommandsBetween(time.Time{}, time.Time{})
	assert.Equal(t, []ID{late, mid, early}, viewIDs(all))

	window := reg.CommandsBetween(lv.StartDate.Add(time.Nanosecond), ev.StartDate)
	assert.Equal(t, []ID{mid}, viewIDs(window))
}

func TestCommandsMatching(t *testing.T) {
	reg := newTestRegistry()
	gitStatus, _ := reg.CreateCommandMark(interval.Line(1), 1)
	_, _ = reg.CreateCommandMark(interval.Line(2), 1)
	gitLog, _ := reg.CreateCommandMark(interval.Line(3), 1)
	require.NoError(t, reg.SetCommand(gitStatus, "git status"))
	require.NoError(t, reg.SetCommand(gitLog, "git log -1"))

	found, err := reg.CommandsMatching("git *")
	require.NoError(t, err)
	assert.Equal(t, []ID{gitStatus, gitLog}, viewIDs(found))

	_, err = reg.CommandsMatching("[")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestStaleIDAfterSlotReuse(t *testing.T) {
	reg := newTestRegistry()
	old, err := reg.CreateCommandMark(interval.Line(0), 1)
	require.NoError(t, err)
	require.NoError(t, reg.Remove(old))

	fresh, err := reg.CreateCommandMark(interval.Line(0), 1)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)

	_, ok := reg.Mark(old)
	assert.False(t, ok, "stale id must not resolve to the reused slot")
	_, ok = reg.Mark(fresh)
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateCommandMark(interval.Line(0), 1)
	_, _ = reg.CreateCapturedOutputMark(interval.Line(1))
	reg.Clear()

	assert.Equal(t, 0, reg.Len())
	_, ok := reg.Mark(id)
	assert.False(t, ok)
	assert.Empty(t, reg.Marks(false))
}

func TestSetMaxCapturedOutputShrinks(t *testing.T) {
	reg := newTestRegistry()
	id, err := reg.CreateCommandMark(interval.Line(0), 1)
	require.NoError(t, err)
	for _, line := range []string{"a", "b", "c", "d"} {
		require.NoError(t, reg.AddCapturedOutput(id, CapturedOutput{Line: line}))
	}

	reg.SetMaxCapturedOutput(2)
	require.NoError(t, reg.AddCapturedOutput(id, CapturedOutput{Line: "e"}))

	v, _ := reg.Mark(id)
	assert.Equal(t, []CapturedOutput{{Line: "d"}, {Line: "e"}}, v.CapturedOutput())
}
