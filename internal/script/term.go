package script

import (
	"errors"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termmark/internal/engine/interval"
	"github.com/dshills/termmark/internal/mark"
	"github.com/dshills/termmark/internal/scrollback"
)

// Env is what the term module operates on.
type Env struct {
	History  *scrollback.History
	Registry *mark.Registry
	// Lock, if set, is held around every term call.
	Lock sync.Locker
}

// Bind installs the term module for env.
func (s *State) Bind(env Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	if env.History == nil || env.Registry == nil {
		return errors.New("script: env needs a history and a registry")
	}

	t := &term{env: env}
	loader := func(L *lua.LState) int {
		L.Push(t.module(L))
		return 1
	}
	s.L.PreloadModule("term", loader)
	s.L.SetGlobal("term", t.module(s.L))
	s.bound = true
	return nil
}

// term implements the Lua functions of the term module.
type term struct {
	env Env
	mod *lua.LTable
}

func (t *term) module(L *lua.LState) *lua.LTable {
	if t.mod != nil {
		return t.mod
	}
	t.mod = L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"append":      t.locked(t.append),
		"lines":       t.locked(t.lines),
		"trimmed":     t.locked(t.trimmed),
		"trim":        t.locked(t.trim),
		"command":     t.locked(t.command),
		"output_mark": t.locked(t.outputMark),
		"finish":      t.locked(t.finish),
		"set_command": t.locked(t.setCommand),
		"capture":     t.locked(t.capture),
		"remove":      t.locked(t.remove),
		"mark":        t.locked(t.mark),
		"range":       t.locked(t.rangeQuery),
		"nearest":     t.locked(t.nearest),
		"session":     t.locked(t.session),
		"last":        t.locked(t.last),
		"matching":    t.locked(t.matching),
	})
	return t.mod
}

// locked wraps fn with the env lock. Lua errors raised by fn unwind as Go
// panics, so the deferred unlock still runs.
func (t *term) locked(fn lua.LGFunction) lua.LGFunction {
	if t.env.Lock == nil {
		return fn
	}
	return func(L *lua.LState) int {
		t.env.Lock.Lock()
		defer t.env.Lock.Unlock()
		return fn(L)
	}
}

// append(text...) -> first line coordinate
func (t *term) append(L *lua.LState) int {
	var lines []scrollback.Line
	for i := 1; i <= L.GetTop(); i++ {
		lines = append(lines, scrollback.SplitLines(L.CheckString(i))...)
	}
	L.Push(lua.LNumber(t.env.History.Add(lines...)))
	return 1
}

// lines() -> number of lines in the buffer
func (t *term) lines(L *lua.LState) int {
	L.Push(lua.LNumber(t.env.History.Len()))
	return 1
}

// trimmed() -> lines trimmed since the session started
func (t *term) trimmed(L *lua.LState) int {
	L.Push(lua.LNumber(t.env.History.Trimmed()))
	return 1
}

// trim(count) -> lines actually trimmed
func (t *term) trim(L *lua.LState) int {
	L.Push(lua.LNumber(t.env.History.Trim(L.CheckInt(1))))
	return 1
}

// command(start [, stop [, session]]) -> id
func (t *term) command(L *lua.LState) int {
	anchor := checkInterval(L, 1)
	session := L.OptInt(3, 0)
	id, err := t.env.Registry.CreateCommandMark(anchor, session)
	if err != nil {
		L.RaiseError("%s", err)
	}
	L.Push(lua.LString(id.String()))
	return 1
}

// output_mark(start [, stop]) -> id
func (t *term) outputMark(L *lua.LState) int {
	id, err := t.env.Registry.CreateCapturedOutputMark(checkInterval(L, 1))
	if err != nil {
		L.RaiseError("%s", err)
	}
	L.Push(lua.LString(id.String()))
	return 1
}

// finish(id, code)
func (t *term) finish(L *lua.LState) int {
	id := checkID(L, 1)
	if err := t.env.Registry.FinishCommandMark(id, L.CheckInt(2), time.Time{}); err != nil {
		L.RaiseError("%s", err)
	}
	return 0
}

// set_command(id, text)
func (t *term) setCommand(L *lua.LState) int {
	if err := t.env.Registry.SetCommand(checkID(L, 1), L.CheckString(2)); err != nil {
		L.RaiseError("%s", err)
	}
	return 0
}

// capture(id, line [, values [, mark_id [, prompt]]])
func (t *term) capture(L *lua.LState) int {
	id := checkID(L, 1)
	out := mark.CapturedOutput{
		Line:       L.CheckString(2),
		PromptText: L.OptString(5, ""),
	}
	if tbl := L.OptTable(3, nil); tbl != nil {
		for i := 1; i <= tbl.Len(); i++ {
			out.Values = append(out.Values, tbl.RawGetInt(i).String())
		}
	}
	if L.GetTop() >= 4 && L.Get(4) != lua.LNil {
		out.Mark = checkID(L, 4)
	}
	if err := t.env.Registry.AddCapturedOutput(id, out); err != nil {
		L.RaiseError("%s", err)
	}
	return 0
}

// remove(id)
func (t *term) remove(L *lua.LState) int {
	if err := t.env.Registry.Remove(checkID(L, 1)); err != nil {
		L.RaiseError("%s", err)
	}
	return 0
}

// mark(id) -> table or nil
func (t *term) mark(L *lua.LState) int {
	id, err := mark.ParseID(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := t.env.Registry.Mark(id)
	pushView(L, v, ok)
	return 1
}

// range(start, stop [, visible_only]) -> array
func (t *term) rangeQuery(L *lua.LState) int {
	r := interval.New(L.CheckInt64(1), L.CheckInt64(2))
	views, err := t.env.Registry.MarksInRange(r, L.OptBool(3, false))
	if err != nil {
		L.RaiseError("%s", err)
	}
	L.Push(viewsTable(L, views))
	return 1
}

// nearest(pos, "before"|"after" [, visible_only]) -> table or nil
func (t *term) nearest(L *lua.LState) int {
	pos := L.CheckInt64(1)
	dir, ok := interval.ParseDirection(L.CheckString(2))
	if !ok {
		L.ArgError(2, "direction must be before or after")
	}
	v, found := t.env.Registry.NearestMark(pos, dir, L.OptBool(3, false))
	pushView(L, v, found)
	return 1
}

// session(id) -> array
func (t *term) session(L *lua.LState) int {
	L.Push(viewsTable(L, t.env.Registry.MarksForSession(L.CheckInt(1))))
	return 1
}

// last(session) -> table or nil
func (t *term) last(L *lua.LState) int {
	v, ok := t.env.Registry.LastCommandMark(L.CheckInt(1))
	pushView(L, v, ok)
	return 1
}

// matching(pattern) -> array
func (t *term) matching(L *lua.LState) int {
	views, err := t.env.Registry.CommandsMatching(L.CheckString(1))
	if err != nil {
		L.RaiseError("%s", err)
	}
	L.Push(viewsTable(L, views))
	return 1
}

// checkInterval reads start and an optional stop (default start+1).
func checkInterval(L *lua.LState, n int) interval.Interval {
	start := L.CheckInt64(n)
	stop := L.OptInt64(n+1, start+1)
	return interval.New(start, stop)
}

func checkID(L *lua.LState, n int) mark.ID {
	id, err := mark.ParseID(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return id
}

func pushView(L *lua.LState, v mark.View, ok bool) {
	if !ok {
		L.Push(lua.LNil)
		return
	}
	L.Push(viewTable(L, v))
}

func viewsTable(L *lua.LState, views []mark.View) *lua.LTable {
	tbl := L.CreateTable(len(views), 0)
	for _, v := range views {
		tbl.Append(viewTable(L, v))
	}
	return tbl
}

// viewTable converts a mark snapshot into a Lua table.
func viewTable(L *lua.LState, v mark.View) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(v.ID.String()))
	tbl.RawSetString("guid", lua.LString(v.GUID))
	tbl.RawSetString("kind", lua.LString(v.Kind.String()))
	tbl.RawSetString("start", lua.LNumber(v.Anchor.Start))
	tbl.RawSetString("stop", lua.LNumber(v.Anchor.End))
	tbl.RawSetString("session", lua.LNumber(v.SessionID))
	tbl.RawSetString("visible", lua.LBool(v.Visible()))

	if !v.IsCommand() {
		return tbl
	}

	tbl.RawSetString("command", lua.LString(v.Command))
	tbl.RawSetString("code", lua.LNumber(v.Code))
	tbl.RawSetString("state", lua.LString(v.State().String()))
	tbl.RawSetString("duration", lua.LNumber(v.Duration().Seconds()))

	output := L.CreateTable(v.CapturedOutputLen(), 0)
	for _, c := range v.CapturedOutput() {
		rec := L.NewTable()
		rec.RawSetString("line", lua.LString(c.Line))
		values := L.CreateTable(len(c.Values), 0)
		for _, val := range c.Values {
			values.Append(lua.LString(val))
		}
		rec.RawSetString("values", values)
		if c.Mark != 0 {
			rec.RawSetString("mark", lua.LString(c.Mark.String()))
		}
		rec.RawSetString("prompt", lua.LString(c.PromptText))
		output.Append(rec)
	}
	tbl.RawSetString("output", output)
	return tbl
}
