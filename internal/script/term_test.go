package script

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/termmark/internal/engine/interval"
	"github.com/dshills/termmark/internal/mark"
	"github.com/dshills/termmark/internal/scrollback"
)

func run(t *testing.T, s *State, code string) {
	t.Helper()
	if err := s.DoString(context.Background(), code); err != nil {
		t.Fatalf("script failed: %v\n%s", err, code)
	}
}

func TestTermAppendAndTrim(t *testing.T) {
	s, hist, reg := newBoundState(t)

	run(t, s, `
		local first = term.append("$ ls", "a\nb\n")
		assert(first == 0, "first = " .. first)
		assert(term.lines() == 3)
		assert(term.append("c") == 3)
		assert(term.trim(2) == 2)
		assert(term.trimmed() == 2)
		assert(term.lines() == 2)
	`)

	if hist.Len() != 2 || reg.LineCount() != 2 || reg.TotalTrimmed() != 2 {
		t.Errorf("history len=%d registry lines=%d trimmed=%d", hist.Len(), reg.LineCount(), reg.TotalTrimmed())
	}
}

func TestTermCommandLifecycle(t *testing.T) {
	s, _, reg := newBoundState(t)

	run(t, s, `
		term.append(string.rep("line\n", 20))
		local id = term.command(10, 11, 7)
		term.set_command(id, "make build")
		local out = term.output_mark(12, 15)
		term.capture(id, "error: A", {"A"}, out)
		term.capture(id, "error: B", {"B"})
		term.finish(id, 2)

		local m = term.mark(id)
		assert(m.kind == "command")
		assert(m.command == "make build")
		assert(m.code == 2)
		assert(m.state == "finished")
		assert(m.session == 7)
		assert(m.visible == true)
		assert(#m.output == 2)
		assert(m.output[1].line == "error: A")
		assert(m.output[1].values[1] == "A")
		assert(m.output[1].mark == out)
		assert(m.output[2].mark == nil)

		term.trim(5)
		m = term.mark(id)
		assert(m.start == 5 and m.stop == 6, "anchor " .. m.start .. ":" .. m.stop)

		local o = term.mark(out)
		assert(o.visible == false)
		assert(o.output == nil)
		cmd_id = id
	`)

	id, err := mark.ParseID(s.GetGlobal("cmd_id").String())
	if err != nil {
		t.Fatalf("ParseID error = %v", err)
	}
	v, ok := reg.Mark(id)
	if !ok {
		t.Fatal("command mark missing from registry")
	}
	if v.Anchor != interval.New(5, 6) {
		t.Errorf("anchor = %s, want [5:6)", v.Anchor)
	}
	if v.CapturedOutputLen() != 2 {
		t.Errorf("captured output = %d, want 2", v.CapturedOutputLen())
	}
}

func TestTermQueries(t *testing.T) {
	s, _, _ := newBoundState(t)

	run(t, s, `
		term.append(string.rep("x\n", 40))
		local a = term.command(5, 6, 1)
		local b = term.command(15, 16, 1)
		local c = term.command(25, 26, 2)
		local o = term.output_mark(16, 18)
		term.set_command(a, "git status")
		term.set_command(c, "git log")

		local near = term.nearest(20, "before", true)
		assert(near.id == b, "nearest before 20")
		assert(term.nearest(20, "before", false).id == o)
		assert(term.nearest(30, "after") == nil)

		local r = term.range(0, 20, true)
		assert(#r == 2 and r[1].id == a and r[2].id == b)
		assert(#term.range(0, 20) == 3)

		assert(#term.session(1) == 2)
		assert(term.last(1).id == b)
		assert(term.last(9) == nil)

		local g = term.matching("git *")
		assert(#g == 2 and g[1].id == a and g[2].id == c)

		assert(term.mark("99.1") == nil)
		assert(term.mark("garbage") == nil)
	`)
}

func TestTermRaisesErrors(t *testing.T) {
	s, _, _ := newBoundState(t)

	tests := []struct {
		name string
		code string
		want string
	}{
		{"bad anchor", `term.command(9, 3)`, "invalid interval"},
		{"unknown id", `term.finish("4.1", 0)`, "not found"},
		{"malformed id", `term.remove("nope")`, "bad argument"},
		{"wrong kind", `local o = term.output_mark(1) term.finish(o, 0)`, "not supported"},
		{"refinish", `local c = term.command(1) term.finish(c, 0) term.finish(c, 1)`, "already finished"},
		{"bad direction", `term.nearest(1, "sideways")`, "direction"},
		{"bad pattern", `term.matching("[")`, "invalid command pattern"},
		{"bad range", `term.range(5, 1)`, "invalid interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.DoString(context.Background(), tt.code)
			if err == nil {
				t.Fatalf("expected error from %q", tt.code)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestTermRequire(t *testing.T) {
	s, _, _ := newBoundState(t)
	run(t, s, `
		local t = require("term")
		assert(t == term)
		assert(type(t.append) == "function")
	`)
}

func TestTermLockHeld(t *testing.T) {
	var mu sync.Mutex
	reg := mark.NewRegistry()
	s := NewState()
	defer s.Close()

	hist := mustHistory(reg)
	if err := s.Bind(Env{History: hist, Registry: reg, Lock: &mu}); err != nil {
		t.Fatal(err)
	}

	// A raised error must not leave the lock held.
	_ = s.DoString(context.Background(), `term.command(3, 1)`)
	if !mu.TryLock() {
		t.Fatal("lock still held after a failed call")
	}
	mu.Unlock()

	run(t, s, `term.append("a")`)
	if !mu.TryLock() {
		t.Fatal("lock still held after a call")
	}
	mu.Unlock()
}

func TestDoFile(t *testing.T) {
	var out bytes.Buffer
	s, _, _ := newBoundState(t, WithOutput(&out))

	path := filepath.Join(t.TempDir(), "demo.lua")
	script := `
term.append("$ echo hi", "hi")
local id = term.command(0, 1, 1)
term.finish(id, 0)
print(term.mark(id).state)
`
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.DoFile(context.Background(), path); err != nil {
		t.Fatalf("DoFile() error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "finished" {
		t.Errorf("output = %q, want finished", got)
	}
}

func mustHistory(reg *mark.Registry) *scrollback.History {
	return scrollback.NewHistory(100, reg)
}
