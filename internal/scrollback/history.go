package scrollback

import (
	"strings"
	"sync"
)

// DefaultMaxLines is used when a non-positive limit is given.
const DefaultMaxLines = 10000

// Listener is notified about changes in the length of a History.
// Notifications are delivered synchronously, appends before trims.
type Listener interface {
	OnLinesAppended(count uint)
	OnLinesTrimmed(count uint)
}

// Line is one line of scrollback.
type Line struct {
	Text    string
	Wrapped bool // Continues on the next line
}

// History stores scrollback lines up to a fixed limit.
type History struct {
	mu        sync.RWMutex
	lines     []Line
	maxLines  int
	trimmed   int64
	listeners []Listener
}

// NewHistory creates a history holding at most maxLines lines.
func NewHistory(maxLines int, listeners ...Listener) *History {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &History{
		lines:     make([]Line, 0, min(maxLines, 1024)),
		maxLines:  maxLines,
		listeners: listeners,
	}
}

// Subscribe registers l for future length changes.
func (h *History) Subscribe(l Listener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// Add appends lines and returns the coordinate of the first one after any
// trimming caused by the append. When the append overflows the buffer by
// more than its old length the result is 0, the oldest surviving new line.
func (h *History) Add(lines ...Line) int64 {
	if len(lines) == 0 {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return int64(len(h.lines))
	}

	h.mu.Lock()
	first := len(h.lines)
	h.lines = append(h.lines, lines...)
	var drop int
	if len(h.lines) > h.maxLines {
		drop = len(h.lines) - h.maxLines
		h.dropLocked(drop)
	}
	first = max(first-drop, 0)
	listeners := h.listeners
	h.mu.Unlock()

	for _, l := range listeners {
		l.OnLinesAppended(uint(len(lines)))
	}
	if drop > 0 {
		for _, l := range listeners {
			l.OnLinesTrimmed(uint(drop))
		}
	}
	return int64(first)
}

// AddText appends text split into lines and returns the coordinate of the
// first resulting line.
func (h *History) AddText(text string) int64 {
	return h.Add(SplitLines(text)...)
}

// SplitLines splits text on newlines. A single trailing newline ends the
// last line rather than starting an empty one.
func SplitLines(text string) []Line {
	parts := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	lines := make([]Line, len(parts))
	for i, p := range parts {
		lines[i] = Line{Text: p}
	}
	return lines
}

// Trim drops the oldest count lines, clamped to the current length, and
// returns how many were dropped.
func (h *History) Trim(count int) int {
	if count <= 0 {
		return 0
	}

	h.mu.Lock()
	count = min(count, len(h.lines))
	h.dropLocked(count)
	listeners := h.listeners
	h.mu.Unlock()

	if count > 0 {
		for _, l := range listeners {
			l.OnLinesTrimmed(uint(count))
		}
	}
	return count
}

// SetMaxLines changes the limit, trimming the oldest lines if the buffer
// is now too long. Returns the number of lines dropped.
func (h *History) SetMaxLines(maxLines int) int {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	h.mu.Lock()
	h.maxLines = maxLines
	excess := len(h.lines) - maxLines
	h.mu.Unlock()

	if excess <= 0 {
		return 0
	}
	return h.Trim(excess)
}

// MaxLines returns the line limit.
func (h *History) MaxLines() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxLines
}

// Line returns the line at index (0 = oldest retained).
func (h *History) Line(index int64) (Line, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if index < 0 || index >= int64(len(h.lines)) {
		return Line{}, false
	}
	return h.lines[index], true
}

// Len returns the number of lines in history.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lines)
}

// Trimmed returns the number of lines dropped since creation.
func (h *History) Trimmed() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.trimmed
}

// Clear removes every line. Listeners see it as a trim of the whole buffer.
func (h *History) Clear() {
	h.mu.RLock()
	n := len(h.lines)
	h.mu.RUnlock()
	h.Trim(n)
}

// GetText returns lines [from, to) joined with newlines, except after
// wrapped lines. Bounds are clamped.
func (h *History) GetText(from, to int64) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	from = max(from, 0)
	to = min(to, int64(len(h.lines)))
	if from >= to {
		return ""
	}

	var b strings.Builder
	for i := from; i < to; i++ {
		line := h.lines[i]
		b.WriteString(line.Text)
		if i < to-1 && !line.Wrapped {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// dropLocked removes the oldest n lines. Caller holds mu.
func (h *History) dropLocked(n int) {
	if n <= 0 {
		return
	}
	kept := copy(h.lines, h.lines[n:])
	clear(h.lines[kept:])
	h.lines = h.lines[:kept]
	h.trimmed += int64(n)
}
