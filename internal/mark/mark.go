package mark

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/termmark/internal/engine/interval"
)

// CodeUnknown is the exit code of a command mark that has not finished.
const CodeUnknown = -1

// ID identifies a mark. It stays stable while the mark's anchor moves, and an
// id held after its mark is gone does not name a later mark. The zero ID
// names no mark.
type ID uint64

// String returns the id as slot.generation.
func (id ID) String() string {
	return fmt.Sprintf("%d.%d", id.index(), id.generation())
}

// ParseID parses the slot.generation form produced by String.
func ParseID(s string) (ID, error) {
	idxStr, genStr, ok := strings.Cut(s, ".")
	if !ok {
		return 0, fmt.Errorf("%w: malformed id %q", ErrNotFound, s)
	}
	idx, err := strconv.ParseUint(idxStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed id %q", ErrNotFound, s)
	}
	gen, err := strconv.ParseUint(genStr, 10, 32)
	if err != nil || gen == 0 {
		return 0, fmt.Errorf("%w: malformed id %q", ErrNotFound, s)
	}
	return makeID(uint32(idx), uint32(gen)), nil
}

// Kind is the mark variant.
type Kind uint8

const (
	// KindCommand is a visible mark on a command's prompt line.
	KindCommand Kind = iota + 1
	// KindCapturedOutput is an invisible anchor for captured output.
	KindCapturedOutput
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCapturedOutput:
		return "captured-output"
	default:
		return "unknown"
	}
}

// Visible reports whether marks of this kind are shown to the user.
func (k Kind) Visible() bool {
	return k == KindCommand
}

// State is the execution state of a command mark.
type State uint8

const (
	// StatePending means the command started but has not finished.
	StatePending State = iota
	// StateFinished means the end date and exit code are known.
	StateFinished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// CapturedOutput is a record of output text associated with a command.
// The registry stores and returns it verbatim without interpreting it.
type CapturedOutput struct {
	// Line is the matched output text.
	Line string
	// Values are the captured groups of the match.
	Values []string
	// Mark optionally names the captured-output mark anchoring the text.
	Mark ID
	// PromptText is the prompt in effect when the output was captured.
	PromptText string
}

// clone returns a copy that shares no slices with c.
func (c CapturedOutput) clone() CapturedOutput {
	c.Values = slices.Clone(c.Values)
	return c
}

// command is the payload of a command mark.
type command struct {
	text      string
	code      int
	startDate time.Time
	endDate   time.Time
	output    []CapturedOutput
}

// record is the arena-resident form of a mark. The anchor is not stored
// here; the interval tree is its only owner.
type record struct {
	id        ID
	guid      string
	kind      Kind
	sessionID int

	// cmd is non-nil exactly when kind == KindCommand.
	cmd *command
}

// View is an immutable snapshot of a mark.
type View struct {
	ID        ID
	GUID      string
	Kind      Kind
	Anchor    interval.Interval
	SessionID int

	// Command payload. Zero for captured-output marks, except Code which is
	// CodeUnknown.
	Command   string
	Code      int
	StartDate time.Time
	EndDate   time.Time

	output []CapturedOutput
}

// Visible reports whether the mark is shown to the user.
func (v View) Visible() bool {
	return v.Kind.Visible()
}

// IsCommand reports whether the mark is a command mark.
func (v View) IsCommand() bool {
	return v.Kind == KindCommand
}

// Finished reports whether a command mark has an end date.
func (v View) Finished() bool {
	return !v.EndDate.IsZero()
}

// State returns the execution state of a command mark.
func (v View) State() State {
	if v.Finished() {
		return StateFinished
	}
	return StatePending
}

// Duration returns how long a finished command ran, or zero.
func (v View) Duration() time.Duration {
	if !v.Finished() {
		return 0
	}
	return v.EndDate.Sub(v.StartDate)
}

// CapturedOutput returns the captured output records in the order they were
// added. The slice is a copy; empty for captured-output marks.
func (v View) CapturedOutput() []CapturedOutput {
	out := make([]CapturedOutput, len(v.output))
	for i, c := range v.output {
		out[i] = c.clone()
	}
	return out
}

// CapturedOutputLen returns the number of captured output records.
func (v View) CapturedOutputLen() int {
	return len(v.output)
}

// String returns a short description for logs and debugging.
func (v View) String() string {
	if v.Kind == KindCommand {
		return fmt.Sprintf("%s %s %s session=%d code=%d %q", v.Kind, v.ID, v.Anchor, v.SessionID, v.Code, v.Command)
	}
	return fmt.Sprintf("%s %s %s", v.Kind, v.ID, v.Anchor)
}

// newView builds a snapshot from a record and its anchor.
func newView(r *record, anchor interval.Interval) View {
	v := View{
		ID:        r.id,
		GUID:      r.guid,
		Kind:      r.kind,
		Anchor:    anchor,
		SessionID: r.sessionID,
		Code:      CodeUnknown,
	}
	if c := r.cmd; c != nil {
		v.Command = c.text
		v.Code = c.code
		v.StartDate = c.startDate
		v.EndDate = c.endDate
		v.output = slices.Clone(c.output)
	}
	return v
}
