// Package mark tracks metadata anchored to lines of a terminal's scrolling
// buffer.
//
// A mark is one of two variants:
//
//   - Command marks are visible. They record the command text, the owning
//     session, start and end timestamps, the exit code and an ordered list
//     of [CapturedOutput] records.
//   - Captured-output marks are invisible. They exist only so the location
//     of a piece of captured output can be found by position, independently
//     of the command mark that owns the record.
//
// # Registry
//
// [Registry] owns every mark. Marks live in an arena addressed by [ID]; an
// interval tree indexes their anchors. The buffer owner reports appended and
// trimmed lines, and the registry renumbers or evicts anchors to match:
//
//	reg := mark.NewRegistry()
//	id, _ := reg.CreateCommandMark(interval.Line(10), 1)
//	_ = reg.AddCapturedOutput(id, mark.CapturedOutput{Line: "ok"})
//
//	reg.OnLinesTrimmed(5)         // anchor is now [5:6)
//	v, _ := reg.Mark(id)
//	v.CapturedOutput()            // [{Line: "ok"}]
//
// Evicting a command mark discards its captured output with it.
//
// # Views
//
// Queries return [View] values: immutable snapshots that never alias the
// registry's internal state.
//
// # Thread Safety
//
// Registry is not synchronised. It assumes a single writer; hosts that read
// from other goroutines must provide their own exclusion.
package mark
