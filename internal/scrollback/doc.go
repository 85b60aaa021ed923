// Package scrollback implements the bounded line buffer that marks anchor to.
//
// A History holds at most MaxLines lines. Appending past the limit drops the
// oldest lines, and every change in length is reported to the registered
// Listeners so anchored structures can follow the buffer:
//
//	reg := mark.NewRegistry()
//	hist := scrollback.NewHistory(10000, reg)
//	line := hist.AddText("$ make")
//	reg.CreateCommandMark(interval.Line(line), 1)
//
// Line coordinates are zero-based from the oldest retained line, so a trim
// renumbers every surviving line.
package scrollback
