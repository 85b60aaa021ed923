// Package script runs Lua scripts against a scrollback buffer and its mark
// registry.
//
// Scripts see a single module, term, available both as a global and via
// require("term"). Mark ids cross into Lua as "slot.generation" strings.
// Only the base, table, string and math libraries are opened; io, os and
// debug are not available.
package script
