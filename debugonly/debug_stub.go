//go:build !debugger

// Package debugonly holds hooks that are compiled in only when the binary is
// built with -tags debugger.
package debugonly

// BreakHere marks the point where a task panic is recovered. It does nothing
// in regular builds.
func BreakHere() {}

// Enabled reports whether the debugger build tag is active.
func Enabled() bool { return false }
