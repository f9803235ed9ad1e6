//go:build debugger

package debugonly

import (
	"os"
	"runtime"
)

// BreakHere is a stable symbol to set a breakpoint on (dlv: break
// debugonly.BreakHere). With PIPELINE_BREAK=1 it also traps into an attached
// debugger.
func BreakHere() {
	if os.Getenv("PIPELINE_BREAK") == "1" {
		runtime.Breakpoint()
	}
}

// Enabled reports whether the debugger build tag is active.
func Enabled() bool { return true }
