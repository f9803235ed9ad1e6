package pipeline_go

import (
	"github.com/sirupsen/logrus" //nolint:depguard // package-wide logger
)

// Log is the package-level logger used by the builder and the engines.
// Callers may replace its output or level; nothing on the per-task hot path
// logs unless the Trace level is enabled.
var Log = logrus.New()

// traceEnabled reports whether per-task trace logging is switched on.
func traceEnabled() bool {
	return Log.IsLevelEnabled(logrus.TraceLevel)
}
