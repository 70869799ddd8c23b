package debug

import (
	"fmt"
	"time"

	"github.com/osm-versailles/internal/logging"
)

// DebugHeader marks the start of a debug section if debugging is enabled
func DebugHeader(enabled bool) {
	if enabled {
		logging.Default().Debug().Msg("=== DEBUG START ===")
	}
}

// DebugFooter marks the end of a debug section if debugging is enabled
func DebugFooter(enabled bool) {
	if enabled {
		logging.Default().Debug().Msg("=== DEBUG END ===")
	}
}

// DebugOutput logs a formatted debug message if debugging is enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		logging.Default().Debug().Msg(fmt.Sprintf(format, args...))
	}
}

// DebugTiming logs the start of operation and returns a func that logs its
// duration. Both are no-ops when debugging is disabled.
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	logging.Default().Debug().Str("operation", operation).Msg("starting")

	return func() {
		logging.Default().Debug().
			Str("operation", operation).
			Dur("took", time.Since(start)).
			Msg("completed")
	}
}
