// Package invariant reports programmer-invariant violations.
// Release builds log a warning and carry on; builds tagged appwatch_debug panic.
package invariant

import (
	"fmt"

	"github.com/zjrosen/appwatch/internal/log"
)

// Check reports msg when cond is false.
func Check(cond bool, cat log.Category, msg string, fields ...any) {
	if cond {
		return
	}
	log.Warn(cat, "invariant violated: "+msg, fields...)
	if failHard {
		panic(fmt.Sprintf("invariant violated: %s %v", msg, fields))
	}
}
