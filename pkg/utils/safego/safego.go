// Package safego starts goroutines that log panics instead of crashing the process.
package safego

import (
	"context"
	"runtime/debug"

	"github.com/kiosk404/hivelink/pkg/logger"
)

// Go runs fn in a new goroutine. A panic in fn is recovered and logged with its stack.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer Recover(ctx)
		fn()
	}()
}

// Recover logs a recovered panic. Call it deferred.
func Recover(_ context.Context) {
	if r := recover(); r != nil {
		logger.Error("[SafeGo] goroutine panicked: %v\n%s", r, debug.Stack())
	}
}
