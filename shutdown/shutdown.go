package shutdown

import (
	"context"
	"os/signal"
)

// Context is cancelled when the process is asked to stop.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}
