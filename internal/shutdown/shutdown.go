package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// New returns a root context cancelled on SIGINT or SIGTERM.
func New() (context.Context, func()) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
