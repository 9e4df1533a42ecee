// Package signal derives contexts that end on interrupt, so a live
// session can tear down its peer connection before the process exits.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NotifyContext returns a context cancelled on SIGINT or SIGTERM. Callers
// must invoke stop to restore default signal handling.
func NotifyContext() (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
