package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sqlsimproject/sqlsim/internal/common/logging"
)

// CreateContextWithShutdown returns a context that will report done when SIGINT
// or SIGTERM is received, so a simulation run can stop cleanly before its global
// duration elapses.
func CreateContextWithShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			logging.Infof("Received signal %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
