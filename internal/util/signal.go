package util

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/airbloc/logger"
)

// exitCode is the status of a process interrupted twice.
const exitCode = 130

var exit = os.Exit

// ContextWithSignal returns a context cancelled when one of the given signals arrives,
// so that a render or a worker can stop gracefully. If another signal arrives before
// the returned cancel function is called, the process exits immediately.
func ContextWithSignal(parent context.Context, sig ...os.Signal) (context.Context, context.CancelFunc) {
	log := logger.New("mandelmr.util")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sig...)

	ctx, cancel := context.WithCancel(parent)
	stopped := make(chan struct{})
	go func() {
		select {
		case s := <-sigChan:
			log.Info("{} received. Stopping; send it again to exit immediately.", s.String())
			cancel()
		case <-ctx.Done():
			return
		}
		select {
		case s := <-sigChan:
			log.Warn("{} received again. Exiting.", s.String())
			exit(exitCode)
		case <-stopped:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(stopped)
		})
		cancel()
	}
}
