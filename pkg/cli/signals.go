package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SetupSignalHandler creates a context that is canceled on SIGINT or SIGTERM.
// A second signal calls force, if non-nil. The returned stop function
// releases the signal registration.
func SetupSignalHandler(parent context.Context, force func()) (context.Context, context.CancelFunc) {
	return notify(parent, force, os.Interrupt, syscall.SIGTERM)
}

func notify(parent context.Context, force func(), signals ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, signals...)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigChan:
			if force != nil {
				force()
			}
		case <-done:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
		})
		cancel()
	}
	return ctx, stop
}
