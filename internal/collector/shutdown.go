package collector

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// forceExit is replaced in tests.
var forceExit = os.Exit

// SetupSignalHandler returns a context that is cancelled on the first SIGINT or
// SIGTERM, after calling onShutdown if it is non-nil. The spider stops between
// iterations and keeps what it already wrote. A second signal exits at once.
func SetupSignalHandler(parent context.Context, onShutdown func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)

		var sig os.Signal
		select {
		case sig = <-sigCh:
		case <-ctx.Done():
			return
		}
		log.WithField("component", "signal").Warnf("Received %v, finishing current request before stopping", sig)

		if onShutdown != nil {
			onShutdown(sig)
		}
		cancel()

		select {
		case sig = <-sigCh:
			log.WithField("component", "signal").Errorf("Received second %v, forcing exit", sig)
			forceExit(1)
		case <-parent.Done():
		}
	}()

	return ctx, cancel
}
