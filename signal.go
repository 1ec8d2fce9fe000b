package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext derives a context that is cancelled by the first SIGINT or
// SIGTERM. Running transfers notice through their progress callback, which
// answers Cancel so the engine removes partial output and the journal rolls
// back. A second signal exits immediately with exitCancelled.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	return watchSignals(parent, logger, func() { os.Exit(exitCancelled) })
}

func watchSignals(parent context.Context, logger *slog.Logger, forceExit func()) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		for received := 0; ; {
			select {
			case sig := <-sigCh:
				if parent.Err() != nil {
					cancel()

					return
				}

				received++
				if received == 1 {
					logger.Info("interrupt received, cancelling transfers",
						slog.String("signal", sig.String()))
					cancel()

					continue
				}

				logger.Warn("second interrupt, exiting", slog.String("signal", sig.String()))
				forceExit()

				return
			case <-parent.Done():
				cancel()

				return
			}
		}
	}()

	return ctx
}
