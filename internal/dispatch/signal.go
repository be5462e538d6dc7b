package dispatch

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/neoclaw-ai/teledispatch/internal/logging"
)

// SetupSignalHandler shuts dispatching down on SIGINT or SIGTERM until ctx
// ends. A signal received while the dispatcher is idle is logged and ignored.
func (d *Dispatcher) SetupSignalHandler(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		d.watchSignals(ctx, sigCh)
	}()
}

func (d *Dispatcher) watchSignals(ctx context.Context, sigCh <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			done, err := d.state.Shutdown()
			if err != nil {
				logging.Logger().Info("signal received, the dispatcher isn't running, ignoring the signal", "signal", sig.String())
				continue
			}
			logging.Logger().Info("signal received, trying to shut down the dispatcher", "signal", sig.String())
			select {
			case <-done:
				logging.Logger().Info("dispatcher is shut down")
			case <-ctx.Done():
				return
			}
		}
	}
}
