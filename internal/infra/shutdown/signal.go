// Package shutdown provides process termination handling for DocMesh.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

// BindSignals installs a minimal interrupt bridge: the first SIGINT or
// SIGTERM sets the flag and resets the signal's disposition to the
// default, so a repeated signal terminates the process immediately
// instead of re-entering shutdown.
//
// The notify goroutine performs only the disposition reset and the
// flag write. No logging or other work happens here; the supervisory
// loop logs when it observes the flag.
func BindSignals(flag *Flag) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		signal.Reset(sig)
		flag.Set()
	}()
}
