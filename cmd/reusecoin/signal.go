// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// interruptSignals are the signals that stop a run cleanly.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// withInterrupt returns a context that is canceled on the first interrupt
// signal, and a function releasing the signal handler. A phase in flight
// observes the cancellation and the run stops at the last recorded state.
func withInterrupt(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, interruptSignals...)

	go func() {
		select {
		case sig := <-interruptChannel:
			log.Infof("Received signal (%s).  Shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(interruptChannel)
		cancel()
	}
}
