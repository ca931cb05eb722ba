// Copyright (c) 2013 Conformal Systems LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package interrupt allows to handle interrupts.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mutecomm/lipsync/log"
)

// ShutdownChannel is used to signal that shutdown is in progress.
var ShutdownChannel = make(chan error)

var (
	mu       sync.Mutex
	handlers []func()
	started  bool
)

// Signals are the signals which trigger the interrupt handlers.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// run waits for a signal, invokes the registered handlers in order, and
// signals the main goroutine to shut down.
func run(sigc <-chan os.Signal) {
	sig := <-sigc
	log.Infof("received %s, shutting down...", sig)
	for _, handler := range registered() {
		handler()
	}
	ShutdownChannel <- nil
}

func registered() []func() {
	mu.Lock()
	defer mu.Unlock()
	return append([]func(){}, handlers...)
}

// AddInterruptHandler adds a handler to call when one of Signals is
// received (SIGINT or SIGTERM). The first call installs the signal handler.
func AddInterruptHandler(handler func()) {
	mu.Lock()
	defer mu.Unlock()
	handlers = append(handlers, handler)
	if !started {
		started = true
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, Signals...)
		go run(sigc)
	}
}
