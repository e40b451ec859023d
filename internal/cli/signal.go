package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Interrupted reports that a command stopped because the process received a
// signal. The run it was driving is left resumable.
type Interrupted struct {
	Signal os.Signal
}

func (e *Interrupted) Error() string {
	return fmt.Sprintf("interrupted by %v", e.Signal)
}

// ExitCode follows the shell convention of 128 plus the signal number.
func (e *Interrupted) ExitCode() int {
	if s, ok := e.Signal.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}

// SignalContext is cancelled by the first of its watched signals and
// remembers which one arrived.
type SignalContext struct {
	context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	received os.Signal
}

// NewSignalContext watches sigs, or SIGINT and SIGTERM when none are given.
// Call Stop to release the watcher.
func NewSignalContext(parent context.Context, sigs ...os.Signal) *SignalContext {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go sc.watch(ch)
	return sc
}

func (sc *SignalContext) watch(ch chan os.Signal) {
	defer signal.Stop(ch)
	select {
	case sig := <-ch:
		sc.mu.Lock()
		sc.received = sig
		sc.mu.Unlock()
		sc.cancel()
	case <-sc.Done():
	}
}

// Stop cancels the context and stops watching.
func (sc *SignalContext) Stop() {
	sc.cancel()
}

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.received
}

// Cause returns an *Interrupted once a signal has arrived, nil otherwise.
func (sc *SignalContext) Cause() error {
	if sig := sc.Signal(); sig != nil {
		return &Interrupted{Signal: sig}
	}
	return nil
}
