// Package errchannel reports the first serving failure among workers of a process.
package errchannel

import (
	"sync"

	"go.uber.org/atomic"
)

// ServeError is a failure of the worker serving on Host.
type ServeError struct {
	Host string
	Err  error
}

func (e *ServeError) Error() string {
	return "serve " + e.Host + ": " + e.Err.Error()
}

func (e *ServeError) Unwrap() error {
	return e.Err
}

// ErrChannel delivers the first ServeError sent to it. Failures arriving after the first,
// or after Close, are dropped and counted.
type ErrChannel struct {
	mu      sync.Mutex
	channel chan error
	closed  bool
	dropped atomic.Int64
}

func New() *ErrChannel {
	return &ErrChannel{
		channel: make(chan error, 1),
	}
}

// Send reports that the worker on host stopped serving with err.
func (e *ErrChannel) Send(host string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.dropped.Inc()
		return
	}
	select {
	case e.channel <- &ServeError{Host: host, Err: err}:
	default:
		e.dropped.Inc()
	}
}

func (e *ErrChannel) Recv() <-chan error {
	return e.channel
}

// Dropped is the number of failures which were not delivered.
func (e *ErrChannel) Dropped() int64 {
	return e.dropped.Load()
}

func (e *ErrChannel) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.channel)
	}
}
