package driver

import (
	"context"
	"errors"
)

// ErrStopped is returned by Do once Run has returned
var ErrStopped = errors.New("driver stopped")

type request struct {
	fn   func() error
	done chan error
}

// Run executes submitted requests one at a time until ctx is cancelled. Every
// pool, output and screen operation happens on this goroutine.
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.done)

	d.log.Debug("Request loop started")
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Request loop stopped")
			return nil
		case req := <-d.reqs:
			req.done <- req.fn()
		}
	}
}

// Do runs fn on the request goroutine and waits for its result. ctx only
// bounds the wait for the loop to pick the request up; once fn is running Do
// waits for it, so whatever fn writes is visible when Do returns.
func (d *Driver) Do(ctx context.Context, fn func() error) error {
	req := request{fn: fn, done: make(chan error, 1)}

	select {
	case d.reqs <- req:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-req.done
}
