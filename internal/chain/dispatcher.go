package chain

import "context"

// Dispatcher offloads blocking work (RPC calls, transaction signing, the
// confirmation poll) onto a bounded pool of goroutines so that it never
// runs on the same goroutine that drives a WebSocket subscription or a
// Ticker — doing so would stall the stream and cause missed events.
type Dispatcher struct {
	sem chan struct{}
}

// NewDispatcher creates a Dispatcher with the given maximum concurrency.
func NewDispatcher(concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{sem: make(chan struct{}, concurrency)}
}

// Go runs fn on the pool, fire-and-forget: the caller does not wait for
// completion. Used by Crank's independent per-chunk dispatches, where
// there is no back-pressure between periods.
func (d *Dispatcher) Go(fn func()) {
	d.sem <- struct{}{}
	go func() {
		defer func() { <-d.sem }()
		fn()
	}()
}

// Run runs fn on the pool and blocks the caller until fn returns or ctx is
// cancelled. Used wherever the result of the blocking work is needed
// before the caller can proceed (e.g. the consumer loop's per-tick
// dispatch, or the liquidator's evaluate-then-dispatch sequence).
func (d *Dispatcher) Run(ctx context.Context, fn func() error) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.sem }()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
