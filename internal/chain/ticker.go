package chain

import "time"

// Ticker is a fixed-period timer with skip-on-lag semantics: if the
// consumer falls behind, missed ticks are coalesced into the next one
// rather than queued. The first tick fires immediately.
type Ticker struct {
	C    <-chan time.Time
	c    chan time.Time
	stop chan struct{}
}

// NewTicker starts a Ticker with the given period.
func NewTicker(period time.Duration) *Ticker {
	c := make(chan time.Time, 1)
	t := &Ticker{C: c, c: c, stop: make(chan struct{})}
	go t.run(period)
	return t
}

func (t *Ticker) run(period time.Duration) {
	// Initial tick fires immediately.
	t.fire()

	inner := time.NewTicker(period)
	defer inner.Stop()
	for {
		select {
		case <-t.stop:
			return
		case now := <-inner.C:
			t.fireAt(now)
		}
	}
}

func (t *Ticker) fire() { t.fireAt(time.Now()) }

// fireAt coalesces: if the channel already holds an unconsumed tick, the
// new one simply replaces it instead of blocking or queuing a second.
func (t *Ticker) fireAt(now time.Time) {
	select {
	case t.c <- now:
	default:
		select {
		case <-t.c:
		default:
		}
		select {
		case t.c <- now:
		default:
		}
	}
}

// Stop releases the Ticker's background goroutine.
func (t *Ticker) Stop() { close(t.stop) }
