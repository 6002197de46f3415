// ABOUTME: Repeating keep-alive timer used for client and exec heartbeats
// ABOUTME: Runs fn every interval until stopped or until fn returns an error

package heartbeat

import (
	"sync"
	"time"
)

// Ticker calls a function on a fixed interval in a background goroutine.
// The next tick is scheduled only after fn returns, so calls never overlap.
type Ticker struct {
	done    chan struct{}
	exited  chan struct{}
	stopped sync.Once
}

// Start begins calling fn every interval. The first call happens after one
// interval has elapsed. An error from fn ends the ticker.
func Start(interval time.Duration, fn func() error) *Ticker {
	t := &Ticker{
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go t.run(interval, fn)
	return t
}

func (t *Ticker) run(interval time.Duration, fn func() error) {
	defer close(t.exited)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-timer.C:
			if err := fn(); err != nil {
				return
			}
			timer.Reset(interval)
		}
	}
}

// Stop cancels future ticks and waits for an in-flight call to finish.
// It is safe to call multiple times and on a nil Ticker.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.stopped.Do(func() { close(t.done) })
	<-t.exited
}
