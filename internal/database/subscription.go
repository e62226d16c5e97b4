package database

import (
	"context"
	"sync/atomic"
	"time"
)

// SubscriptionState tracks the lifecycle of a live feed:
// Connecting -> Live -> {Disconnected -> Reconnecting -> Live} -> Cancelled.
// Cancelled is terminal.
type SubscriptionState int32

const (
	StateConnecting SubscriptionState = iota
	StateLive
	StateDisconnected
	StateReconnecting
	StateCancelled
)

func (s SubscriptionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// reconnectDelay is the pause before re-opening a change stream after a
// transient failure. Variable so tests can shorten it.
var reconnectDelay = 2 * time.Second

// Subscription is the cancellation handle for a live feed. All callbacks
// run on the feed's own goroutine; Cancel stops the feed and waits for
// that goroutine to exit, so no callback fires after Cancel returns.
// Cancel must not be called from inside a callback.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	s := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State reports the feed's current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// Cancel stops delivery. It is idempotent and blocks until the delivery
// goroutine has exited.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
	s.state.Store(int32(StateCancelled))
}

func (s *Subscription) setState(state SubscriptionState) {
	s.state.Store(int32(state))
}

// sleepOrDone pauses between reconnect attempts, returning false when the
// subscription was cancelled during the pause.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
