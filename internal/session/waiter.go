package session

import (
	"sync"
	"time"

	"pos-terminal-session/internal/terminal"
)

type collectOutcome int

const (
	outcomeCollected collectOutcome = iota
	outcomeFailed
	outcomeCancelled
	outcomeTimedOut
)

type collectResult struct {
	outcome collectOutcome
	intent  *terminal.PaymentIntent
	err     error
}

// deadlineWaiter races an awaited SDK call against a deadline and an explicit
// cancel trigger. The first signal wins and every later one is dropped, so a
// collection that "succeeds" at the SDK layer after the cardholder cancelled
// never surfaces as a success. Both the timeout path and the user-cancel path
// go through the same mechanism.
type deadlineWaiter struct {
	once    sync.Once
	done    chan collectResult
	settled chan struct{}
	timer   *time.Timer
}

func newDeadlineWaiter(timeout time.Duration) *deadlineWaiter {
	w := &deadlineWaiter{
		done:    make(chan collectResult, 1),
		settled: make(chan struct{}),
	}
	w.timer = time.NewTimer(timeout)
	go func() {
		select {
		case <-w.timer.C:
			w.settle(collectResult{outcome: outcomeTimedOut})
		case <-w.settled:
		}
	}()
	return w
}

func (w *deadlineWaiter) settle(r collectResult) {
	w.once.Do(func() {
		w.timer.Stop()
		close(w.settled)
		w.done <- r
	})
}

func (w *deadlineWaiter) resolveCollected(intent *terminal.PaymentIntent) {
	w.settle(collectResult{outcome: outcomeCollected, intent: intent})
}

func (w *deadlineWaiter) resolveFailed(err error) {
	w.settle(collectResult{outcome: outcomeFailed, err: err})
}

func (w *deadlineWaiter) cancel() {
	w.settle(collectResult{outcome: outcomeCancelled})
}

// wait blocks until the first signal arrives.
func (w *deadlineWaiter) wait() collectResult {
	return <-w.done
}
