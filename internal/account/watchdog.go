package account

import (
	"context"
	"sync"
	"time"
)

// DefaultOperationTimeout is the watchdog interval spec.md §4.5/§7 name
// ("default per-operation watchdog (configurable, ≈30s)") for an Account
// that hasn't been given an explicit one via SetOperationTimeout.
const DefaultOperationTimeout = 30 * time.Second

// Watchdog implements spec.md §4.5's timeout policy: a single timer that
// trips the operation's cancellation scope on stalled forward progress,
// and is pushed back out by Reset every time a streaming operation
// delivers a chunk. Grounded on the original implementation's
// TimingOutStopToken and TimingOutCloudProvider::InstallTimer — there,
// each chunk installs a brand new timer task that requests_stop if no
// later chunk supersedes it before it fires; here the same effect comes
// from one resettable time.Timer rather than a chain of goroutines.
type Watchdog struct {
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	armed   bool
}

// WithWatchdog derives a context from parent that is cancelled either when
// parent is done or when timeout elapses without an intervening Reset.
// The caller must eventually call the returned Watchdog's Stop (directly,
// or via the CancelFunc a wrapper like Account.WatchedRequestContext
// returns) to release the timer once the guarded operation has finished.
func WithWatchdog(parent context.Context, timeout time.Duration) (context.Context, *Watchdog) {
	ctx, cancel := context.WithCancel(parent)
	w := &Watchdog{cancel: cancel, timeout: timeout, armed: true}
	w.timer = time.AfterFunc(timeout, w.trip)
	return ctx, w
}

func (w *Watchdog) trip() {
	w.mu.Lock()
	w.armed = false
	w.mu.Unlock()
	w.cancel()
}

// Reset records forward progress — a chunk handed to the caller, or any
// other unit of work the wrapped operation considers "made progress" —
// pushing the deadline out by another full interval. A no-op once the
// watchdog has already tripped or been stopped.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	if !w.timer.Stop() {
		// trip() is already running or has already fired; too late.
		return
	}
	w.timer.Reset(w.timeout)
}

// Stop disarms the watchdog without tripping its context, releasing the
// timer. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	w.armed = false
	w.timer.Stop()
}
