package account

import (
	"context"
	"testing"
	"time"
)

func TestWatchdogTripsOnStall(t *testing.T) {
	ctx, wd := WithWatchdog(context.Background(), 20*time.Millisecond)
	defer wd.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("watchdog never tripped on a stalled operation")
	}
}

func TestWatchdogResetSurvivesPastOriginalDeadline(t *testing.T) {
	ctx, wd := WithWatchdog(context.Background(), 30*time.Millisecond)
	defer wd.Stop()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		wd.Reset()
	}

	select {
	case <-ctx.Done():
		t.Fatal("watchdog tripped despite continuous progress resetting it")
	default:
	}
}

func TestWatchdogStopPreventsTrip(t *testing.T) {
	ctx, wd := WithWatchdog(context.Background(), 10*time.Millisecond)
	wd.Stop()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-ctx.Done():
		t.Fatal("Stop should have disarmed the watchdog before it could trip")
	default:
	}
}

func TestWatchdogTripCancelsParentDerivedContext(t *testing.T) {
	parent := context.Background()
	ctx, wd := WithWatchdog(parent, 10*time.Millisecond)
	defer wd.Stop()

	<-ctx.Done()
	if ctx.Err() != context.Canceled {
		t.Fatalf("expected context.Canceled after trip, got %v", ctx.Err())
	}
}

func TestAccountWatchedRequestContextDisarmedByZeroTimeout(t *testing.T) {
	cache := &Account{stopCtx: context.Background()}
	cache.stopCtx, cache.stopCancel = context.WithCancel(context.Background())
	cache.operationTimeout = 0

	ctx, wd, cancel := cache.WatchedRequestContext(context.Background())
	defer cancel()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-ctx.Done():
		t.Fatal("a zero operationTimeout must disable the watchdog entirely")
	default:
	}
	wd.Reset() // must not panic on the disarmed zero-value Watchdog
}
