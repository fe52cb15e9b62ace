package webdavadapter

import "context"

// progressResetter is the single method this package needs from
// internal/account.Watchdog. Declaring it locally instead of importing
// the concrete type keeps this adapter decoupled from how the timeout
// policy is implemented — it only needs "tell it progress happened".
type progressResetter interface {
	Reset()
}

type watchdogCtxKey struct{}

// WithWatchdog attaches wd to ctx so every webdav.FileSystem method this
// package's Handler eventually calls can report progress on it. Per
// spec.md §4.5, a PUT/GET body streamed chunk by chunk should reset the
// watchdog on each chunk so a slow-but-progressing transfer survives
// while a stalled one still trips.
func WithWatchdog(ctx context.Context, wd progressResetter) context.Context {
	return context.WithValue(ctx, watchdogCtxKey{}, wd)
}

// resetProgress resets whatever watchdog ctx carries, if any. A no-op
// when the Handler wasn't wrapped with a watchdog-attaching middleware.
func resetProgress(ctx context.Context) {
	if wd, ok := ctx.Value(watchdogCtxKey{}).(progressResetter); ok {
		wd.Reset()
	}
}
