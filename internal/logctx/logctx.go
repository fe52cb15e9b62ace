// Package logctx carries a *zerolog.Logger on a context.Context, the
// same context-scoped-logger pattern as cs3org-reva's pkg/appctx
// (zerolog.Ctx/l.WithContext) rather than a package-global logger: the
// server's request middleware attaches request-scoped fields (request_id,
// method, path) without a global mutable logger configuration.
package logctx

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New builds the process-wide root logger: pretty console output when
// out is a terminal, structured JSON otherwise.
func New(out *os.File) zerolog.Logger {
	var w io.Writer = out
	if isTerminal(out) {
		w = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// With attaches logger to ctx, retrievable via From.
func With(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// From returns the logger carried on ctx, or zerolog's disabled logger
// if none was attached (matching appctx.GetLogger's silent-no-op
// fallback rather than panicking on a bare context.Background()).
func From(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// NewRequestID mints a request identifier for request-scoped logging and
// any journal/refresh-operation correlation, per SPEC_FULL's ambient
// logging fields.
func NewRequestID() string {
	return uuid.NewString()
}
