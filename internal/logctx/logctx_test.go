package logctx

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithThenFromRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := With(context.Background(), logger)

	From(ctx).Info().Str("account_id", "[memory] alice").Msg("test")
	if buf.Len() == 0 {
		t.Error("expected log output through the context-carried logger")
	}
}

func TestFromWithoutLoggerReturnsDisabled(t *testing.T) {
	l := From(context.Background())
	if l.GetLevel() != zerolog.Disabled {
		t.Errorf("expected disabled logger for a bare context, got level %v", l.GetLevel())
	}
}

func TestNewRequestIDsAreUnique(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == b {
		t.Error("expected distinct request ids")
	}
}
