package errs

import (
	"errors"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("item1"), 404},
		{"unauthorized", Unauthorized("token expired"), 401},
		{"invalid", Invalid("bad range"), 400},
		{"cancelled", Cancelled("stop token fired"), 499},
		{"unsupported maps to 500", Unsupported("rename"), 500},
		{"retry maps to 500", Retry("upstream flaky"), 500},
		{"http error keeps its own status", &HttpError{Status: 503, Body: []byte("busy")}, 503},
		{"io error maps to 500", &Io{Op: "read", Err: errors.New("boom")}, 500},
		{"nil is 200", nil, 200},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := HTTPStatus(c.err); got != c.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
			}
		})
	}
}

func TestIoUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	wrapped := &Io{Op: "get_file_content", Err: inner}
	if !errors.Is(wrapped, inner) {
		t.Fatal("expected errors.Is to see through Io.Unwrap")
	}
}
