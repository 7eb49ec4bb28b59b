package scraper

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorRendering(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{newError(KindClientBuild, errors.New("no tls")), "Failed to build client: no tls"},
		{newError(KindTransport, errors.New("dial tcp: refused")), "Request failed: dial tcp: refused"},
		{&Error{Kind: KindStatus, Detail: "404 Not Found", StatusCode: 404}, "HTTP error: 404 Not Found"},
		{newError(KindBodyRead, io.ErrUnexpectedEOF), "Failed to get bytes: unexpected EOF"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error() = %q, want %q", got, tc.want)
		}
	}
}

func TestErrorMatchesOnlyItsSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindBodyRead, io.ErrUnexpectedEOF))

	if !errors.Is(err, ErrBodyRead) {
		t.Fatalf("expected ErrBodyRead match")
	}
	for _, other := range []error{ErrClientBuild, ErrTransport, ErrStatus} {
		if errors.Is(err, other) {
			t.Fatalf("unexpected match with %v", other)
		}
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if kind, ok := KindOf(err); !ok || kind != KindBodyRead {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("plain error must not carry a kind")
	}
}
