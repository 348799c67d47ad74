package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		code    int
		blocked bool
	}{
		{403, true},
		{412, true},
		{503, true},
		{404, false},
		{500, false},
		{200, false},
	}

	for _, tt := range tests {
		err := fmt.Errorf("fetch: %w", &StatusError{Code: tt.code, URL: "http://example.com"})
		code, blocked := IsBlocked(err)
		if blocked != tt.blocked {
			t.Errorf("code %d: IsBlocked = %v, want %v", tt.code, blocked, tt.blocked)
		}
		if blocked && code != tt.code {
			t.Errorf("code %d: extracted %d", tt.code, code)
		}
	}
}

func TestIsBlocked_NonStatusError(t *testing.T) {
	if _, blocked := IsBlocked(errors.New("boom")); blocked {
		t.Error("plain error should not be blocked")
	}
	if _, blocked := IsBlocked(nil); blocked {
		t.Error("nil error should not be blocked")
	}
}

func TestStatusCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &StatusError{Code: 429, URL: "u"})
	if got := StatusCode(err); got != 429 {
		t.Errorf("StatusCode = %d, want 429", got)
	}
	if got := StatusCode(errors.New("no status")); got != 0 {
		t.Errorf("StatusCode = %d, want 0", got)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable 500", &StatusError{Code: 500}, true},
		{"retryable 429", &StatusError{Code: 429}, true},
		{"blocking 403", &StatusError{Code: 403}, false},
		{"blocking 412", &StatusError{Code: 412}, false},
		{"blocking 503", &StatusError{Code: 503}, false},
		{"permanent 404", &StatusError{Code: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"message match", errors.New("read tcp: connection reset by peer"), true},
		{"dns", errors.New("dial tcp: lookup x: no such host"), true},
		{"permanent", errors.New("invalid patent number"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be a timeout")
	}
	if IsTimeout(errors.New("not a timeout")) {
		t.Error("plain error should not be a timeout")
	}
}
