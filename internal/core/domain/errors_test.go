package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify_TypedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{&NetworkError{Op: "publish", Err: errors.New("connection refused")}, KindNetwork},
		{&AuthError{Op: "subscribe", Err: errors.New("token expired")}, KindAuth},
		{&ValidationError{Field: "session code", Reason: "no such session"}, KindValidation},
		{&StateError{Entity: "message", From: "displayed", To: "queued"}, KindState},
	}

	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestClassify_Wrapped(t *testing.T) {
	inner := &AuthError{Op: "join", Err: errors.New("bad credentials")}
	wrapped := fmt.Errorf("initialize session: %w", inner)
	if Classify(wrapped) != KindAuth {
		t.Error("wrapped auth error should still classify as auth")
	}
}

func TestClassify_Heuristics(t *testing.T) {
	if Classify(errors.New("HTTP 401 Unauthorized")) != KindAuth {
		t.Error("401 should classify as auth")
	}
	if Classify(errors.New("dial tcp: i/o timeout")) != KindNetwork {
		t.Error("timeouts default to network")
	}
	if Classify(errors.New("session not found")) != KindValidation {
		t.Error("not found should classify as validation")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(&NetworkError{Op: "probe", Err: errors.New("eof")}) {
		t.Error("network errors are retryable")
	}
	if Retryable(&AuthError{Op: "probe", Err: errors.New("expired")}) {
		t.Error("auth errors are never retryable")
	}
	if Retryable(nil) {
		t.Error("nil is not retryable")
	}
}
