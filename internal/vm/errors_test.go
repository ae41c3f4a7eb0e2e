package vm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jbweber/kiln/internal/status"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("underlying")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "connection", err: &ConnectionError{URI: "qemu:///system", Err: cause}, sentinel: ErrConnection},
		{name: "not found", err: &DomainNotFoundError{Name: "vm1", Err: cause}, sentinel: ErrDomainNotFound},
		{name: "busy", err: &DomainBusyError{Name: "vm1", State: status.StateRunning}, sentinel: ErrDomainBusy},
		{name: "already active", err: &AlreadyActiveError{Name: "vm1", State: status.StateRunning, Err: cause}, sentinel: ErrAlreadyActive},
		{name: "non-convergent", err: &NonConvergentStateError{Name: "vm1", State: status.StatePaused, Target: running}, sentinel: ErrNonConvergentState},
		{name: "timeout", err: &TimeoutError{Name: "vm1", Last: status.StateInShutdown, Target: running, Timeout: time.Second}, sentinel: ErrTimeout},
		{name: "cancelled", err: &CancelledError{Name: "vm1", Last: status.StateInShutdown, Err: context.Canceled}, sentinel: ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := opError("op", "vm1", StepWait, tt.err)

			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("expected %v to match %v", wrapped, tt.sentinel)
			}
			if tt.err.Error() == "" {
				t.Error("expected a non-empty message")
			}

			for _, other := range []error{ErrConnection, ErrDomainNotFound, ErrDomainBusy, ErrAlreadyActive, ErrNonConvergentState, ErrTimeout, ErrCancelled} {
				if other != tt.sentinel && errors.Is(tt.err, other) {
					t.Errorf("%T should not match %v", tt.err, other)
				}
			}
		})
	}
}

func TestOperationError_Message(t *testing.T) {
	cause := errors.New("boom")

	withDomain := opError("stop", "vm1", StepShutdown, cause)
	if got, want := withDomain.Error(), "stop vm1: shutdown failed: boom"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	listErr := opError("list", "", StepList, cause)
	if got, want := listErr.Error(), "list: list failed: boom"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if !errors.Is(withDomain, cause) {
		t.Error("expected OperationError to unwrap to its cause")
	}
}
