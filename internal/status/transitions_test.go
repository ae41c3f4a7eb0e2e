package status

import (
	"errors"
	"testing"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name      string
		from      State
		action    Action
		want      State
		wantError bool
	}{
		{name: "create from stopped", from: StateDefinedStopped, action: ActionCreate, want: StateRunning},
		{name: "create from crashed", from: StateCrashed, action: ActionCreate, want: StateRunning},
		{name: "create while running", from: StateRunning, action: ActionCreate, wantError: true},
		{name: "create while paused", from: StatePaused, action: ActionCreate, wantError: true},
		{name: "shutdown running", from: StateRunning, action: ActionShutdown, want: StateInShutdown},
		{name: "shutdown stopped", from: StateDefinedStopped, action: ActionShutdown, wantError: true},
		{name: "guest completes shutdown", from: StateInShutdown, action: ActionGuestHalt, want: StateDefinedStopped},
		{name: "destroy running", from: StateRunning, action: ActionDestroy, want: StateDefinedStopped},
		{name: "destroy paused", from: StatePaused, action: ActionDestroy, want: StateDefinedStopped},
		{name: "destroy in shutdown", from: StateInShutdown, action: ActionDestroy, want: StateDefinedStopped},
		{name: "destroy stopped", from: StateDefinedStopped, action: ActionDestroy, wantError: true},
		{name: "undefine stopped", from: StateDefinedStopped, action: ActionUndefine, want: StateDestroyed},
		{name: "undefine running", from: StateRunning, action: ActionUndefine, wantError: true},
		{name: "undefine paused", from: StatePaused, action: ActionUndefine, wantError: true},
		{name: "undefine in shutdown", from: StateInShutdown, action: ActionUndefine, wantError: true},
		{name: "pause running", from: StateRunning, action: ActionPause, want: StatePaused},
		{name: "resume paused", from: StatePaused, action: ActionResume, want: StateRunning},
		{name: "crash running", from: StateRunning, action: ActionCrash, want: StateCrashed},
		{name: "nothing leaves destroyed", from: StateDestroyed, action: ActionCreate, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.from, tt.action)

			if tt.wantError {
				var terr *TransitionError
				if !errors.As(err, &terr) {
					t.Fatalf("expected *TransitionError, got %v", err)
				}
				// State must not change on an invalid transition
				if got != tt.from {
					t.Errorf("state changed on error: got %s, want %s", got, tt.from)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Next(%s, %s) = %s, want %s", tt.from, tt.action, got, tt.want)
			}
		})
	}
}
