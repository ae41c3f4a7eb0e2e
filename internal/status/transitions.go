package status

import "fmt"

// Action is something that moves a domain between states.
type Action string

const (
	// ActionCreate boots a defined domain.
	ActionCreate Action = "create"
	// ActionShutdown asks the guest to power off.
	ActionShutdown Action = "shutdown"
	// ActionDestroy hard-stops an active domain.
	ActionDestroy Action = "destroy"
	// ActionUndefine removes the persistent definition.
	ActionUndefine Action = "undefine"

	// The remaining actions happen outside this system: the guest finishing
	// its shutdown, an operator pausing or resuming, or the guest crashing.
	ActionGuestHalt Action = "guest-halt"
	ActionPause     Action = "pause"
	ActionResume    Action = "resume"
	ActionCrash     Action = "crash"
)

// TransitionError is returned when an action is not valid from a state.
type TransitionError struct {
	From   State
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s domain in state %s", e.Action, e.From)
}

// Next returns the state a domain in state from reaches after action.
// Returns a *TransitionError if the action is not valid from that state.
func Next(from State, action Action) (State, error) {
	switch action {
	case ActionCreate:
		// Crashed domains are inactive and can be booted again
		if from == StateDefinedStopped || from == StateCrashed {
			return StateRunning, nil
		}
	case ActionShutdown:
		if from == StateRunning {
			return StateInShutdown, nil
		}
	case ActionDestroy:
		if IsActive(from) {
			return StateDefinedStopped, nil
		}
	case ActionUndefine:
		if from == StateDefinedStopped || from == StateCrashed {
			return StateDestroyed, nil
		}
	case ActionGuestHalt:
		if from == StateInShutdown {
			return StateDefinedStopped, nil
		}
	case ActionPause:
		if from == StateRunning {
			return StatePaused, nil
		}
	case ActionResume:
		if from == StatePaused {
			return StateRunning, nil
		}
	case ActionCrash:
		if from == StateRunning || from == StatePaused {
			return StateCrashed, nil
		}
	}

	return from, &TransitionError{From: from, Action: action}
}
