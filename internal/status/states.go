// Package status models the lifecycle states of a libvirt domain and the
// transitions the lifecycle operations are allowed to drive.
package status

import (
	"fmt"
	"sort"
	"strings"

	"github.com/digitalocean/go-libvirt"
)

// State is the human-readable lifecycle state of a domain.
type State string

const (
	// StateDefinedStopped is a persistent domain that is not running.
	StateDefinedStopped State = "Defined-Stopped"
	// StateRunning is an active domain executing guest code.
	StateRunning State = "Running"
	// StatePaused is an active domain whose vCPUs are suspended.
	StatePaused State = "Paused"
	// StateCrashed is a domain whose guest crashed.
	StateCrashed State = "Crashed"
	// StateInShutdown is a domain whose guest is processing a shutdown request.
	StateInShutdown State = "In-Shutdown"
	// StateDestroyed is terminal: the domain definition no longer exists.
	StateDestroyed State = "Destroyed"
)

// FromLibvirt maps a libvirt domain state onto the lifecycle state model.
//
// Blocked domains are running from the guest's point of view and PM-suspended
// domains are held like paused ones. NOSTATE is only ever observed while the
// hypervisor is moving a domain between states, so it is reported as
// In-Shutdown, which no waiter treats as either a target or a dead end.
func FromLibvirt(s libvirt.DomainState) State {
	switch s {
	case libvirt.DomainRunning, libvirt.DomainBlocked:
		return StateRunning
	case libvirt.DomainPaused, libvirt.DomainPmsuspended:
		return StatePaused
	case libvirt.DomainShutdown, libvirt.DomainNostate:
		return StateInShutdown
	case libvirt.DomainShutoff:
		return StateDefinedStopped
	case libvirt.DomainCrashed:
		return StateCrashed
	default:
		return StateInShutdown
	}
}

// Parse converts a state name (case-insensitive) into a State.
func Parse(s string) (State, error) {
	for _, st := range All() {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown domain state: %s", s)
}

// All returns every lifecycle state in declaration order.
func All() []State {
	return []State{
		StateDefinedStopped,
		StateRunning,
		StatePaused,
		StateCrashed,
		StateInShutdown,
		StateDestroyed,
	}
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// IsActive returns true if the hypervisor considers the domain active.
// An active domain cannot be undefined.
func IsActive(s State) bool {
	return s == StateRunning || s == StatePaused || s == StateInShutdown
}

// Set is an unordered collection of states.
type Set map[State]struct{}

// NewSet builds a Set from the given states.
func NewSet(states ...State) Set {
	set := make(Set, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return set
}

// Has reports whether s is a member of the set.
func (set Set) Has(s State) bool {
	_, ok := set[s]
	return ok
}

// String renders the set as a sorted, comma separated list.
func (set Set) String() string {
	names := make([]string, 0, len(set))
	for s := range set {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ", ") + "}"
}
