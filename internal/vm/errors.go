package vm

import (
	"errors"
	"fmt"
	"time"

	"github.com/jbweber/kiln/internal/status"
)

// Sentinel errors. Each typed error below matches its sentinel with errors.Is.
var (
	ErrConnection         = errors.New("hypervisor connection failed")
	ErrDomainNotFound     = errors.New("domain not found")
	ErrDomainBusy         = errors.New("domain is active")
	ErrAlreadyActive      = errors.New("domain is already active")
	ErrTimeout            = errors.New("timed out waiting for domain state")
	ErrNonConvergentState = errors.New("domain reached a non-convergent state")
	ErrCancelled          = errors.New("wait cancelled")
)

// Step names the part of an operation that failed.
type Step string

const (
	StepValidate   Step = "validate"
	StepConnect    Step = "connect"
	StepLookup     Step = "lookup"
	StepDescriptor Step = "descriptor"
	StepDefine     Step = "define"
	StepCreate     Step = "create"
	StepShutdown   Step = "shutdown"
	StepDestroy    Step = "destroy"
	StepUndefine   Step = "undefine"
	StepWait       Step = "wait"
	StepState      Step = "state"
	StepList       Step = "list"
)

// OperationError is returned by every lifecycle operation. It names the
// operation, the domain and the step that failed.
type OperationError struct {
	Op     string
	Domain string
	Step   Step
	Err    error
}

func (e *OperationError) Error() string {
	if e.Domain == "" {
		return fmt.Sprintf("%s: %s failed: %v", e.Op, e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s: %s failed: %v", e.Op, e.Domain, e.Step, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func opError(op, domain string, step Step, err error) error {
	return &OperationError{Op: op, Domain: domain, Step: step, Err: err}
}

// ConnectionError reports a transport or authentication failure.
type ConnectionError struct {
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// DomainNotFoundError reports that no domain has the requested name.
type DomainNotFoundError struct {
	Name string
	Err  error
}

func (e *DomainNotFoundError) Error() string {
	return fmt.Sprintf("domain %q not found", e.Name)
}

func (e *DomainNotFoundError) Unwrap() error { return e.Err }

func (e *DomainNotFoundError) Is(target error) bool { return target == ErrDomainNotFound }

// DomainBusyError reports an undefine attempted while the domain is active.
type DomainBusyError struct {
	Name  string
	State status.State
}

func (e *DomainBusyError) Error() string {
	return fmt.Sprintf("domain %q is %s and must be stopped first", e.Name, e.State)
}

func (e *DomainBusyError) Is(target error) bool { return target == ErrDomainBusy }

// AlreadyActiveError reports a boot request for a domain that is already
// active. Callers that only need the domain up treat it as success.
type AlreadyActiveError struct {
	Name  string
	State status.State
	Err   error
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("domain %q is already active (%s)", e.Name, e.State)
}

func (e *AlreadyActiveError) Unwrap() error { return e.Err }

func (e *AlreadyActiveError) Is(target error) bool { return target == ErrAlreadyActive }

// NonConvergentStateError reports that a waited-on domain reached a state
// from which the target cannot be reached without intervention.
type NonConvergentStateError struct {
	Name   string
	State  status.State
	Target status.Set
}

func (e *NonConvergentStateError) Error() string {
	return fmt.Sprintf("domain %q reached %s while waiting for %s", e.Name, e.State, e.Target)
}

func (e *NonConvergentStateError) Is(target error) bool { return target == ErrNonConvergentState }

// TimeoutError reports that the wait budget ran out.
type TimeoutError struct {
	Name    string
	Last    status.State
	Target  status.Set
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("domain %q still %s after %s waiting for %s", e.Name, e.Last, e.Timeout, e.Target)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CancelledError reports that the caller aborted a wait.
type CancelledError struct {
	Name string
	Last status.State
	Err  error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("wait for domain %q cancelled in state %s: %v", e.Name, e.Last, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }
