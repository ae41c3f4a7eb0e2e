// Package vm reconciles libvirt domains with requested lifecycle states.
//
// The operations are:
//   - Create: ensure a domain exists, defining it from a descriptor if absent
//   - Update: redefine a domain, preserving its identity, optionally restarting it
//   - Start: boot a domain and optionally wait until it is running
//   - Stop: shut down or destroy a domain and optionally wait until it is stopped
//   - Delete: remove a domain and, optionally, the volumes it references
//   - List and State: report domains and their current state
//
// Connections:
//
// Every operation opens its own connection to the hypervisor and closes it on
// return, whatever the outcome. A wait reuses the operation's connection for
// all of its polls.
//
// Waiting:
//
// StateWaiter polls with exponential backoff (100ms doubling to 2s by
// default) until the domain reaches a target state. It fails fast when the
// domain settles in a state from which the target is unreachable, such as
// Paused or Crashed, and otherwise fails once the wait budget is spent.
//
// Error Handling:
//
// Failures are returned as *OperationError naming the operation, domain and
// step. The underlying cause matches one of the package sentinels
// (ErrDomainNotFound, ErrTimeout, ...) with errors.Is. Nothing is retried
// except the state read inside a wait. Volume deletion failures during Delete
// are logged and skipped.
//
// Context Support:
//
// All operations accept a context.Context. Cancelling it aborts a wait
// promptly with ErrCancelled. The logger attached to the context with
// zerolog's WithContext is used for all operation logging.
package vm
