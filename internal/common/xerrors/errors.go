// Package xerrors defines the typed error kinds used throughout xenosync,
// matching the error taxonomy of the orchestration design: configuration
// failures, per-agent channel failures, exhausted recovery, merge outcomes,
// timeouts, and user interruption.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories the orchestrator reacts to.
type Kind string

const (
	KindConfig              Kind = "CONFIG_ERROR"
	KindChannel              Kind = "CHANNEL_ERROR"
	KindAgentRecoveryExhausted Kind = "AGENT_RECOVERY_EXHAUSTED"
	KindMergeConflict        Kind = "MERGE_CONFLICT"
	KindMergeFailure         Kind = "MERGE_FAILURE"
	KindTimeout              Kind = "TIMEOUT"
	KindInterrupted          Kind = "INTERRUPTED"
)

// Error is the concrete error type carrying a Kind, a human message, and
// an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	AgentID *int
	TaskNum *int
	Err     error
}

func (e *Error) Error() string {
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.AgentID != nil {
		base = fmt.Sprintf("%s (agent=%d)", base, *e.AgentID)
	}
	if e.TaskNum != nil {
		base = fmt.Sprintf("%s (task=%d)", base, *e.TaskNum)
	}
	if e.Err != nil {
		base = fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Config wraps a configuration or prompt-loading failure. Fatal; the CLI
// surfaces it with exit code 1.
func Config(msg string, err error) *Error { return newErr(KindConfig, msg, err) }

// Channel wraps a single agent's channel start/send/capture failure.
func Channel(agentID int, msg string, err error) *Error {
	e := newErr(KindChannel, msg, err)
	e.AgentID = &agentID
	return e
}

// RecoveryExhausted marks an agent that failed all recovery attempts.
func RecoveryExhausted(agentID int, msg string) *Error {
	e := newErr(KindAgentRecoveryExhausted, msg, nil)
	e.AgentID = &agentID
	return e
}

// MergeConflict records a single conflicting path during merge. Not fatal
// under the default "skip" conflict-resolution policy.
func MergeConflict(path string) *Error {
	return newErr(KindMergeConflict, fmt.Sprintf("conflicting path %q", path), nil)
}

// MergeFailure marks that at least one agent project could not be merged.
func MergeFailure(msg string, err error) *Error { return newErr(KindMergeFailure, msg, err) }

// Timeout marks a monitor loop or phase exceeding its configured cap.
func Timeout(msg string) *Error { return newErr(KindTimeout, msg, nil) }

// Interrupted marks a user-initiated shutdown.
func Interrupted(msg string) *Error { return newErr(KindInterrupted, msg, nil) }

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
