package relay

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned by Run when the caller's context ends the session.
var ErrInterrupted = errors.New("session interrupted")

// Kind classifies a failure for the propagation policy.
type Kind int

const (
	// KindSetup covers bind, accept, connect and socket option failures.
	KindSetup Kind = iota + 1
	// KindSessionIO covers read/write failures once relaying has started.
	KindSessionIO
	// KindDiagnostics covers queue-depth probe failures.
	KindDiagnostics
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindSessionIO:
		return "session_io"
	case KindDiagnostics:
		return "diagnostics"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified relay failure.
type Error struct {
	Kind Kind
	Op   string
	// Side is "client", "server" or empty when the failure is not tied to one handle.
	Side string
	Err  error
}

func (e *Error) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Side, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func setupErr(op string, err error) error {
	return &Error{Kind: KindSetup, Op: op, Err: err}
}

// Action is what the session does when a failure of some Kind occurs.
type Action int

const (
	// ActionTerminate ends the session and releases both handles.
	ActionTerminate Action = iota
	// ActionAbort stops startup before a session exists.
	ActionAbort
	// ActionWarn logs the failure and carries on.
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionTerminate:
		return "terminate"
	case ActionAbort:
		return "abort"
	case ActionWarn:
		return "warn"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Policy maps each failure kind to an action. Kinds missing from the map terminate.
type Policy map[Kind]Action

var (
	// DefaultPolicy downgrades probe failures to warnings: they carry no
	// forwarding-correctness impact.
	DefaultPolicy = Policy{
		KindSetup:       ActionAbort,
		KindSessionIO:   ActionTerminate,
		KindDiagnostics: ActionWarn,
	}
	// StrictPolicy ends the session on any probe failure.
	StrictPolicy = Policy{
		KindSetup:       ActionAbort,
		KindSessionIO:   ActionTerminate,
		KindDiagnostics: ActionTerminate,
	}
)

// Action looks up the action for k.
func (p Policy) Action(k Kind) Action {
	if a, ok := p[k]; ok {
		return a
	}
	return ActionTerminate
}

// Validate rejects policies that would keep relaying over a dead handle.
func (p Policy) Validate() error {
	if a := p.Action(KindSessionIO); a == ActionWarn {
		return fmt.Errorf("policy: %s failures cannot be downgraded to %s", KindSessionIO, a)
	}
	return nil
}

// Exit statuses reported by ExitCode.
const (
	ExitOK          = 0
	ExitSessionIO   = 1
	ExitSetup       = 2
	ExitDiagnostics = 3
	ExitInterrupted = 130
)

// ExitCode maps the result of a session to a process exit status. A nil
// error is a clean end-of-stream.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrInterrupted) {
		return ExitInterrupted
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindSetup:
			return ExitSetup
		case KindDiagnostics:
			return ExitDiagnostics
		}
	}
	return ExitSessionIO
}
