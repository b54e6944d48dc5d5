package relay

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyLookup(t *testing.T) {
	assert.Equal(t, ActionAbort, DefaultPolicy.Action(KindSetup))
	assert.Equal(t, ActionTerminate, DefaultPolicy.Action(KindSessionIO))
	assert.Equal(t, ActionWarn, DefaultPolicy.Action(KindDiagnostics))
	assert.Equal(t, ActionTerminate, StrictPolicy.Action(KindDiagnostics))
	assert.Equal(t, ActionTerminate, Policy{}.Action(KindDiagnostics), "missing kinds terminate")
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy.Validate())
	require.NoError(t, StrictPolicy.Validate())
	require.Error(t, Policy{KindSessionIO: ActionWarn}.Validate())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "clean end of stream", err: nil, want: ExitOK},
		{name: "interrupted", err: ErrInterrupted, want: ExitInterrupted},
		{name: "setup", err: setupErr("bind", errors.New("in use")), want: ExitSetup},
		{name: "session io", err: &Error{Kind: KindSessionIO, Op: "read", Side: "server", Err: io.ErrUnexpectedEOF}, want: ExitSessionIO},
		{name: "diagnostics", err: &Error{Kind: KindDiagnostics, Op: "probe", Err: errors.New("x")}, want: ExitDiagnostics},
		{name: "wrapped setup", err: fmt.Errorf("startup: %w", setupErr("connect", errors.New("refused"))), want: ExitSetup},
		{name: "unclassified", err: errors.New("other"), want: ExitSessionIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	e := &Error{Kind: KindSessionIO, Op: "write", Side: "client", Err: io.ErrShortWrite}
	assert.Equal(t, "session_io: write client: short write", e.Error())
	assert.True(t, errors.Is(e, io.ErrShortWrite))

	e = &Error{Kind: KindSetup, Op: "bind", Err: errors.New("denied")}
	assert.Equal(t, "setup: bind: denied", e.Error())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.Equal(t, "warn", ActionWarn.String())
}
