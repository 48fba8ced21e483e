// Package agentchannel models the single channel through which the
// orchestrator talks to one external interactive agent CLI process: start
// it, send it text, and read back whatever it has recently printed. There
// is no structured protocol here by design — the agent is a human-
// readable terminal stream, not an RPC peer.
package agentchannel

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Send when the underlying process or pane is
// already gone.
var ErrClosed = errors.New("agentchannel: channel closed")

// ErrGone is returned by RecentOutput when the underlying pane/session no
// longer exists.
var ErrGone = errors.New("agentchannel: channel gone")

// Mode selects how a Channel is backed.
type Mode string

const (
	ModeDirect Mode = "direct" // spawn and own a subprocess via a pty
	ModePane   Mode = "pane"   // drive an existing multiplexer pane
)

// StartOptions carries the parameters needed to start an agent process,
// mirroring the environment variables the orchestration design injects
// into every agent's environment.
type StartOptions struct {
	SessionID     string
	AgentUID      string
	WorkingDir    string
	ProjectPath   string
	Command       string
	Args          []string
	InitialDelay  time.Duration
	WriteCoordFiles bool
}

// Channel is the interface both backends implement.
type Channel interface {
	// Start performs mode-specific startup and waits InitialDelay for the
	// CLI to initialize.
	Start(ctx context.Context, opts StartOptions) error

	// Send delivers a message to the agent. In pane mode this is
	// keystrokes followed by an Enter; in direct mode it is a line
	// written to stdin.
	Send(ctx context.Context, message string) error

	// RecentOutput returns up to nLines of output, skipping the most
	// recent `offset` lines (offset=0 means "most recent").
	RecentOutput(ctx context.Context, nLines, offset int) ([]string, error)

	// IsRunning reports whether the underlying process/pane is alive.
	IsRunning() bool

	// Stop terminates (direct mode) or detaches from (pane mode) the
	// channel. It must be safe to call multiple times.
	Stop(ctx context.Context) error

	// Mode reports which backend this channel uses.
	Mode() Mode
}
