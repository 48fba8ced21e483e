package agentchannel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kspringfield13/xenosync/internal/panemgr"
)

// PaneChannel drives an existing multiplexer pane rather than owning a
// subprocess directly: starting means typing a cd/export/launch sequence
// into the pane's shell, sending means typing keystrokes and an Enter.
type PaneChannel struct {
	mux panemgr.Multiplexer
	id  int
}

// NewPaneChannel binds a PaneChannel to pane id on mux.
func NewPaneChannel(mux panemgr.Multiplexer, id int) *PaneChannel {
	return &PaneChannel{mux: mux, id: id}
}

func (c *PaneChannel) Mode() Mode { return ModePane }

// Start sends a cd, three export lines, and the launch command into the
// pane's shell, each followed by a newline, with small delays so the
// shell processes them in order before the CLI itself starts reading.
func (c *PaneChannel) Start(ctx context.Context, opts StartOptions) error {
	lines := []string{
		fmt.Sprintf("cd %s", opts.WorkingDir),
		fmt.Sprintf("export XENOSYNC_SESSION_ID=%s", opts.SessionID),
		fmt.Sprintf("export XENOSYNC_AGENT_UID=%s", opts.AgentUID),
		fmt.Sprintf("export XENOSYNC_PROJECT_PATH=%s", opts.ProjectPath),
		strings.TrimSpace(opts.Command + " " + strings.Join(opts.Args, " ")),
	}

	for _, line := range lines {
		if err := c.mux.SendLine(ctx, c.id, line); err != nil {
			return fmt.Errorf("%w: %v", ErrClosed, err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	if opts.InitialDelay > 0 {
		select {
		case <-time.After(opts.InitialDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Send escapes double quotes and collapses newlines to spaces, then types
// the result as keystrokes; the multiplexer's SendKeys waits briefly
// before sending Enter — many wrapped CLIs redraw their input line
// asynchronously and drop a too-fast Enter.
func (c *PaneChannel) Send(ctx context.Context, message string) error {
	if !c.mux.PaneExists(c.id) {
		return ErrClosed
	}
	escaped := strings.ReplaceAll(message, `"`, `\"`)
	collapsed := strings.ReplaceAll(escaped, "\n", " ")
	if err := c.mux.SendKeys(ctx, c.id, collapsed, true); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// RecentOutput captures the requested window of the pane's scrollback.
func (c *PaneChannel) RecentOutput(ctx context.Context, nLines, offset int) ([]string, error) {
	lines, err := c.mux.CapturePane(ctx, c.id, nLines+offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGone, err)
	}
	end := len(lines) - offset
	if end < 0 {
		end = 0
	}
	start := end - nLines
	if start < 0 {
		start = 0
	}
	return lines[start:end], nil
}

// IsRunning reports whether the pane (and its session) still exists.
func (c *PaneChannel) IsRunning() bool {
	return c.mux.PaneExists(c.id)
}

// Stop sends an interrupt keystroke then "exit", without killing the
// pane itself — the pane manager owns the multiplexer session's lifetime.
func (c *PaneChannel) Stop(ctx context.Context) error {
	if !c.mux.PaneExists(c.id) {
		return nil
	}
	_ = c.mux.SendKeys(ctx, c.id, "C-c", false)
	time.Sleep(200 * time.Millisecond)
	return c.mux.SendLine(ctx, c.id, "exit")
}
