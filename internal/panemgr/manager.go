// Package panemgr wraps a single named tmux session used to give the
// orchestrator's operator a live view of every agent: one pane per agent
// plus one window each for the orchestrator's own log and a monitor view.
package panemgr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/logger"
)

// DefaultSessionName is the tmux session xenosync creates, carried over
// from the original implementation's "xenosync_collective" session.
const DefaultSessionName = "xenosync_collective"

// Target identifies one pane inside the multiplexer session.
type Target string

// Multiplexer is the interface the agent manager and agent channel use to
// reach panes. A real implementation shells out to the tmux binary; tests
// use an in-memory fake.
type Multiplexer interface {
	// CreateSession tears down any pre-existing same-named session, then
	// creates N agent panes plus the orchestrator/monitor windows.
	CreateSession(ctx context.Context, numAgents int) error

	// AddPane splits one more pane into the agents window, for the
	// finalization agent, and returns its target.
	AddPane(ctx context.Context, id int) (Target, error)

	// PaneTarget returns the fully-qualified target for agent id.
	PaneTarget(id int) (Target, bool)

	// SendKeys types text into the pane, optionally followed by Enter.
	SendKeys(ctx context.Context, id int, text string, sendEnter bool) error

	// SendLine sends a single command line followed by Enter — used for
	// pane startup sequences (cd, export, launch command).
	SendLine(ctx context.Context, id int, line string) error

	// CapturePane returns the last nLines of a pane's visible+scrollback
	// content as plain text lines.
	CapturePane(ctx context.Context, id int, nLines int) ([]string, error)

	// PaneExists reports whether the pane (and its session) still exists.
	PaneExists(id int) bool

	// OpenAttachedTerminal best-effort launches a terminal emulator
	// attached to the session so a human can watch it.
	OpenAttachedTerminal(preference string) error

	// KillSession tears down the whole multiplexer session. Safe to call
	// multiple times and from a signal handler.
	KillSession(ctx context.Context)
}

// TmuxMultiplexer is the real, tmux-backed implementation.
type TmuxMultiplexer struct {
	log         *logger.Logger
	sessionName string

	mu      sync.Mutex
	panes   map[int]Target
	created bool
}

// New returns a TmuxMultiplexer bound to sessionName (DefaultSessionName
// when empty).
func New(log *logger.Logger, sessionName string) *TmuxMultiplexer {
	if sessionName == "" {
		sessionName = DefaultSessionName
	}
	return &TmuxMultiplexer{log: log, sessionName: sessionName, panes: make(map[int]Target)}
}

// IsAvailable reports whether the tmux binary can be found and run.
func IsAvailable() bool {
	cmd := exec.Command("tmux", "-V")
	return cmd.Run() == nil
}

func (m *TmuxMultiplexer) sessionExists(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "tmux", "has-session", "-t", m.sessionName)
	return cmd.Run() == nil
}

func (m *TmuxMultiplexer) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CreateSession creates the session with windows orchestrator/agents/
// monitor, and numAgents panes in the agents window laid out tiled.
func (m *TmuxMultiplexer) CreateSession(ctx context.Context, numAgents int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionExists(ctx) {
		m.log.Info("killing pre-existing tmux session", zap.String("session", m.sessionName))
		m.killSessionLocked(ctx)
		time.Sleep(500 * time.Millisecond)
	}

	if err := m.run(ctx, "new-session", "-d", "-s", m.sessionName, "-n", "orchestrator"); err != nil {
		return err
	}
	if err := m.run(ctx, "new-window", "-t", m.sessionName+":1", "-n", "agents"); err != nil {
		return err
	}
	if err := m.run(ctx, "new-window", "-t", m.sessionName+":2", "-n", "monitor"); err != nil {
		return err
	}

	// Display configuration: aggressive resize, mouse, status bar, borders.
	_ = m.run(ctx, "set-option", "-t", m.sessionName, "-g", "aggressive-resize", "on")
	_ = m.run(ctx, "set-option", "-t", m.sessionName, "-g", "mouse", "on")
	_ = m.run(ctx, "set-option", "-t", m.sessionName, "-g", "pane-border-status", "top")

	agentsWindow := m.sessionName + ":agents"
	m.panes = make(map[int]Target)
	m.panes[0] = Target(agentsWindow + ".0")

	for i := 1; i < numAgents; i++ {
		if err := m.run(ctx, "split-window", "-t", agentsWindow); err != nil {
			return err
		}
		if err := m.run(ctx, "select-layout", "-t", agentsWindow, "tiled"); err != nil {
			return err
		}
		m.panes[i] = Target(fmt.Sprintf("%s.%d", agentsWindow, i))
	}
	for i := range m.panes {
		_ = m.run(ctx, "select-pane", "-t", string(m.panes[i]), "-T", fmt.Sprintf("agent-%d", i))
	}

	m.created = true
	return nil
}

// AddPane splits one more pane for the finalization agent.
func (m *TmuxMultiplexer) AddPane(ctx context.Context, id int) (Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agentsWindow := m.sessionName + ":agents"
	if err := m.run(ctx, "split-window", "-t", agentsWindow); err != nil {
		return "", err
	}
	if err := m.run(ctx, "select-layout", "-t", agentsWindow, "tiled"); err != nil {
		return "", err
	}
	target := Target(fmt.Sprintf("%s.%d", agentsWindow, len(m.panes)))
	m.panes[id] = target
	_ = m.run(ctx, "select-pane", "-t", string(target), "-T", "finalization")
	return target, nil
}

func (m *TmuxMultiplexer) PaneTarget(id int) (Target, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.panes[id]
	return t, ok
}

// SendLine sends one line of text followed by Enter through SendKeys;
// the text is passed on as is, without escaping or newline collapsing.
func (m *TmuxMultiplexer) SendLine(ctx context.Context, id int, line string) error {
	return m.SendKeys(ctx, id, line, true)
}

// SendKeys sends text as keystrokes. Multi-line text is written through a
// temporary buffer and pasted, to avoid shell-by-line quoting hazards; a
// single Enter is sent after the paste when sendEnter is true.
//
// When sendEnter is false the caller is sending a tmux key name (e.g.
// "C-c") rather than literal message text, so the send-keys -l literal
// flag is omitted and tmux interprets it as the named key instead of
// typing it character by character.
func (m *TmuxMultiplexer) SendKeys(ctx context.Context, id int, text string, sendEnter bool) error {
	target, ok := m.PaneTarget(id)
	if !ok {
		return fmt.Errorf("panemgr: no pane for agent %d", id)
	}

	if strings.Contains(text, "\n") {
		bufName := fmt.Sprintf("xenosync-%d-%d", id, time.Now().UnixNano())
		if err := m.run(ctx, "set-buffer", "-b", bufName, text); err != nil {
			return err
		}
		if err := m.run(ctx, "paste-buffer", "-b", bufName, "-t", string(target)); err != nil {
			return err
		}
		_ = m.run(ctx, "delete-buffer", "-b", bufName)
	} else if sendEnter {
		collapsed := strings.ReplaceAll(text, "\n", " ")
		if err := m.run(ctx, "send-keys", "-t", string(target), "-l", collapsed); err != nil {
			return err
		}
	} else {
		if err := m.run(ctx, "send-keys", "-t", string(target), text); err != nil {
			return err
		}
	}

	if sendEnter {
		time.Sleep(500 * time.Millisecond)
		if err := m.run(ctx, "send-keys", "-t", string(target), "Enter"); err != nil {
			return err
		}
	}
	return nil
}

// CapturePane returns the last nLines of a pane's content.
func (m *TmuxMultiplexer) CapturePane(ctx context.Context, id int, nLines int) ([]string, error) {
	target, ok := m.PaneTarget(id)
	if !ok {
		return nil, fmt.Errorf("panemgr: no pane for agent %d", id)
	}
	cmd := exec.CommandContext(ctx, "tmux", "capture-pane", "-t", string(target), "-p", "-S", fmt.Sprintf("-%d", nLines))
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("panemgr: capture pane %s: %w", target, err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	return lines, nil
}

// PaneExists reports whether the session and pane still exist.
func (m *TmuxMultiplexer) PaneExists(id int) bool {
	target, ok := m.PaneTarget(id)
	if !ok {
		return false
	}
	cmd := exec.Command("tmux", "list-panes", "-t", string(target))
	return cmd.Run() == nil
}

// OpenAttachedTerminal launches a terminal emulator attached to the
// session. Refuses if already inside a multiplexer, to avoid nesting.
func (m *TmuxMultiplexer) OpenAttachedTerminal(preference string) error {
	if os.Getenv("TMUX") != "" {
		return fmt.Errorf("panemgr: refusing to nest tmux sessions (already inside TMUX)")
	}

	candidates := terminalCandidates(preference)
	attachCmd := fmt.Sprintf("tmux attach-session -t %s", m.sessionName)

	for _, term := range candidates {
		var cmd *exec.Cmd
		switch term {
		case "gnome-terminal":
			cmd = exec.Command("gnome-terminal", "--", "bash", "-c", attachCmd)
		case "konsole":
			cmd = exec.Command("konsole", "-e", "bash", "-c", attachCmd)
		case "xterm":
			cmd = exec.Command("xterm", "-e", attachCmd)
		case "Terminal.app":
			cmd = exec.Command("osascript", "-e", fmt.Sprintf(`tell application "Terminal" to do script "%s"`, attachCmd))
		case "iTerm.app":
			cmd = exec.Command("osascript", "-e", fmt.Sprintf(`tell application "iTerm" to create window with default profile command "%s"`, attachCmd))
		default:
			continue
		}
		if err := cmd.Start(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("panemgr: no supported terminal emulator found")
}

func terminalCandidates(preference string) []string {
	fallback := map[string][]string{
		"darwin": {"iTerm.app", "Terminal.app"},
		"linux":  {"gnome-terminal", "konsole", "xterm"},
	}
	defaults := fallback[runtime.GOOS]
	if preference == "" {
		return defaults
	}
	out := []string{preference}
	for _, d := range defaults {
		if d != preference {
			out = append(out, d)
		}
	}
	return out
}

// KillSession tears down the session, swallowing "already dead" errors so
// it is safe to call repeatedly, including from a signal handler.
func (m *TmuxMultiplexer) KillSession(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSessionLocked(ctx)
}

func (m *TmuxMultiplexer) killSessionLocked(ctx context.Context) {
	_ = exec.CommandContext(ctx, "tmux", "kill-session", "-t", m.sessionName).Run()
	m.created = false
	m.panes = make(map[int]Target)
}
