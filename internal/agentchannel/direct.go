package agentchannel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/logger"
)

// DirectChannel spawns the agent CLI directly under a pty and pipes its
// combined stdout/stderr into a ring buffer. Many interactive coding-agent
// CLIs change their output mode (disable spinners, drop color) when stdout
// isn't a tty, so a pty is used rather than a plain pipe.
type DirectChannel struct {
	log *logger.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	ptyFile *os.File
	buf     *ringBuffer
	opts    StartOptions
	exited  atomic.Bool
}

// NewDirectChannel constructs a DirectChannel with the default 10,000-line
// ring buffer capacity.
func NewDirectChannel(log *logger.Logger) *DirectChannel {
	return &DirectChannel{log: log, buf: newRingBuffer(10000)}
}

func (c *DirectChannel) Mode() Mode { return ModeDirect }

// Start spawns the configured command under a pty rooted at opts.WorkingDir.
func (c *DirectChannel) Start(ctx context.Context, opts StartOptions) error {
	c.mu.Lock()

	if opts.Command == "" {
		c.mu.Unlock()
		return fmt.Errorf("agentchannel: direct mode requires a command")
	}
	if err := os.MkdirAll(opts.WorkingDir, 0o755); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("agentchannel: create working dir: %w", err)
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = append(os.Environ(),
		"XENOSYNC_SESSION_ID="+opts.SessionID,
		"XENOSYNC_AGENT_UID="+opts.AgentUID,
		"XENOSYNC_PROJECT_PATH="+opts.ProjectPath,
	)

	f, err := pty.Start(cmd)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("agentchannel: start pty: %w", err)
	}

	c.cmd = cmd
	c.ptyFile = f
	c.opts = opts
	c.mu.Unlock()

	go c.pump(f)
	go c.awaitExit(cmd)

	if opts.WriteCoordFiles {
		if err := writeCoordFiles(opts); err != nil {
			c.log.Warn("failed to write coordination files", zap.Error(err))
		}
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

func (c *DirectChannel) pump(f *os.File) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.buf.push(scanner.Text())
	}
}

func (c *DirectChannel) awaitExit(cmd *exec.Cmd) {
	_ = cmd.Wait()
	c.exited.Store(true)
}

// Send writes message followed by a newline to the pty.
func (c *DirectChannel) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	f := c.ptyFile
	c.mu.Unlock()

	if f == nil || !c.IsRunning() {
		return ErrClosed
	}
	if _, err := io.WriteString(f, message+"\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// RecentOutput returns the requested slice of the ring buffer.
func (c *DirectChannel) RecentOutput(ctx context.Context, nLines, offset int) ([]string, error) {
	return c.buf.tail(nLines, offset), nil
}

// IsRunning reports whether the spawned process has not exited.
func (c *DirectChannel) IsRunning() bool {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false
	}
	return !c.exited.Load()
}

// Stop terminates the process and waits for it to exit.
func (c *DirectChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cmd := c.cmd
	f := c.ptyFile
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Kill()
	if f != nil {
		_ = f.Close()
	}
	for !c.exited.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}

func writeCoordFiles(opts StartOptions) error {
	if err := os.WriteFile(filepath.Join(opts.WorkingDir, ".xenosync_session_id"), []byte(opts.SessionID), 0o644); err != nil {
		return err
	}
	info := map[string]string{
		"session_id":   opts.SessionID,
		"agent_uid":    opts.AgentUID,
		"project_path": opts.ProjectPath,
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(opts.WorkingDir, ".xenosync_agent_info.json"), data, 0o644)
}
