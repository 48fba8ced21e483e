package agentchannel

import (
	"context"
	"sync"
)

// FakeChannel is an in-memory Channel for unit tests: Send records
// messages, RecentOutput serves lines a test pre-seeds.
type FakeChannel struct {
	mu      sync.Mutex
	running bool
	sent    []string
	lines   []string
	started StartOptions
}

// NewFakeChannel returns a FakeChannel that begins running once Start is
// called.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{}
}

func (f *FakeChannel) Mode() Mode { return ModeDirect }

func (f *FakeChannel) Start(ctx context.Context, opts StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.started = opts
	return nil
}

func (f *FakeChannel) Send(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return ErrClosed
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *FakeChannel) RecentOutput(ctx context.Context, nLines, offset int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil, ErrGone
	}
	end := len(f.lines) - offset
	if end < 0 {
		end = 0
	}
	start := end - nLines
	if start < 0 {
		start = 0
	}
	return append([]string(nil), f.lines[start:end]...), nil
}

func (f *FakeChannel) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeChannel) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

// SetLines replaces the buffer of output a test wants RecentOutput to serve.
func (f *FakeChannel) SetLines(lines []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = lines
}

// AppendLines appends to the buffer of output.
func (f *FakeChannel) AppendLines(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, lines...)
}

// Sent returns every message passed to Send, in order.
func (f *FakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// Kill simulates the backing process/pane disappearing.
func (f *FakeChannel) Kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

var _ Channel = (*FakeChannel)(nil)
var _ Channel = (*DirectChannel)(nil)
var _ Channel = (*PaneChannel)(nil)
