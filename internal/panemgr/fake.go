package panemgr

import (
	"context"
	"fmt"
	"sync"
)

// FakeMultiplexer is an in-memory Multiplexer used by tests. It records
// every keystroke sent and lets a test pre-seed each pane's captured
// output, so the agent manager's pattern recognition can be exercised
// without a real tmux binary.
type FakeMultiplexer struct {
	mu       sync.Mutex
	panes    map[int]Target
	sent     map[int][]string
	capture  map[int][]string
	exists   map[int]bool
	killed   bool
	attached string
}

// NewFake returns an empty FakeMultiplexer.
func NewFake() *FakeMultiplexer {
	return &FakeMultiplexer{
		panes:   make(map[int]Target),
		sent:    make(map[int][]string),
		capture: make(map[int][]string),
		exists:  make(map[int]bool),
	}
}

func (f *FakeMultiplexer) CreateSession(ctx context.Context, numAgents int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < numAgents; i++ {
		f.panes[i] = Target(fmt.Sprintf("fake:agents.%d", i))
		f.exists[i] = true
	}
	f.killed = false
	return nil
}

func (f *FakeMultiplexer) AddPane(ctx context.Context, id int) (Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := Target(fmt.Sprintf("fake:agents.%d", id))
	f.panes[id] = t
	f.exists[id] = true
	return t, nil
}

func (f *FakeMultiplexer) PaneTarget(id int) (Target, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.panes[id]
	return t, ok
}

func (f *FakeMultiplexer) SendKeys(ctx context.Context, id int, text string, sendEnter bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[id] {
		return fmt.Errorf("panemgr: fake pane %d gone", id)
	}
	f.sent[id] = append(f.sent[id], text)
	return nil
}

func (f *FakeMultiplexer) SendLine(ctx context.Context, id int, line string) error {
	return f.SendKeys(ctx, id, line, true)
}

func (f *FakeMultiplexer) CapturePane(ctx context.Context, id int, nLines int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[id] {
		return nil, fmt.Errorf("panemgr: fake pane %d gone", id)
	}
	lines := f.capture[id]
	if len(lines) <= nLines {
		return lines, nil
	}
	return lines[len(lines)-nLines:], nil
}

func (f *FakeMultiplexer) PaneExists(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[id]
}

func (f *FakeMultiplexer) OpenAttachedTerminal(preference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = preference
	return nil
}

func (f *FakeMultiplexer) KillSession(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	for id := range f.exists {
		f.exists[id] = false
	}
}

// SetOutput seeds the lines CapturePane will return for a pane.
func (f *FakeMultiplexer) SetOutput(id int, lines []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capture[id] = lines
}

// AppendOutput adds lines to a pane's captured output.
func (f *FakeMultiplexer) AppendOutput(id int, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capture[id] = append(f.capture[id], lines...)
}

// SentTo returns every SendKeys payload delivered to a pane, in order.
func (f *FakeMultiplexer) SentTo(id int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[id]...)
}

// Killed reports whether KillSession has been called.
func (f *FakeMultiplexer) Killed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

// RemovePane simulates a pane dying out from under the orchestrator.
func (f *FakeMultiplexer) RemovePane(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists[id] = false
}

var _ Multiplexer = (*FakeMultiplexer)(nil)
var _ Multiplexer = (*TmuxMultiplexer)(nil)
