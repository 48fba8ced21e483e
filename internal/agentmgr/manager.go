package agentmgr

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/agentchannel"
	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/common/xerrors"
	"github.com/kspringfield13/xenosync/internal/metrics"
	"github.com/kspringfield13/xenosync/internal/panemgr"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

// Config carries the subset of top-level configuration the agent manager
// needs: launch staggering, messaging grace period, and the agent CLI to
// spawn in direct mode.
type Config struct {
	LaunchDelay        time.Duration
	MessageGracePeriod time.Duration
	MonitorTick        time.Duration
	CompletionPatterns []string
	AgentCommand       string
	AgentArgs          []string

	// RecoveryBackoff and PostRecoveryWait override the default
	// exponential-backoff recovery timings; tests shrink these to avoid
	// real sleeps.
	RecoveryBackoff  []time.Duration
	PostRecoveryWait time.Duration
}

func defaultConfig(cfg Config) Config {
	if cfg.LaunchDelay == 0 {
		cfg.LaunchDelay = 3 * time.Second
	}
	if cfg.MessageGracePeriod == 0 {
		cfg.MessageGracePeriod = 60 * time.Second
	}
	if cfg.MonitorTick == 0 {
		cfg.MonitorTick = 10 * time.Second
	}
	if cfg.AgentCommand == "" {
		cfg.AgentCommand = "claude"
	}
	return cfg
}

// ChannelFactory builds the channel for one agent id, either a pane
// channel (when a multiplexer is wired) or a direct channel.
type ChannelFactory func(agentID int) agentchannel.Channel

// Manager owns every Agent record for one session plus the channels used
// to reach them.
type Manager struct {
	log   *logger.Logger
	cfg   Config
	coord *workspace.Coordinator

	mux     panemgr.Multiplexer // nil => direct mode only
	events  *events.Log
	metrics *metrics.Registry

	newChannel ChannelFactory

	mu       sync.RWMutex
	agents   map[int]*Agent
	channels map[int]agentchannel.Channel

	finalizationMode atomic.Bool // once true, monitor skips ids < finalizationID
	finalizationID   int
}

// New constructs a Manager. mux may be nil, in which case every agent runs
// in direct mode.
func New(log *logger.Logger, cfg Config, coord *workspace.Coordinator, mux panemgr.Multiplexer, evLog *events.Log, reg *metrics.Registry) *Manager {
	return &Manager{
		log:      log,
		cfg:      defaultConfig(cfg),
		coord:    coord,
		mux:      mux,
		events:   evLog,
		metrics:  reg,
		agents:   make(map[int]*Agent),
		channels: make(map[int]agentchannel.Channel),
	}
}

// SetChannelFactory overrides how channels are built, for tests.
func (m *Manager) SetChannelFactory(f ChannelFactory) {
	m.newChannel = f
}

func (m *Manager) buildChannel(agentID int) agentchannel.Channel {
	if m.newChannel != nil {
		return m.newChannel(agentID)
	}
	if m.mux != nil {
		return agentchannel.NewPaneChannel(m.mux, agentID)
	}
	return agentchannel.NewDirectChannel(m.log)
}

// InitializeAgents creates N agents (ids 0..N-1), each with its own
// workspace project and channel, staggering starts by cfg.LaunchDelay.
func (m *Manager) InitializeAgents(ctx context.Context, sessionID string, n int) error {
	for i := 0; i < n; i++ {
		project, err := m.coord.InitAgentProject(i, agentUID(sessionID, i), sessionID)
		if err != nil {
			return fmt.Errorf("agentmgr: init project for agent %d: %w", i, err)
		}

		agent := newAgent(i, project.AgentUID, sessionID, project.ProjectDir)
		ch := m.buildChannel(i)

		m.mu.Lock()
		m.agents[i] = agent
		m.channels[i] = ch
		m.mu.Unlock()

		startOpts := agentchannel.StartOptions{
			SessionID:       sessionID,
			AgentUID:        project.AgentUID,
			WorkingDir:      project.ProjectDir,
			ProjectPath:     project.ProjectDir,
			Command:         m.cfg.AgentCommand,
			Args:            m.cfg.AgentArgs,
			InitialDelay:    2 * time.Second,
			WriteCoordFiles: true,
		}
		if err := ch.Start(ctx, startOpts); err != nil {
			return xerrors.Channel(i, "starting agent", err)
		}
		agent.setStatus(StatusStarting)
		m.emit(sessionID, events.TypeAgentStarted, map[string]interface{}{"agent_id": i, "uid": agent.UID})
		m.recordStatusMetric(sessionID, agent)

		if i < n-1 {
			select {
			case <-time.After(m.cfg.LaunchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func agentUID(sessionID string, id int) string {
	prefix := sessionID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s-agent-%d-%d", prefix, id, time.Now().UnixNano())
}

// Agent returns the tracked record for id.
func (m *Manager) Agent(id int) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// Agents returns every tracked agent ordered by id.
func (m *Manager) Agents() []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) channelFor(id int) (agentchannel.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	return ch, ok
}

// SendToAgent tags message with the agent's uid and sends it, marking the
// agent Working and stamping last-message-sent.
func (m *Manager) SendToAgent(ctx context.Context, id int, message string) error {
	agent, ok := m.Agent(id)
	if !ok {
		return fmt.Errorf("agentmgr: unknown agent %d", id)
	}
	ch, ok := m.channelFor(id)
	if !ok {
		return fmt.Errorf("agentmgr: no channel for agent %d", id)
	}

	tagged := fmt.Sprintf("[%s] %s", agent.UID, message)
	if err := ch.Send(ctx, tagged); err != nil {
		return xerrors.Channel(id, "sending message", err)
	}
	agent.recordMessageSent()
	return nil
}

// BroadcastToAll sends message to every agent not currently in Error,
// concurrently.
func (m *Manager) BroadcastToAll(ctx context.Context, message string) []error {
	agents := m.Agents()
	errs := make([]error, len(agents))
	var wg sync.WaitGroup
	for i, a := range agents {
		if a.Snapshot().Status == StatusError {
			continue
		}
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			errs[i] = m.SendToAgent(ctx, id, message)
		}(i, a.ID)
	}
	wg.Wait()
	return errs
}

// RecentOutput returns the last nLines of an agent's terminal output.
func (m *Manager) RecentOutput(ctx context.Context, id, nLines int) ([]string, error) {
	ch, ok := m.channelFor(id)
	if !ok {
		return nil, fmt.Errorf("agentmgr: no channel for agent %d", id)
	}
	return ch.RecentOutput(ctx, nLines, 0)
}

// CheckAgentWorking runs the pattern check against an agent's recent
// output, honoring the post-message grace period.
func (m *Manager) CheckAgentWorking(ctx context.Context, id int) (bool, error) {
	agent, ok := m.Agent(id)
	if !ok {
		return false, fmt.Errorf("agentmgr: unknown agent %d", id)
	}
	recent, err := m.RecentOutput(ctx, id, recentOutputWindow*2)
	if err != nil {
		return false, err
	}
	snap := agent.Snapshot()
	withinGrace := !snap.LastMessageSent.IsZero() && time.Since(snap.LastMessageSent) < m.cfg.MessageGracePeriod
	return checkAgentWorking(recent, m.cfg.CompletionPatterns, withinGrace), nil
}

// SpawnFinalizationAgent creates agent id == finalizationID, pinned to
// workDir, and flips the monitor into finalization-only mode.
func (m *Manager) SpawnFinalizationAgent(ctx context.Context, sessionID, workDir, prompt string) error {
	id := m.finalizationAgentID()

	ch := m.buildChannel(id)
	if _, ok := ch.(*agentchannel.PaneChannel); ok && m.mux != nil {
		if _, err := m.mux.AddPane(ctx, id); err != nil {
			m.log.Warn("finalization pane creation failed, falling back to direct mode", zap.Error(err))
			ch = agentchannel.NewDirectChannel(m.log)
		}
	}

	agent := newAgent(id, agentUID(sessionID, id), sessionID, workDir)
	m.mu.Lock()
	m.agents[id] = agent
	m.channels[id] = ch
	m.mu.Unlock()

	if err := ch.Start(ctx, agentchannel.StartOptions{
		SessionID:    sessionID,
		AgentUID:     agent.UID,
		WorkingDir:   workDir,
		ProjectPath:  workDir,
		Command:      m.cfg.AgentCommand,
		Args:         m.cfg.AgentArgs,
		InitialDelay: 2 * time.Second,
	}); err != nil {
		return xerrors.Channel(id, "starting finalization agent", err)
	}

	m.finalizationID = id
	m.finalizationMode.Store(true)

	return m.SendToAgent(ctx, id, prompt)
}

func (m *Manager) finalizationAgentID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := -1
	for id := range m.agents {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// IsFinalizationMode reports whether only the finalization agent should
// be monitored now.
func (m *Manager) IsFinalizationMode() bool {
	return m.finalizationMode.Load()
}

// FinalizationAgentID returns the id assigned to the finalization agent,
// valid only once IsFinalizationMode is true.
func (m *Manager) FinalizationAgentID() int {
	return m.finalizationID
}

// StartTask resets an agent's task baseline for minimum-duration
// accounting and marks it Working, used when the strategy delivers a new
// task to an already-running agent.
func (m *Manager) StartTask(id, taskNumber int) error {
	agent, ok := m.Agent(id)
	if !ok {
		return fmt.Errorf("agentmgr: unknown agent %d", id)
	}
	agent.startTask(taskNumber)
	return nil
}

// MarkCompleted transitions an agent to Completed, the terminal status
// set once the workspace coordinator has accepted its project.
func (m *Manager) MarkCompleted(id int) error {
	agent, ok := m.Agent(id)
	if !ok {
		return fmt.Errorf("agentmgr: unknown agent %d", id)
	}
	agent.setStatus(StatusCompleted)
	m.emit(agent.SessionID, events.TypeAgentStatusChanged, map[string]interface{}{"agent_id": id, "status": string(StatusCompleted)})
	m.recordStatusMetric(agent.SessionID, agent)
	return nil
}

// StopAgent terminates/detaches an agent's channel and marks it Stopped.
func (m *Manager) StopAgent(ctx context.Context, id int) error {
	ch, ok := m.channelFor(id)
	if !ok {
		return nil
	}
	agent, _ := m.Agent(id)
	if agent != nil {
		agent.markStopped()
	}
	return ch.Stop(ctx)
}

// StopAll stops every tracked agent, collecting but not failing on errors.
func (m *Manager) StopAll(ctx context.Context) {
	for _, a := range m.Agents() {
		if err := m.StopAgent(ctx, a.ID); err != nil {
			m.log.Warn("error stopping agent", zap.Int("agent_id", a.ID), zap.Error(err))
		}
	}
}

func (m *Manager) emit(sessionID, eventType string, data map[string]interface{}) {
	if m.events == nil {
		return
	}
	if err := m.events.Append(sessionID, eventType, data); err != nil {
		m.log.Warn("failed to append event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (m *Manager) recordStatusMetric(sessionID string, a *Agent) {
	if m.metrics == nil {
		return
	}
	snap := a.Snapshot()
	for _, s := range []Status{StatusStarting, StatusWorking, StatusCompleted, StatusError, StatusStopped} {
		v := 0.0
		if s == snap.Status {
			v = 1.0
		}
		m.metrics.AgentStatus.WithLabelValues(sessionID, strconv.Itoa(a.ID), string(s)).Set(v)
	}
}
