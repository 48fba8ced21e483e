package agentmgr

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/events"
)

// Monitor runs the agent manager's background classification loop until
// ctx is cancelled: for every tracked agent it checks for error patterns
// (triggering recovery) and otherwise transitions Starting to Working
// once any working pattern is observed. It does not decide completion;
// that is internal/strategy's job, driven by internal/completion.
func (m *Manager) Monitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MonitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.monitorTick(ctx)
		}
	}
}

func (m *Manager) monitorTick(ctx context.Context) {
	finalizationMode := m.IsFinalizationMode()
	finalizationID := m.FinalizationAgentID()

	for _, agent := range m.Agents() {
		snap := agent.Snapshot()
		if snap.Status == StatusStopped || snap.Status == StatusCompleted {
			continue
		}
		if finalizationMode && agent.ID < finalizationID {
			continue
		}

		recent, err := m.RecentOutput(ctx, agent.ID, recentOutputWindow*2)
		if err != nil {
			continue
		}
		joined := strings.Join(lastNonEmptyLines(recent, recentOutputWindow), "\n")

		if snap.Status != StatusError && hasErrorPattern(joined) && !matchesAny(workingPatterns, joined) {
			m.log.Info("error pattern detected", zap.Int("agent_id", agent.ID))
			agent.markError("error pattern detected in output")
			m.emit(agent.SessionID, events.TypeAgentStatusChanged, map[string]interface{}{"agent_id": agent.ID, "status": string(StatusError)})
			m.recordStatusMetric(agent.SessionID, agent)
			continue
		}

		if snap.Status == StatusError {
			recovered, err := m.RecoverAgent(ctx, agent.ID)
			if err != nil {
				m.log.Warn("recovery exhausted", zap.Int("agent_id", agent.ID), zap.Error(err))
			}
			m.recordStatusMetric(agent.SessionID, agent)
			if !recovered {
				continue
			}
		}

		if snap.Status == StatusStarting && matchesAny(workingPatterns, joined) {
			agent.setStatus(StatusWorking)
			m.emit(agent.SessionID, events.TypeAgentStatusChanged, map[string]interface{}{"agent_id": agent.ID, "status": string(StatusWorking)})
		}
		agent.touchActivity()
		m.recordStatusMetric(agent.SessionID, agent)
	}
}
