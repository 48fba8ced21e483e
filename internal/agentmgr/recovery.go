package agentmgr

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/common/xerrors"
)

// defaultRecoveryBackoff is the exponential-backoff schedule for recovery
// attempts 1..4; a 4th tier exists for deployments that raise
// maxRecoveryAttempts above the default of 3.
var defaultRecoveryBackoff = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}

const (
	maxRecoveryAttempts      = 3
	recoveryMessage          = "Please continue with your assigned tasks. If you encountered an error, try again."
	defaultPostRecoveryWait  = 5 * time.Second
)

func (m *Manager) recoveryBackoff() []time.Duration {
	if len(m.cfg.RecoveryBackoff) > 0 {
		return m.cfg.RecoveryBackoff
	}
	return defaultRecoveryBackoff
}

func (m *Manager) postRecoveryWait() time.Duration {
	if m.cfg.PostRecoveryWait > 0 {
		return m.cfg.PostRecoveryWait
	}
	return defaultPostRecoveryWait
}

// RecoverAgent runs one exponential-backoff recovery cycle for agent id:
// increment the attempt counter, sleep the corresponding backoff, send a
// fixed retry message, wait, then recheck working patterns. It returns
// true on a confirmed recovery, false otherwise, and
// xerrors.RecoveryExhausted once the attempt budget is spent.
func (m *Manager) RecoverAgent(ctx context.Context, id int) (bool, error) {
	agent, ok := m.Agent(id)
	if !ok {
		return false, fmt.Errorf("agentmgr: unknown agent %d", id)
	}

	agent.mu.Lock()
	agent.RecoveryAttempts++
	attempt := agent.RecoveryAttempts
	agent.mu.Unlock()

	if attempt > maxRecoveryAttempts {
		reason := fmt.Sprintf("failed to recover after %d attempts", attempt)
		agent.markError(reason)
		m.emit(agent.SessionID, events.TypeAgentError, map[string]interface{}{"agent_id": id, "error": reason})
		return false, xerrors.RecoveryExhausted(id, reason)
	}

	backoff := m.recoveryBackoff()
	idx := attempt - 1
	if idx > len(backoff)-1 {
		idx = len(backoff) - 1
	}
	delay := backoff[idx]
	m.log.Info("attempting agent recovery", zap.Int("agent_id", id), zap.Int("attempt", attempt), zap.Duration("backoff", delay))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	if err := m.SendToAgent(ctx, id, recoveryMessage); err != nil {
		return false, nil
	}

	select {
	case <-time.After(m.postRecoveryWait()):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	working, err := m.CheckAgentWorking(ctx, id)
	if err != nil {
		return false, nil
	}
	if working {
		agent.markRecovered()
		m.emit(agent.SessionID, events.TypeAgentRecovered, map[string]interface{}{"agent_id": id, "attempt": attempt})
		m.log.Info("agent recovered", zap.Int("agent_id", id), zap.Int("attempts", attempt))
		return true, nil
	}
	return false, nil
}
