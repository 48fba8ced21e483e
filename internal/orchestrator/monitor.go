package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/session"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

// postExecutionMonitor runs alongside the strategy's own execution, ticking
// every StatusTick to render agent/project status and evaluate merge
// triggers, until the strategy's result arrives on done or ctx is
// cancelled. It returns the strategy's error.
func (o *Orchestrator) postExecutionMonitor(ctx context.Context, log *logger.Logger, sess *session.Session, coord *workspace.Coordinator, mgr *agentmgr.Manager, done <-chan error) error {
	ticker := time.NewTicker(StatusTick)
	defer ticker.Stop()

	policy := o.mergeConflictPolicy()

	for {
		select {
		case err := <-done:
			o.mergeRemaining(log, coord, policy, "run finished")
			return err

		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			o.logStatus(log, coord, mgr)

			forced := o.checkForceMerge(sess.WorkspaceDir)
			if forced {
				log.Info("force-merge requested, merging completed projects now")
				o.mergeNow(log, coord, policy)
				continue
			}
			if hasUnmergedCompleted(coord.Projects()) {
				o.mergeNow(log, coord, policy)
			}
		}
	}
}

// hasUnmergedCompleted reports whether at least one agent project has
// finished but not yet been folded into the final project. Generalizes the
// documented "none yet merged" trigger to support repeated, incremental
// merges: an operator force-merge of one early finisher does not prevent
// the automatic merge of the rest later.
func hasUnmergedCompleted(projects []*workspace.AgentProject) bool {
	for _, p := range projects {
		if p.Status == workspace.StatusCompleted {
			return true
		}
	}
	return false
}

func (o *Orchestrator) mergeConflictPolicy() workspace.ConflictPolicy {
	if o.cfg.ConflictResolution == string(workspace.PolicyOverwrite) {
		return workspace.PolicyOverwrite
	}
	return workspace.PolicySkip
}

// mergeNow merges whatever is ready and is safe to call on every tick:
// Merge only touches StatusCompleted projects and advances them to
// StatusMerged, so ticks with nothing new to merge are no-ops.
func (o *Orchestrator) mergeNow(log *logger.Logger, coord *workspace.Coordinator, policy workspace.ConflictPolicy) {
	o.mu.Lock()
	if o.merging {
		o.mu.Unlock()
		return
	}
	o.merging = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.merging = false
		o.mu.Unlock()
	}()

	result, err := coord.Merge(policy)
	if err != nil {
		log.Warn("merge pass failed", zap.Error(err))
		return
	}
	if result.MergedProjects > 0 {
		log.Info("merged completed agent projects",
			zap.Int("projects", result.MergedProjects),
			zap.Int("files_copied", result.FilesCopied),
			zap.Int("conflicts", len(result.Conflicts)))
	}
}

// mergeRemaining runs one last merge pass once the strategy has returned,
// so any project that finished right before shutdown is still folded in.
func (o *Orchestrator) mergeRemaining(log *logger.Logger, coord *workspace.Coordinator, policy workspace.ConflictPolicy, reason string) {
	if !hasUnmergedCompleted(coord.Projects()) {
		return
	}
	log.Info("running final merge pass", zap.String("reason", reason))
	o.mergeNow(log, coord, policy)
}

func (o *Orchestrator) logStatus(log *logger.Logger, coord *workspace.Coordinator, mgr *agentmgr.Manager) {
	for _, agent := range mgr.Agents() {
		snap := agent.Snapshot()
		uptime := time.Since(snap.StartTime).Round(time.Second)
		log.Info("agent status",
			zap.Int("agent_id", snap.ID),
			zap.String("status", string(snap.Status)),
			zap.Int("current_task", snap.CurrentTask),
			zap.Duration("uptime", uptime),
			zap.Int("recovery_attempts", snap.RecoveryAttempts))
	}

	for _, p := range coord.Projects() {
		newest, fileCount, err := coord.FileActivity(p.AgentID)
		fields := []zap.Field{
			zap.Int("agent_id", p.AgentID),
			zap.String("status", string(p.Status)),
			zap.Int("files", fileCount),
			zap.Int("commits", p.CommitCount),
		}
		if err == nil && !newest.IsZero() {
			fields = append(fields, zap.Duration("last_activity_age", time.Since(newest).Round(time.Second)))
		}
		log.Info("project status", fields...)
	}
}
