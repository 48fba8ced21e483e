package strategy

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/common/xerrors"
)

// FinalizationConfig tunes the post-merge integration/QA phase.
type FinalizationConfig struct {
	Timeout      time.Duration
	CheckInterval time.Duration
	Tasks        []string
}

// DefaultFinalizationConfig mirrors the documented defaults: 600s
// timeout, 15s checks, and a prescriptive integration/QA task list.
func DefaultFinalizationConfig() FinalizationConfig {
	return FinalizationConfig{
		Timeout:       600 * time.Second,
		CheckInterval: 15 * time.Second,
		Tasks: []string{
			"Run the project's test suite immediately and record the results.",
			"Fix any critical issues that block the project from running at all.",
			"Validate that the core mechanics described in the original task list actually work end to end.",
			"Verify the integration between the pieces contributed by each agent.",
			"Add or update the README describing how to build and run the project.",
			"Do not optimize or refactor further until the project runs correctly.",
		},
	}
}

func finalizationPrompt(cfg FinalizationConfig) string {
	msg := "The team has finished its individual tasks and the project has been merged into this directory. " +
		"You are the finalization agent: integrate, test, and stabilize the merged project.\n\n"
	for i, t := range cfg.Tasks {
		msg += strconv.Itoa(i+1) + ". " + t + "\n"
	}
	return msg
}

// RunFinalization spawns one extra agent pinned to the final project
// directory with a prescriptive integration-and-QA prompt, halts
// monitoring of every regular agent, and waits up to
// FinalizationConfig.Timeout for it to reach Completed or Error,
// polling every CheckInterval. On timeout the agent is stopped and an
// error is returned; the merged final-project remains on disk either
// way.
func (s *Strategy) RunFinalization(ctx context.Context, sessionID string) error {
	workDir := s.coord.FinalProjectDir()
	prompt := finalizationPrompt(s.cfg.Finalization)

	s.emit(sessionID, events.TypeFinalizationStarted, map[string]interface{}{"work_dir": workDir})

	if err := s.mgr.SpawnFinalizationAgent(ctx, sessionID, workDir, prompt); err != nil {
		s.recordFinalizationOutcome("error")
		return xerrors.Channel(s.mgr.FinalizationAgentID(), "spawning finalization agent", err)
	}
	agentID := s.mgr.FinalizationAgentID()

	deadline := time.Now().Add(s.cfg.Finalization.Timeout)
	ticker := time.NewTicker(s.cfg.Finalization.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.mgr.StopAgent(context.Background(), agentID)
			s.recordFinalizationOutcome("error")
			return ctx.Err()
		case <-ticker.C:
			agent, ok := s.mgr.Agent(agentID)
			if !ok {
				s.recordFinalizationOutcome("error")
				return xerrors.MergeFailure("finalization agent disappeared", nil)
			}
			status := agent.Snapshot().Status
			switch status {
			case agentmgr.StatusCompleted:
				s.emit(sessionID, events.TypeFinalizationCompleted, map[string]interface{}{"result": "completed"})
				s.recordFinalizationOutcome("completed")
				return nil
			case agentmgr.StatusError:
				s.emit(sessionID, events.TypeFinalizationCompleted, map[string]interface{}{"result": "error"})
				s.recordFinalizationOutcome("error")
				return xerrors.MergeFailure("finalization agent reported an error", nil)
			}

			// monitorTick only watches the finalization agent for error
			// patterns and the Starting->Working transition; completion
			// has to be driven from here the same way checkAgents drives
			// it for regular agents.
			if likely, _, err := s.isCompletionLikely(ctx, agentID); err != nil {
				s.log.Warn("finalization completion check failed", zap.Error(err))
			} else if likely {
				gateOK, filesCreated, meaningfulFiles, _, err := passesQualityGate(workDir, s.cfg.Quality)
				if err != nil {
					s.log.Warn("finalization quality gate check failed", zap.Error(err))
				} else if gateOK {
					if err := s.mgr.MarkCompleted(agentID); err != nil {
						s.log.Warn("marking finalization agent completed failed", zap.Error(err))
					}
					s.emit(sessionID, events.TypeFinalizationCompleted, map[string]interface{}{"result": "completed"})
					s.recordFinalizationOutcome("completed")
					return nil
				} else {
					s.log.Debug("finalization completion signal present but quality gate not satisfied",
						zap.Int("files_created", filesCreated), zap.Int("meaningful_files", meaningfulFiles))
				}
			}

			if time.Now().After(deadline) {
				if err := s.mgr.StopAgent(ctx, agentID); err != nil {
					s.log.Warn("stopping timed-out finalization agent failed", zap.Error(err))
				}
				s.emit(sessionID, events.TypeFinalizationCompleted, map[string]interface{}{"result": "timeout"})
				s.recordFinalizationOutcome("timeout")
				return xerrors.Timeout("finalization phase exceeded its timeout")
			}
		}
	}
}

func (s *Strategy) recordFinalizationOutcome(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.FinalizationOutcome.WithLabelValues(result).Inc()
}
