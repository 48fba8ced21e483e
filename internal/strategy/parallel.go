// Package strategy implements the round-robin parallel execution
// strategy: task distribution, the completion monitoring loop, the
// project-quality gate, and the finalization phase.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/common/xerrors"
	"github.com/kspringfield13/xenosync/internal/completion"
	"github.com/kspringfield13/xenosync/internal/metrics"
	"github.com/kspringfield13/xenosync/internal/prompt"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

// Config tunes the parallel strategy's monitoring loop and gates.
type Config struct {
	CheckInterval       time.Duration
	MaxDuration         time.Duration
	MinimumWorkDuration time.Duration
	EnhancedDetection   bool
	Quality             QualityConfig
	MergeConflictPolicy workspace.ConflictPolicy
	Finalization        FinalizationConfig
	EnableFinalization  bool
}

// DefaultConfig mirrors the documented defaults: 30s checks, 1h cap,
// 10-minute minimum work duration, enhanced detection on.
func DefaultConfig() Config {
	return Config{
		CheckInterval:       30 * time.Second,
		MaxDuration:         time.Hour,
		MinimumWorkDuration: 10 * time.Minute,
		EnhancedDetection:   true,
		Quality:             DefaultQualityConfig(),
		MergeConflictPolicy: workspace.PolicySkip,
		Finalization:        DefaultFinalizationConfig(),
	}
}

func defaultConfig(cfg Config) Config {
	d := DefaultConfig()
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = d.CheckInterval
	}
	if cfg.MaxDuration == 0 {
		cfg.MaxDuration = d.MaxDuration
	}
	if cfg.MinimumWorkDuration == 0 {
		cfg.MinimumWorkDuration = d.MinimumWorkDuration
	}
	if cfg.Quality == (QualityConfig{}) {
		cfg.Quality = d.Quality
	}
	if cfg.MergeConflictPolicy == "" {
		cfg.MergeConflictPolicy = d.MergeConflictPolicy
	}
	return cfg
}

// Strategy owns round-robin task distribution, the completion
// monitoring loop, and the post-merge finalization phase for one
// session's execution.
type Strategy struct {
	log     *logger.Logger
	cfg     Config
	mgr     *agentmgr.Manager
	coord   *workspace.Coordinator
	det     *completion.Detector
	events  *events.Log
	metrics *metrics.Registry

	book *taskBook
}

// New builds a Strategy bound to the given agent manager, workspace
// coordinator, and completion detector.
func New(log *logger.Logger, cfg Config, mgr *agentmgr.Manager, coord *workspace.Coordinator, det *completion.Detector, evLog *events.Log, reg *metrics.Registry) *Strategy {
	return &Strategy{
		log:     log,
		cfg:     defaultConfig(cfg),
		mgr:     mgr,
		coord:   coord,
		det:     det,
		events:  evLog,
		metrics: reg,
	}
}

// Execute distributes prompt's tasks round-robin across numAgents,
// sends each agent its customized initial message, and runs the
// completion monitoring loop until every agent's project is Completed
// or MaxDuration elapses. On success it merges every completed project
// and, if enabled, runs the finalization phase.
func (s *Strategy) Execute(ctx context.Context, p *prompt.Prompt, sessionID string, numAgents int) error {
	queues := distribute(p.Tasks, numAgents)
	s.book = newTaskBook(queues)

	g, gctx := errgroup.WithContext(ctx)
	for agentID := 0; agentID < numAgents; agentID++ {
		agentID := agentID
		g.Go(func() error {
			agent, ok := s.mgr.Agent(agentID)
			if !ok {
				return fmt.Errorf("strategy: no agent %d to assign tasks to", agentID)
			}
			initial := s.initialMessage(p, agentID, agent.ProjectPath, queues[agentID])
			if err := s.mgr.SendToAgent(gctx, agentID, initial); err != nil {
				return xerrors.Channel(agentID, "sending initial task assignment", err)
			}

			// The initial message already delivers task 1's content; claim it
			// from the book so bookkeeping matches what was actually sent.
			first, _, _, ok := s.book.claimNext(agentID)
			if !ok {
				return nil // agent has no assigned tasks
			}
			if err := s.mgr.StartTask(agentID, first.Number); err != nil {
				return err
			}
			s.emit(sessionID, events.TypeTaskAssigned, map[string]interface{}{"agent_id": agentID, "task_count": len(queues[agentID])})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.monitor(ctx, sessionID, numAgents); err != nil {
		return err
	}

	result, err := s.coord.Merge(s.cfg.MergeConflictPolicy)
	if err != nil {
		s.emit(sessionID, events.TypeMergeCompleted, map[string]interface{}{"error": err.Error()})
		return xerrors.MergeFailure("merging agent projects", err)
	}
	s.recordMergeMetrics(result)
	s.emit(sessionID, events.TypeMergeCompleted, map[string]interface{}{
		"merged_projects": result.MergedProjects,
		"files_copied":    result.FilesCopied,
		"conflicts":       len(result.Conflicts),
	})

	if s.cfg.EnableFinalization {
		return s.RunFinalization(ctx, sessionID)
	}
	return nil
}

// initialMessage builds the framing message sent once to each agent:
// the prompt's initial text, this agent's identity/workspace
// declaration, and the full list of tasks assigned to it.
func (s *Strategy) initialMessage(p *prompt.Prompt, agentID int, projectPath string, tasks []prompt.Task) string {
	var b strings.Builder
	b.WriteString(p.InitialPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "You are agent %d. Work only inside your own directory: %s\n", agentID, projectPath)
	b.WriteString("Proceed one task at a time, in the order listed below. Do not start a task until instructed; the first task follows immediately, and subsequent tasks will be delivered automatically as you finish each one.\n\n")
	fmt.Fprintf(&b, "Your assigned tasks (%d total):\n", len(tasks))
	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Description)
	}
	if len(tasks) > 0 {
		b.WriteString("\nBegin with task 1 now:\n\n")
		b.WriteString(tasks[0].Content)
	}
	return b.String()
}

// SendNextTaskToAgent pops the next queued task for agentID and sends
// it as "TASK k of total". Returns false (with no error) if the
// agent's queue is empty, meaning it has finished its slice.
func (s *Strategy) SendNextTaskToAgent(ctx context.Context, sessionID string, agentID int) (bool, error) {
	s.book.completeCurrent(agentID)

	task, position, total, ok := s.book.claimNext(agentID)
	if !ok {
		return false, nil
	}

	message := fmt.Sprintf("TASK %d of %d: %s\n\n%s", position, total, task.Description, task.Content)
	if err := s.mgr.SendToAgent(ctx, agentID, message); err != nil {
		return false, xerrors.Channel(agentID, "sending next task", err)
	}
	if err := s.mgr.StartTask(agentID, task.Number); err != nil {
		return false, err
	}
	s.emit(sessionID, events.TypeTaskAssigned, map[string]interface{}{"agent_id": agentID, "task_number": task.Number, "position": position, "total": total})
	return true, nil
}

// Assignments returns a snapshot of the task assignment ledger.
func (s *Strategy) Assignments() []Assignment {
	if s.book == nil {
		return nil
	}
	return s.book.Assignments()
}

// monitor runs the completion-detection loop: every CheckInterval, for
// each agent whose coordinator project is still in progress past
// MinimumWorkDuration, evaluate completion and the quality gate; on a
// positive verdict, complete the agent's project. Returns once every
// agent's project is Completed or once MaxDuration elapses.
func (s *Strategy) monitor(ctx context.Context, sessionID string, numAgents int) error {
	deadline := time.Now().Add(s.cfg.MaxDuration)
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		if s.allProjectsCompleted(numAgents) {
			return nil
		}
		if time.Now().After(deadline) {
			return xerrors.Timeout("strategy monitor exceeded max duration")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.checkAgents(ctx, sessionID, numAgents)
		}
	}
}

func (s *Strategy) allProjectsCompleted(numAgents int) bool {
	for id := 0; id < numAgents; id++ {
		p, ok := s.coord.Project(id)
		if !ok || p.Status != workspace.StatusCompleted {
			return false
		}
	}
	return true
}

func (s *Strategy) checkAgents(ctx context.Context, sessionID string, numAgents int) {
	for agentID := 0; agentID < numAgents; agentID++ {
		project, ok := s.coord.Project(agentID)
		if !ok || project.Status == workspace.StatusCompleted || project.Status == workspace.StatusFailed {
			continue
		}
		if _, err := s.coord.TrackAgentProgress(agentID); err != nil {
			s.log.Warn("tracking agent progress failed", zap.Int("agent_id", agentID), zap.Error(err))
			continue
		}

		agent, ok := s.mgr.Agent(agentID)
		if !ok {
			continue
		}
		snap := agent.Snapshot()
		if snap.Status == agentmgr.StatusError {
			continue // recovery is the agent manager's job, not ours
		}
		if snap.TaskStartTime.IsZero() || time.Since(snap.TaskStartTime) < s.cfg.MinimumWorkDuration {
			continue
		}

		likely, confidence, err := s.isCompletionLikely(ctx, agentID)
		if err != nil {
			s.log.Warn("completion check failed", zap.Int("agent_id", agentID), zap.Error(err))
			continue
		}
		if s.metrics != nil {
			s.metrics.CompletionConfidence.WithLabelValues(sessionID).Observe(confidence)
		}
		if !likely {
			continue
		}

		// The quality gate only guards the final transition to Completed;
		// an agent with more queued tasks simply moves on to the next one.
		if s.book.remainingQueued(agentID) == 0 {
			gateOK, filesCreated, meaningfulFiles, _, err := passesQualityGate(project.ProjectDir, s.cfg.Quality)
			if err != nil {
				s.log.Warn("quality gate check failed", zap.Int("agent_id", agentID), zap.Error(err))
				continue
			}
			if !gateOK {
				s.log.Debug("completion signal present but quality gate not satisfied",
					zap.Int("agent_id", agentID), zap.Int("files_created", filesCreated), zap.Int("meaningful_files", meaningfulFiles))
				continue
			}
		}

		// A positive signal means the agent is done with its current
		// task. If more tasks are queued, deliver the next one; only an
		// empty queue means the whole project is ready for completion.
		sent, err := s.SendNextTaskToAgent(ctx, sessionID, agentID)
		if err != nil {
			s.log.Warn("sending next task failed", zap.Int("agent_id", agentID), zap.Error(err))
			continue
		}
		if s.metrics != nil {
			s.metrics.TasksCompleted.Inc()
		}
		if sent {
			continue
		}

		if _, err := s.coord.CompleteAgentProject(agentID); err != nil {
			s.log.Warn("completing agent project failed", zap.Int("agent_id", agentID), zap.Error(err))
			continue
		}
		if err := s.mgr.MarkCompleted(agentID); err != nil {
			s.log.Warn("marking agent completed failed", zap.Int("agent_id", agentID), zap.Error(err))
		}
		s.emit(sessionID, events.TypeProjectCompleted, map[string]interface{}{"agent_id": agentID, "confidence": confidence})
	}
}

// isCompletionLikely reports the completion signal for agentID: the
// full weighted detector when enhanced detection is enabled, otherwise
// only the pattern signal (check_agent_working == false).
func (s *Strategy) isCompletionLikely(ctx context.Context, agentID int) (bool, float64, error) {
	if !s.cfg.EnhancedDetection {
		working, err := s.mgr.CheckAgentWorking(ctx, agentID)
		if err != nil {
			return false, 0, err
		}
		if !working {
			return true, 1.0, nil
		}
		return false, 0.0, nil
	}

	result, err := s.det.Evaluate(ctx, agentID)
	if err != nil {
		return false, 0, err
	}
	return result.CompletionLikely, result.OverallConfidence, nil
}

func (s *Strategy) recordMergeMetrics(result *workspace.MergeResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.MergedProjects.Add(float64(result.MergedProjects))
	s.metrics.MergeConflicts.Add(float64(len(result.Conflicts)))
}

func (s *Strategy) emit(sessionID, eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(sessionID, eventType, data); err != nil {
		s.log.Warn("failed to append event", zap.String("event_type", eventType), zap.Error(err))
	}
}
