// Package orchestrator is the top-level session driver: it builds the
// session workspace, wires the workspace coordinator, agent manager, and
// pane manager together, runs the parallel strategy, and supervises a
// post-execution monitor loop that renders status and evaluates merge
// triggers until the run is interrupted or complete.
package orchestrator

import (
	"context"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/bus"
	"github.com/kspringfield13/xenosync/internal/common/config"
	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/common/logger"
	"github.com/kspringfield13/xenosync/internal/common/xerrors"
	"github.com/kspringfield13/xenosync/internal/completion"
	"github.com/kspringfield13/xenosync/internal/metrics"
	"github.com/kspringfield13/xenosync/internal/panemgr"
	"github.com/kspringfield13/xenosync/internal/prompt"
	"github.com/kspringfield13/xenosync/internal/session"
	"github.com/kspringfield13/xenosync/internal/store"
	"github.com/kspringfield13/xenosync/internal/strategy"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

// StatusTick is the post-execution monitor's render/merge-trigger interval.
const StatusTick = 10 * time.Second

// SentinelFileName, observed inside the session workspace root, has the
// same effect as a force-merge signal and is consumed on observation.
const SentinelFileName = ".xenosync_merge_now"

// Orchestrator drives exactly one session end to end.
type Orchestrator struct {
	log     *logger.Logger
	cfg     *config.Config
	store   *session.Store
	index   *store.Store
	pub     bus.Publisher
	mux     panemgr.Multiplexer
	metrics *metrics.Registry

	interrupted atomic.Bool
	forceMerge  atomic.Bool

	mu      sync.Mutex
	merging bool
}

// New builds an Orchestrator bound to the given configuration, session
// store, SQLite list/stats index, event bus publisher, and pane
// multiplexer. index and pub may be nil: a nil index skips the secondary
// index update and a nil pub disables event mirroring.
func New(log *logger.Logger, cfg *config.Config, sessStore *session.Store, index *store.Store, pub bus.Publisher, mux panemgr.Multiplexer, reg *metrics.Registry) *Orchestrator {
	return &Orchestrator{log: log, cfg: cfg, store: sessStore, index: index, pub: pub, mux: mux, metrics: reg}
}

// Run executes one session: it creates the workspace, initializes every
// agent, runs the parallel strategy concurrently with its own status and
// merge-trigger monitor, and persists the final session status. It
// returns once the session has reached a terminal state.
func (o *Orchestrator) Run(parent context.Context, sess *session.Session, p *prompt.Prompt) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	go o.watchInterrupt(sigCtx, cancel)
	go o.watchForceMergeSignal(ctx)

	log := o.log.ForSession(sess.ID)
	evLog := events.Open(o.store.EventsPath(sess.ID))

	coord, err := workspace.New(log, workspace.Config{
		SessionWorkspaceDir: sess.WorkspaceDir,
		ProjectName:         sess.ProjectName,
		MergeStrategy:       o.cfg.ProjectMergeStrategy,
	})
	if err != nil {
		return o.fail(sess, xerrors.Config("building workspace coordinator", err))
	}

	if o.mux != nil {
		if err := o.mux.CreateSession(ctx, sess.NumAgents); err != nil {
			return o.fail(sess, xerrors.Config("creating multiplexer session", err))
		}
		if o.cfg.AutoOpenTerminal {
			if err := o.mux.OpenAttachedTerminal(o.cfg.PreferredTerminal); err != nil {
				log.Warn("opening attached terminal failed", zap.Error(err))
			}
		}
	}

	mgr := agentmgr.New(log, agentmgrConfig(o.cfg), coord, o.mux, evLog, o.metrics)
	if err := mgr.InitializeAgents(ctx, sess.ID, sess.NumAgents); err != nil {
		return o.fail(sess, xerrors.Config("initializing agents", err))
	}
	go mgr.Monitor(ctx)

	det := completion.New(completionConfig(o.cfg), mgr, coord)
	strat := strategy.New(log, strategyConfig(o.cfg), mgr, coord, det, evLog, o.metrics)

	o.emit(evLog, sess, events.TypeSessionStarted, map[string]interface{}{"num_agents": sess.NumAgents})
	o.upsertIndex(ctx, sess)

	done := make(chan error, 1)
	go func() { done <- strat.Execute(ctx, p, sess.ID, sess.NumAgents) }()

	runErr := o.postExecutionMonitor(ctx, log, sess, coord, mgr, done)

	forceExit := o.interrupted.Load()
	mgr.StopAll(context.Background())
	if forceExit && o.mux != nil {
		o.mux.KillSession(context.Background())
	}

	switch {
	case o.interrupted.Load():
		sess.Status = session.StatusInterrupted
		o.emit(evLog, sess, events.TypeSessionInterrupted, nil)
	case runErr != nil:
		sess.Status = session.StatusFailed
		sess.Error = runErr.Error()
		o.emit(evLog, sess, events.TypeSessionFailed, map[string]interface{}{"error": runErr.Error()})
	default:
		sess.Status = session.StatusCompleted
		o.emit(evLog, sess, events.TypeSessionCompleted, nil)
	}
	now := time.Now().UTC()
	sess.EndedAt = &now

	if err := o.store.SaveSession(sess); err != nil {
		log.Warn("saving final session status failed", zap.Error(err))
	}
	o.upsertIndex(context.Background(), sess)
	return runErr
}

func (o *Orchestrator) fail(sess *session.Session, err error) error {
	sess.Status = session.StatusFailed
	sess.Error = err.Error()
	now := time.Now().UTC()
	sess.EndedAt = &now
	if saveErr := o.store.SaveSession(sess); saveErr != nil {
		o.log.Warn("saving failed session status failed", zap.Error(saveErr))
	}
	o.upsertIndex(context.Background(), sess)
	return err
}

// emit appends an event to the session's durable events.log and, when a
// bus publisher is configured, mirrors it onto the message bus for
// external dashboards.
func (o *Orchestrator) emit(evLog *events.Log, sess *session.Session, eventType string, data map[string]interface{}) {
	if err := evLog.Append(sess.ID, eventType, data); err != nil {
		o.log.Warn("writing event log entry failed", zap.String("event_type", eventType), zap.Error(err))
	}
	if o.pub != nil {
		ev := events.Event{SessionID: sess.ID, Timestamp: time.Now().UTC(), EventType: eventType, Data: data}
		if err := o.pub.Publish(ev); err != nil {
			o.log.Warn("publishing event to bus failed", zap.String("event_type", eventType), zap.Error(err))
		}
	}
}

// upsertIndex refreshes the session's row in the SQLite list/stats index.
// A nil index (no store.path configured) makes this a no-op.
func (o *Orchestrator) upsertIndex(ctx context.Context, sess *session.Session) {
	if o.index == nil {
		return
	}
	row := store.SessionRow{
		ID:          sess.ID,
		ProjectName: sess.ProjectName,
		PromptName:  sess.PromptName,
		Status:      string(sess.Status),
		NumAgents:   sess.NumAgents,
		TotalSteps:  sess.TotalSteps,
		CurrentStep: sess.CurrentStep,
		StartedAt:   sess.StartedAt,
		EndedAt:     sess.EndedAt,
	}
	if err := o.index.Upsert(ctx, row); err != nil {
		o.log.Warn("updating session index failed", zap.Error(err))
	}
}

func agentmgrConfig(c *config.Config) agentmgr.Config {
	return agentmgr.Config{
		LaunchDelay:        time.Duration(c.AgentLaunchDelaySec) * time.Second,
		MessageGracePeriod: time.Duration(c.MessageGracePeriodSec) * time.Second,
		CompletionPatterns: c.SemanticCompletionPatterns,
		AgentCommand:       c.AgentCommand,
		AgentArgs:          c.AgentArgs,
	}
}

func completionConfig(c *config.Config) completion.Config {
	return completion.Config{
		Weights: completion.Weights{
			Patterns:     c.CompletionWeightPatterns,
			FileActivity: c.CompletionWeightFileActivity,
			Verification: c.CompletionWeightVerification,
			Time:         c.CompletionWeightTime,
		},
		Threshold:            c.CompletionConfidenceThreshold,
		FileActivityTimeout:  time.Duration(c.FileActivityTimeoutMin) * time.Minute,
		FileActivityWindow:   time.Duration(c.FileActivityWindowMin) * time.Minute,
		MinimumTaskDuration:  time.Duration(c.TaskMinimumDurationSec) * time.Second,
		VerificationEnabled:  c.CompletionVerificationEnabled,
		VerificationInterval: time.Duration(c.CompletionVerificationInterval) * time.Second,
		VerificationMessage:  c.CompletionVerificationMessage,
		VerificationWait:     time.Duration(c.VerificationResponseWaitSec) * time.Second,
		VerificationLines:    c.VerificationResponseLines,
		CompletionPatterns:   c.SemanticCompletionPatterns,
	}
}

func strategyConfig(c *config.Config) strategy.Config {
	var policy workspace.ConflictPolicy
	switch c.ConflictResolution {
	case string(workspace.PolicyOverwrite):
		policy = workspace.PolicyOverwrite
	default:
		policy = workspace.PolicySkip
	}
	return strategy.Config{
		CheckInterval:       time.Duration(c.TaskCompletionCheckIntervalSec) * time.Second,
		MinimumWorkDuration: time.Duration(c.MinimumWorkDurationMinutes) * time.Minute,
		EnhancedDetection:   true,
		Quality: strategy.QualityConfig{
			FilesThreshold:     c.ProjectQualityThreshold,
			SubstantialBytes:   c.ProjectSubstantialWorkThreshold,
			MinMeaningfulFiles: 2,
		},
		MergeConflictPolicy: policy,
		EnableFinalization:  c.EnableFinalization,
		Finalization: strategy.FinalizationConfig{
			Timeout:       time.Duration(c.FinalizationTimeoutSec) * time.Second,
			CheckInterval: 15 * time.Second,
			Tasks:         c.FinalizationTasks,
		},
	}
}
