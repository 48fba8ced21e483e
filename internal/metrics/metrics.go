// Package metrics exposes Prometheus instrumentation for the orchestration
// engine against a private registry. The CLI builds a Registry and serves
// /metrics only when metrics.enabled is set; otherwise no Registry exists
// and the orchestrator's components skip recording.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the metrics xenosync records during a run.
type Registry struct {
	reg *prometheus.Registry

	AgentStatus           *prometheus.GaugeVec
	CompletionConfidence  *prometheus.HistogramVec
	RecoveryAttempts      *prometheus.CounterVec
	MergeConflicts        prometheus.Counter
	MergedProjects        prometheus.Counter
	TasksCompleted        prometheus.Counter
	FinalizationOutcome   *prometheus.CounterVec
}

// New builds a fresh, independent metrics registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{
		reg: reg,
		AgentStatus: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "xenosync",
			Name:      "agent_status",
			Help:      "Current status of each agent (1 = in this status, 0 otherwise).",
		}, []string{"session_id", "agent_id", "status"}),
		CompletionConfidence: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xenosync",
			Name:      "completion_confidence",
			Help:      "Distribution of overall completion confidence scores observed.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"session_id"}),
		RecoveryAttempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "xenosync",
			Name:      "agent_recovery_attempts_total",
			Help:      "Number of error-recovery attempts made per agent.",
		}, []string{"session_id", "agent_id"}),
		MergeConflicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "xenosync",
			Name:      "merge_conflicts_total",
			Help:      "Number of conflicting paths recorded across all merges.",
		}),
		MergedProjects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "xenosync",
			Name:      "merged_projects_total",
			Help:      "Number of agent projects successfully merged into final-project.",
		}),
		TasksCompleted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "xenosync",
			Name:      "tasks_completed_total",
			Help:      "Number of tasks confirmed completed across all sessions.",
		}),
		FinalizationOutcome: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "xenosync",
			Name:      "finalization_outcome_total",
			Help:      "Finalization phase outcomes by result (completed, error, timeout).",
		}, []string{"result"}),
	}
}

// Serve starts a background HTTP server exposing /metrics at addr. It
// returns a shutdown function; callers should defer it.
func (r *Registry) Serve(addr string) (shutdown func(context.Context) error, err error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Give the listener a brief moment to fail fast on bad addresses.
	select {
	case err := <-errCh:
		return nil, err
	case <-time.After(50 * time.Millisecond):
	}

	return srv.Shutdown, nil
}
