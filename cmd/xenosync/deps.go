package main

import (
	"github.com/kspringfield13/xenosync/internal/bus"
	"github.com/kspringfield13/xenosync/internal/common/config"
	"github.com/kspringfield13/xenosync/internal/panemgr"
	"github.com/kspringfield13/xenosync/internal/session"
	"github.com/kspringfield13/xenosync/internal/store"
)

// toSessionRow mirrors session.Session into the SQLite index's row shape,
// the same projection internal/orchestrator's upsertIndex performs.
func toSessionRow(sess *session.Session) store.SessionRow {
	return store.SessionRow{
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
}

// sessionStore resolves the session.Store rooted at cfg's configured
// sessions directory.
func sessionStore(cfg *config.Config) (*session.Store, error) {
	return session.NewStore(cfg.SessionsDir)
}

// openIndex opens the SQLite secondary index when cfg.Store.Path is set,
// returning a nil *store.Store (a valid no-op value throughout this
// package) otherwise.
func openIndex(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}

// newBus builds the event bus publisher named by cfg.NATS, or a no-op
// publisher when no URL is configured.
func newBus(cfg *config.Config) bus.Publisher {
	return bus.New(cfg.NATS.URL, cfg.NATS.Namespace, log)
}

// newMultiplexer returns a tmux-backed Multiplexer when both cfg.UseTmux
// is set and the tmux binary is actually reachable, nil otherwise — a nil
// Multiplexer degrades every pane operation in the orchestrator to direct
// mode. Every run shares panemgr.DefaultSessionName: only one xenosync
// session is ever live in a given tmux server at a time, matching the
// teardown-and-recreate behavior of TmuxMultiplexer.CreateSession.
func newMultiplexer(cfg *config.Config) panemgr.Multiplexer {
	if !cfg.UseTmux || !panemgr.IsAvailable() {
		return nil
	}
	return panemgr.New(log, panemgr.DefaultSessionName)
}
