package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/common/config"
	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/session"
)

func TestToSessionRowMirrorsSessionFields(t *testing.T) {
	started := time.Now().UTC()
	sess := &session.Session{
		ID: "s1", ProjectName: "proj", PromptName: "prompt",
		Status: session.StatusActive, NumAgents: 3,
		TotalSteps: 5, CurrentStep: 2, StartedAt: started,
	}
	row := toSessionRow(sess)
	require.Equal(t, "s1", row.ID)
	require.Equal(t, "proj", row.ProjectName)
	require.Equal(t, string(session.StatusActive), row.Status)
	require.Equal(t, 3, row.NumAgents)
	require.Equal(t, 5, row.TotalSteps)
	require.Equal(t, 2, row.CurrentStep)
	require.Nil(t, row.EndedAt)
}

func TestSessionStoreUsesConfiguredDirectory(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "xsync-sessions")
	cfg := &config.Config{SessionsDir: root}
	s, err := sessionStore(cfg)
	require.NoError(t, err)
	require.DirExists(t, root)
	require.Equal(t, filepath.Join(root, "abc", "workspace"), s.WorkspaceDir("abc"))
}

func TestOpenIndexNilWhenStorePathUnset(t *testing.T) {
	cfg := &config.Config{}
	idx, err := openIndex(cfg)
	require.NoError(t, err)
	require.Nil(t, idx)
}

func TestOpenIndexOpensConfiguredPath(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Path: filepath.Join(t.TempDir(), "idx.db")}}
	idx, err := openIndex(cfg)
	require.NoError(t, err)
	require.NotNil(t, idx)
	defer idx.Close()

	require.NoError(t, idx.Upsert(context.Background(), toSessionRow(&session.Session{
		ID: "s1", Status: session.StatusActive, StartedAt: time.Now().UTC(),
	})))
}

func TestNewBusIsNoopWithoutURL(t *testing.T) {
	cfg := &config.Config{}
	pub := newBus(cfg)
	require.NotNil(t, pub)
	require.NoError(t, pub.Publish(events.Event{SessionID: "s1", EventType: "session_started"}))
}
