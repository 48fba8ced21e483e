package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/common/logger"
)

func TestCheckForceMergeConsumesLatchedFlag(t *testing.T) {
	o := &Orchestrator{log: logger.Default()}
	require.False(t, o.checkForceMerge(t.TempDir()))

	o.forceMerge.Store(true)
	require.True(t, o.checkForceMerge(t.TempDir()))
	// Consumed: the next check must be false until re-triggered.
	require.False(t, o.checkForceMerge(t.TempDir()))
}

func TestCheckForceMergeConsumesSentinelFile(t *testing.T) {
	o := &Orchestrator{log: logger.Default()}
	dir := t.TempDir()
	sentinel := filepath.Join(dir, SentinelFileName)
	require.NoError(t, os.WriteFile(sentinel, []byte{}, 0o644))

	require.True(t, o.checkForceMerge(dir))
	_, err := os.Stat(sentinel)
	require.True(t, os.IsNotExist(err))

	require.False(t, o.checkForceMerge(dir))
}

func TestWatchForceMergeSignalLatchesOnSIGUSR1(t *testing.T) {
	o := &Orchestrator{log: logger.Default()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go o.watchForceMergeSignal(ctx)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool {
		return o.forceMerge.Load()
	}, time.Second, time.Millisecond)
}
