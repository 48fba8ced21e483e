package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// watchInterrupt cancels the run on SIGINT/SIGTERM and records that the
// shutdown was operator-initiated, so Run tears the multiplexer session
// down instead of leaving agents attached.
func (o *Orchestrator) watchInterrupt(sigCtx context.Context, cancel context.CancelFunc) {
	<-sigCtx.Done()
	o.interrupted.Store(true)
	cancel()
}

// watchForceMergeSignal listens for SIGUSR1, the operator's "merge what's
// done right now" signal, and latches it for the post-execution monitor to
// observe and consume on its next tick.
func (o *Orchestrator) watchForceMergeSignal(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			o.forceMerge.Store(true)
		}
	}
}

// checkForceMerge reports whether a force-merge was requested since the
// last check, via signal or the sentinel file dropped into the session
// workspace, and consumes whichever triggered it.
func (o *Orchestrator) checkForceMerge(workspaceDir string) bool {
	if o.forceMerge.Swap(false) {
		return true
	}
	sentinel := filepath.Join(workspaceDir, SentinelFileName)
	if _, err := os.Stat(sentinel); err == nil {
		os.Remove(sentinel)
		return true
	}
	return false
}
