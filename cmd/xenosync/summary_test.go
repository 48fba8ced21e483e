package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/session"
)

func testSessionForSummary() *session.Session {
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	ended := started.Add(20 * time.Minute)
	return &session.Session{
		ID:          "sess-123",
		ProjectName: "widget-api",
		Status:      session.StatusCompleted,
		CurrentStep: 3,
		TotalSteps:  3,
		StartedAt:   started,
		EndedAt:     &ended,
	}
}

func testStepsForSummary() []session.Step {
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(5 * time.Minute)
	return []session.Step{
		{StepNumber: 1, Description: "scaffold project", Status: session.StepCompleted, StartedAt: &started, CompletedAt: &completed},
		{StepNumber: 2, Description: "add handlers", Status: session.StepFailed, Error: "panic: nil pointer"},
	}
}

func TestGenerateMarkdownSummaryIncludesStepsAndError(t *testing.T) {
	sess := testSessionForSummary()
	out, err := generateSummary(sess, testStepsForSummary(), nil, "markdown")
	require.NoError(t, err)
	require.Contains(t, out, "# Sync Session Summary")
	require.Contains(t, out, "widget-api")
	require.Contains(t, out, "Step 1")
	require.Contains(t, out, "Step 2")
	require.Contains(t, out, "panic: nil pointer")
}

func TestGenerateJSONSummaryIncludesSessionID(t *testing.T) {
	sess := testSessionForSummary()
	out, err := generateSummary(sess, testStepsForSummary(), nil, "json")
	require.NoError(t, err)
	require.True(t, strings.Contains(out, `"id": "sess-123"`) || strings.Contains(out, `"ID": "sess-123"`))
}

func TestGenerateHTMLSummaryIncludesStatusClasses(t *testing.T) {
	sess := testSessionForSummary()
	out, err := generateSummary(sess, testStepsForSummary(), nil, "html")
	require.NoError(t, err)
	require.Contains(t, out, "<!DOCTYPE html>")
	require.Contains(t, out, "status-completed")
	require.Contains(t, out, "step-failed")
}

func TestGenerateSummaryRejectsUnknownFormat(t *testing.T) {
	_, err := generateSummary(testSessionForSummary(), nil, nil, "xml")
	require.Error(t, err)
}

func TestStepIconCoversEveryStatus(t *testing.T) {
	statuses := []session.StepStatus{
		session.StepPending, session.StepInProgress, session.StepCompleted,
		session.StepFailed, session.StepSkipped,
	}
	for _, s := range statuses {
		require.NotEqual(t, "❓", stepIcon(s), "status %q should have a dedicated icon", s)
	}
	require.Equal(t, "❓", stepIcon(session.StepStatus("unknown")))
}

func TestProgressPercentHandlesZeroTotalSteps(t *testing.T) {
	sess := &session.Session{TotalSteps: 0, CurrentStep: 0}
	require.Equal(t, "0%", progressPercent(sess))

	sess = &session.Session{TotalSteps: 4, CurrentStep: 1}
	require.Equal(t, "25%", progressPercent(sess))
}
