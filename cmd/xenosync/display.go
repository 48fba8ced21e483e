package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kspringfield13/xenosync/internal/session"
	"github.com/kspringfield13/xenosync/internal/store"
)

var (
	styleBanner  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	styleBold    = lipgloss.NewStyle().Bold(true)
)

// statusDot renders a colored one-character status indicator, the Go
// equivalent of the original CLI's colored status glyph.
func statusDot(status string) string {
	switch status {
	case string(session.StatusCompleted):
		return styleSuccess.Render("●")
	case string(session.StatusFailed):
		return styleError.Render("●")
	case string(session.StatusInterrupted):
		return styleWarning.Render("●")
	case string(session.StatusActive):
		return styleInfo.Render("●")
	default:
		return styleMuted.Render("●")
	}
}

// printBanner prints xenosync's startup banner, grounded on the original
// implementation's print_banner but rendered with lipgloss instead of
// raw ANSI escapes.
func printBanner() {
	fmt.Println(styleBanner.Render("═══════════════════════════════════════"))
	fmt.Println(styleBanner.Render("  XENOSYNC — Alien Synchronization Platform"))
	fmt.Println(styleBanner.Render("═══════════════════════════════════════"))
}

// shortID truncates a session id to its first 8 characters for compact
// display, matching the original CLI's session_id[:8] convention.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// displaySessionSummary prints one line per session: status dot, short
// id, project name, and progress.
func displaySessionSummary(sess *session.Session) {
	fmt.Printf("%s %s  %-24s  %d/%d steps  started %s\n",
		statusDot(string(sess.Status)), shortID(sess.ID), sess.ProjectName,
		sess.CurrentStep, sess.TotalSteps, sess.StartedAt.Format("2006-01-02 15:04:05"))
}

// displaySessionSummaryRow is the store.SessionRow counterpart of
// displaySessionSummary, used by `list` when reading from the
// SQLite index instead of session.json directly.
func displaySessionSummaryRow(row store.SessionRow) {
	fmt.Printf("%s %s  %-24s  %d/%d steps  started %s\n",
		statusDot(row.Status), shortID(row.ID), row.ProjectName,
		row.CurrentStep, row.TotalSteps, row.StartedAt.Format("2006-01-02 15:04:05"))
}

// displaySessionStatus prints one session's status block. detailed adds
// per-step breakdown.
func displaySessionStatus(sess *session.Session, steps []session.Step, detailed bool) {
	fmt.Println(styleBold.Render("Session: ") + sess.ID)
	fmt.Printf("  Status:   %s %s\n", statusDot(string(sess.Status)), sess.Status)
	fmt.Printf("  Project:  %s\n", sess.ProjectName)
	fmt.Printf("  Agents:   %d\n", sess.NumAgents)
	fmt.Printf("  Progress: %d/%d steps (%s)\n", sess.CurrentStep, sess.TotalSteps, progressPercent(sess))
	fmt.Printf("  Started:  %s\n", sess.StartedAt.Format("2006-01-02 15:04:05"))
	if sess.EndedAt != nil {
		fmt.Printf("  Ended:    %s\n", sess.EndedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Duration: %s\n", sess.EndedAt.Sub(sess.StartedAt).Round(time.Second))
	}
	if sess.Error != "" {
		fmt.Println(styleError.Render("  Error:    " + sess.Error))
	}

	if !detailed {
		return
	}
	fmt.Println(styleBold.Render("  Steps:"))
	for _, st := range steps {
		fmt.Printf("    %s step %d: %s\n", stepIcon(st.Status), st.StepNumber, st.Description)
		if st.Error != "" {
			fmt.Println(styleError.Render("        error: " + st.Error))
		}
	}
}

func progressPercent(sess *session.Session) string {
	if sess.TotalSteps == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", 100*float64(sess.CurrentStep)/float64(sess.TotalSteps))
}

// stepIcon maps a step status onto the emoji set the original summary
// generator uses, shared by the detailed status view and the markdown
// report renderer.
func stepIcon(status session.StepStatus) string {
	switch status {
	case session.StepCompleted:
		return "✅" // checkmark
	case session.StepInProgress:
		return "\U0001F504" // arrows
	case session.StepFailed:
		return "❌" // cross mark
	case session.StepPending:
		return "⏳" // hourglass
	case session.StepSkipped:
		return "⏭️" // skip
	default:
		return "❓" // question mark
	}
}

// displayStatistics prints the aggregate Stats block.
func displayStatistics(days int, stats store.Stats) {
	period := "all time"
	if days > 0 {
		period = fmt.Sprintf("last %d days", days)
	}
	fmt.Println(styleBold.Render(fmt.Sprintf("Statistics (%s)", period)))
	fmt.Printf("  Total sessions:   %d\n", stats.Total)
	fmt.Printf("  Completed:        %d\n", stats.Completed)
	fmt.Printf("  Failed:           %d\n", stats.Failed)
	fmt.Printf("  Interrupted:      %d\n", stats.Interrupted)
	fmt.Printf("  Active:           %d\n", stats.Active)
	if stats.Total > 0 {
		rate := 100 * float64(stats.Completed) / float64(stats.Total)
		fmt.Printf("  Success rate:     %.1f%%\n", rate)
	}
	fmt.Printf("  Avg steps/session: %.1f\n", stats.AvgStepCount)
}

// rule returns a horizontal rule of the given width, used to frame the
// interrupt message the same way the original CLI's "=" * 60 does.
func rule(width int) string {
	return strings.Repeat("=", width)
}
