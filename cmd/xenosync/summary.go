package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kspringfield13/xenosync/internal/common/events"
	"github.com/kspringfield13/xenosync/internal/session"
)

// generateSummary renders a session report in one of markdown, json, or
// html, mirroring the original implementation's three _generate_*_summary
// methods.
func generateSummary(sess *session.Session, steps []session.Step, evs []events.Event, format string) (string, error) {
	switch format {
	case "", "markdown":
		return generateMarkdownSummary(sess, steps), nil
	case "json":
		return generateJSONSummary(sess, steps, evs)
	case "html":
		return generateHTMLSummary(sess, steps), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func generateMarkdownSummary(sess *session.Session, steps []session.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Sync Session Summary\n\n## Session: %s\n\n", sess.ID)
	b.WriteString("### Overview\n")
	fmt.Fprintf(&b, "- **Project**: %s\n", sess.ProjectName)
	fmt.Fprintf(&b, "- **Status**: %s\n", sess.Status)
	fmt.Fprintf(&b, "- **Started**: %s\n", sess.StartedAt.Format("2006-01-02 15:04:05"))
	if sess.EndedAt != nil {
		fmt.Fprintf(&b, "- **Ended**: %s\n", sess.EndedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "- **Duration**: %s\n", sess.EndedAt.Sub(sess.StartedAt).Round(1e9))
	} else {
		b.WriteString("- **Ended**: N/A\n- **Duration**: N/A\n")
	}
	fmt.Fprintf(&b, "- **Progress**: %d/%d steps (%s)\n\n", sess.CurrentStep, sess.TotalSteps, progressPercent(sess))

	b.WriteString("### Sync Steps\n")
	for _, st := range steps {
		fmt.Fprintf(&b, "\n%s **Step %d**: %s\n", stepIcon(st.Status), st.StepNumber, orNA(st.Description))
		if st.StartedAt != nil && st.CompletedAt != nil {
			fmt.Fprintf(&b, "   - Duration: %s\n", st.CompletedAt.Sub(*st.StartedAt).Round(1e9))
		}
		if st.Error != "" {
			fmt.Fprintf(&b, "   - Error: %s\n", st.Error)
		}
	}

	if sess.Error != "" {
		fmt.Fprintf(&b, "\n### Error\n%s\n", sess.Error)
	}

	return b.String()
}

func generateJSONSummary(sess *session.Session, steps []session.Step, evs []events.Event) (string, error) {
	doc := map[string]interface{}{
		"session": sess,
		"steps":   steps,
		"events":  evs,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func generateHTMLSummary(sess *session.Session, steps []session.Step) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<title>Session ")
	b.WriteString(sess.ID)
	b.WriteString("</title>\n<style>\nbody { font-family: Arial, sans-serif; margin: 20px; }\n")
	b.WriteString(".status-completed { color: green; } .status-failed { color: red; } .status-active { color: blue; }\n")
	b.WriteString(".step { margin: 10px 0; padding: 10px; border-left: 3px solid #ccc; }\n")
	b.WriteString(".step-completed { border-color: green; } .step-failed { border-color: red; } .step-in_progress { border-color: orange; }\n")
	b.WriteString("</style>\n</head>\n<body>\n<h1>Sync Session Summary</h1>\n")
	fmt.Fprintf(&b, "<h2>Session: %s</h2>\n<h3>Overview</h3>\n<ul>\n", sess.ID)
	fmt.Fprintf(&b, "<li><strong>Project</strong>: %s</li>\n", sess.ProjectName)
	fmt.Fprintf(&b, `<li><strong>Status</strong>: <span class="status-%s">%s</span></li>`+"\n", sess.Status, sess.Status)
	fmt.Fprintf(&b, "<li><strong>Progress</strong>: %d/%d (%s)</li>\n", sess.CurrentStep, sess.TotalSteps, progressPercent(sess))
	duration := "N/A"
	if sess.EndedAt != nil {
		duration = sess.EndedAt.Sub(sess.StartedAt).Round(1e9).String()
	}
	fmt.Fprintf(&b, "<li><strong>Duration</strong>: %s</li>\n</ul>\n<h3>Sync Steps</h3>\n", duration)

	for _, st := range steps {
		fmt.Fprintf(&b, "<div class=\"step step-%s\">\n<strong>Step %d</strong>: %s<br>Status: %s\n",
			st.Status, st.StepNumber, orNA(st.Description), st.Status)
		if st.StartedAt != nil && st.CompletedAt != nil {
			fmt.Fprintf(&b, "<br>Duration: %s\n", st.CompletedAt.Sub(*st.StartedAt).Round(1e9))
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</body>\n</html>")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
