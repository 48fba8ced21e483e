// Package completion computes a weighted completion-confidence score for
// one agent from four signals: pattern recognition, file activity,
// semantic verification, and task duration.
package completion

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kspringfield13/xenosync/internal/agentmgr"
	"github.com/kspringfield13/xenosync/internal/workspace"
)

// Weights must sum to 1.0; config.LoadWithPath's validation in
// internal/common/config enforces this at load time.
type Weights struct {
	Patterns     float64
	FileActivity float64
	Verification float64
	Time         float64
}

// Config tunes the detector's signals, mirroring the completion_* keys.
type Config struct {
	Weights               Weights
	Threshold             float64
	FileActivityTimeout   time.Duration
	FileActivityWindow    time.Duration
	MinimumTaskDuration    time.Duration
	VerificationEnabled    bool
	VerificationInterval   time.Duration
	VerificationMessage    string
	VerificationWait       time.Duration
	VerificationLines      int
	CompletionPatterns     []string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Weights:              Weights{Patterns: 0.25, FileActivity: 0.25, Verification: 0.35, Time: 0.15},
		Threshold:            0.7,
		FileActivityTimeout:  10 * time.Minute,
		FileActivityWindow:   15 * time.Minute,
		MinimumTaskDuration:  5 * time.Minute,
		VerificationEnabled:  true,
		VerificationInterval: 300 * time.Second,
		VerificationMessage:  "Please confirm if you have completed your assigned tasks. Respond with 'COMPLETED' if finished, or describe what you're still working on.",
		VerificationWait:     30 * time.Second,
		VerificationLines:    15,
	}
}

// SignalScores is the per-signal breakdown behind one Result.
type SignalScores struct {
	Pattern      float64 `json:"pattern"`
	FileActivity float64 `json:"file_activity"`
	Verification float64 `json:"verification"`
	Time         float64 `json:"time"`
}

// Result is the detector's verdict for one agent at one point in time.
type Result struct {
	OverallConfidence float64      `json:"overall_confidence"`
	CompletionLikely  bool         `json:"completion_likely"`
	SignalScores      SignalScores `json:"signal_scores"`
	Details           map[string]string `json:"signal_details,omitempty"`
}

// Detector is read-only except for caching a verification score on the
// agent record and, at most, sending one verification probe per call.
type Detector struct {
	cfg   Config
	mgr   *agentmgr.Manager
	coord *workspace.Coordinator
}

// New builds a Detector bound to the agent manager (for patterns, output,
// and messaging) and the workspace coordinator (for file activity).
func New(cfg Config, mgr *agentmgr.Manager, coord *workspace.Coordinator) *Detector {
	return &Detector{cfg: cfg, mgr: mgr, coord: coord}
}

// Evaluate computes the weighted confidence for agentID.
func (d *Detector) Evaluate(ctx context.Context, agentID int) (Result, error) {
	agent, ok := d.mgr.Agent(agentID)
	if !ok {
		return Result{}, errUnknownAgent(agentID)
	}

	details := make(map[string]string)

	patternScore, err := d.patternSignal(ctx, agentID)
	if err != nil {
		return Result{}, err
	}

	fileScore, fileDetail := d.fileActivitySignal(agentID)
	details["file_activity"] = fileDetail

	verifyScore, verifyDetail := d.verificationSignal(ctx, agent)
	details["verification"] = verifyDetail

	timeScore := d.timeSignal(agent)

	w := d.cfg.Weights
	overall := w.Patterns*patternScore + w.FileActivity*fileScore + w.Verification*verifyScore + w.Time*timeScore
	overall = clamp01(overall)

	result := Result{
		OverallConfidence: overall,
		CompletionLikely:  overall >= d.cfg.Threshold,
		SignalScores: SignalScores{
			Pattern:      patternScore,
			FileActivity: fileScore,
			Verification: verifyScore,
			Time:         timeScore,
		},
		Details: details,
	}

	agent.PushConfidence(overall)
	return result, nil
}

func (d *Detector) patternSignal(ctx context.Context, agentID int) (float64, error) {
	working, err := d.mgr.CheckAgentWorking(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if !working {
		return 1.0, nil
	}
	return 0.0, nil
}

func (d *Detector) fileActivitySignal(agentID int) (float64, string) {
	newest, fileCount, err := d.coord.FileActivity(agentID)
	if err != nil || fileCount == 0 {
		return 1.0, "no files yet"
	}
	minutesSince := time.Since(newest).Minutes()
	timeout := d.cfg.FileActivityTimeout.Minutes()
	if timeout <= 0 {
		timeout = 10
	}
	score := math.Min(1.0, minutesSince/timeout)
	return score, formatMinutesDetail(minutesSince)
}

func formatMinutesDetail(minutes float64) string {
	if minutes < 0 {
		minutes = 0
	}
	return "quiet for " + roundString(minutes) + "m"
}

func roundString(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

var (
	stillWorkingPatterns = compile([]string{
		`(still|currently|now)\s+(working|implementing|building)`,
		`(in progress|working on|not.*done|not.*finished)`,
		`(need to|have to|going to)\s+(finish|complete|implement)`,
		`(almost|nearly|close to)\s+(done|finished|completed)`,
	})
	directCompletionTokens = []string{"completed", "finished", "done", "ready"}
)

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

func (d *Detector) verificationSignal(ctx context.Context, agent *agentmgr.Agent) (float64, string) {
	if !d.cfg.VerificationEnabled {
		return 0.5, "disabled"
	}

	snap := agent.Snapshot()
	if !snap.VerificationAt.IsZero() && time.Since(snap.VerificationAt) < d.cfg.VerificationInterval {
		return snap.VerificationScore, "cached"
	}

	message := d.cfg.VerificationMessage
	if message == "" {
		message = DefaultConfig().VerificationMessage
	}
	if err := d.mgr.SendToAgent(ctx, agent.ID, message); err != nil {
		return 0.5, "probe failed: " + err.Error()
	}

	select {
	case <-time.After(d.cfg.VerificationWait):
	case <-ctx.Done():
		return 0.5, "cancelled"
	}

	lines := d.cfg.VerificationLines
	if lines <= 0 {
		lines = 15
	}
	recent, err := d.mgr.RecentOutput(ctx, agent.ID, lines)
	if err != nil {
		return 0.5, "capture failed"
	}

	score, confirmed := scoreVerificationResponse(strings.Join(recent, "\n"), d.cfg.CompletionPatterns)
	agent.CacheVerification(score)
	detail := "not confirmed"
	if confirmed {
		detail = "confirmed"
	}
	return score, detail
}

// scoreVerificationResponse implements the verification scoring rules:
// +0.3 per matching completion regex (and "confirmed"), -0.4 per
// "still working" indicator (clearing "confirmed"), +0.4 for a direct
// completion token at line start or preceded by a space, clamped [0,1].
func scoreVerificationResponse(response string, completionPatterns []string) (float64, bool) {
	lower := strings.ToLower(response)
	score := 0.0
	confirmed := false

	for _, p := range completionPatterns {
		if regexp.MustCompile("(?i)" + p).MatchString(response) {
			score += 0.3
			confirmed = true
		}
	}

	for _, re := range stillWorkingPatterns {
		if re.MatchString(response) {
			score -= 0.4
			confirmed = false
		}
	}

	for _, token := range directCompletionTokens {
		if strings.HasPrefix(lower, token) || strings.Contains(lower, " "+token) {
			score += 0.4
			confirmed = true
		}
	}

	return clamp01(score), confirmed
}

func (d *Detector) timeSignal(agent *agentmgr.Agent) float64 {
	snap := agent.Snapshot()
	if snap.TaskStartTime.IsZero() {
		return 0.5
	}
	minTaskMin := d.cfg.MinimumTaskDuration.Minutes()
	if minTaskMin <= 0 {
		minTaskMin = 5
	}
	elapsedMin := time.Since(snap.TaskStartTime).Minutes()
	if elapsedMin <= minTaskMin {
		return 0.5
	}
	return 0.5 + 0.5*math.Min(1.0, (elapsedMin-minTaskMin)/minTaskMin)
}

func errUnknownAgent(id int) error {
	return &unknownAgentError{id: id}
}

type unknownAgentError struct{ id int }

func (e *unknownAgentError) Error() string {
	return "completion: unknown agent " + strconv.Itoa(e.id)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
