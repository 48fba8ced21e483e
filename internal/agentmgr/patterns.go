package agentmgr

import (
	"regexp"
	"strings"
)

// defaultCompletionPatterns mirrors config.setDefaults' semantic_completion_patterns;
// agentmgr keeps its own copy since the completion regexes are also
// consulted by plain pattern-based completion checking, independent of the
// heavier semantic-verification signal in internal/completion.
var defaultCompletionPatterns = []string{
	`(task|work|implementation|project)\s+(completed|finished|done)`,
	`(i have|i've)\s+(completed|finished|done)`,
	`(ready for|completed|finished).*review`,
	`COMPLETED`,
	`(all|everything)\s+(is\s+)?(done|finished|completed)`,
	`(finished|completed|done)\s+(working|implementing|building)`,
}

var workingPatterns = compileAll([]string{
	`\w+ing\.\.\.+`,
	`(thinking|processing|analyzing|creating|writing|building|implementing|working|compiling|testing|debugging|planning|designing|coding|executing)\.\.\.+`,
	`(in progress|working on|currently|please wait)`,
	`(step|task|phase)\s+\d+`,
	`\.\.\.+$`,
})

var errorPatterns = []string{
	"api error",
	"rate limit",
	"too many requests",
	"failed to respond",
	"connection error",
	"timeout",
	"service unavailable",
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile("(?i)"+p))
	}
	return out
}

// lastNonEmptyLines returns the last n non-empty lines of lines, in order.
func lastNonEmptyLines(lines []string, n int) []string {
	var filtered []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			filtered = append(filtered, l)
		}
	}
	if len(filtered) <= n {
		return filtered
	}
	return filtered[len(filtered)-n:]
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// matchesCompletion checks text against the given completion patterns;
// an empty list matches nothing (checkAgentWorking substitutes
// defaultCompletionPatterns before calling it).
func matchesCompletion(patterns []string, text string) bool {
	for _, p := range patterns {
		if regexp.MustCompile("(?i)"+p).MatchString(text) {
			return true
		}
	}
	return false
}

func hasErrorPattern(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range errorPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

const recentOutputWindow = 20

// checkAgentWorking returns true if completion patterns are NOT present
// and (working patterns are present OR we are within the grace period
// since the last message). The completion check takes precedence.
func checkAgentWorking(recent []string, completionPatterns []string, withinGracePeriod bool) bool {
	if len(completionPatterns) == 0 {
		completionPatterns = defaultCompletionPatterns
	}
	window := lastNonEmptyLines(recent, recentOutputWindow)
	joined := strings.Join(window, "\n")

	if matchesCompletion(completionPatterns, joined) {
		return false
	}
	if matchesAny(workingPatterns, joined) {
		return true
	}
	return withinGracePeriod
}
