package strategy

import (
	"os"
	"path/filepath"
	"strings"
)

// QualityConfig tunes the project-quality gate a completion candidate
// must pass regardless of the completion detector's confidence.
type QualityConfig struct {
	FilesThreshold     int // minimum files created, excluding the seed README
	SubstantialBytes   int // minimum total bytes across "meaningful" files
	MinMeaningfulFiles int // minimum count of meaningful files required
}

// DefaultQualityConfig mirrors the documented defaults: 3 files, 500
// substantial bytes, 2 meaningful files.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{FilesThreshold: 3, SubstantialBytes: 500, MinMeaningfulFiles: 2}
}

// meaningfulMinChars is the non-whitespace character count a file must
// exceed to count toward the substantial-work total.
const meaningfulMinChars = 50

// passesQualityGate walks projectDir (skipping .git and the seed
// README.md) and reports whether the project has produced enough real
// content to be allowed to transition to Completed.
func passesQualityGate(projectDir string, cfg QualityConfig) (ok bool, filesCreated, meaningfulFiles, substantialBytes int, err error) {
	walkErr := filepath.Walk(projectDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(path) == "README.md" {
			return nil
		}
		filesCreated++

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil // unreadable file still counts toward filesCreated, not content
		}
		nonWS := countNonWhitespace(string(data))
		if nonWS > meaningfulMinChars {
			meaningfulFiles++
			substantialBytes += len(data)
		}
		return nil
	})
	if walkErr != nil {
		return false, 0, 0, 0, walkErr
	}

	ok = filesCreated >= cfg.FilesThreshold &&
		meaningfulFiles >= cfg.MinMeaningfulFiles &&
		substantialBytes >= cfg.SubstantialBytes
	return ok, filesCreated, meaningfulFiles, substantialBytes, nil
}

func countNonWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if !strings.ContainsRune(" \t\n\r", r) {
			n++
		}
	}
	return n
}
