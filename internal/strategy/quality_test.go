package strategy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestPassesQualityGateFailsBelowFileThreshold(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", strings.Repeat("x", 60))
	writeFile(t, dir, "README.md", strings.Repeat("y", 1000)) // excluded from the count

	ok, files, meaningful, bytes, err := passesQualityGate(dir, DefaultQualityConfig())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, files)
	require.Equal(t, 1, meaningful)
	require.Positive(t, bytes)
}

func TestPassesQualityGateFailsBelowMeaningfulFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", strings.Repeat("x", 600))
	writeFile(t, dir, "b.go", "tiny")
	writeFile(t, dir, "c.go", "tiny2")

	ok, files, meaningful, _, err := passesQualityGate(dir, DefaultQualityConfig())
	require.NoError(t, err)
	require.Equal(t, 3, files)
	require.Equal(t, 1, meaningful)
	require.False(t, ok, "only one file exceeds the meaningful-content threshold")
}

func TestPassesQualityGateFailsBelowSubstantialBytes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", strings.Repeat("x", 60))
	writeFile(t, dir, "b.go", strings.Repeat("y", 60))
	writeFile(t, dir, "c.go", strings.Repeat("z", 60))

	ok, _, meaningful, bytes, err := passesQualityGate(dir, DefaultQualityConfig())
	require.NoError(t, err)
	require.Equal(t, 3, meaningful)
	require.Less(t, bytes, DefaultQualityConfig().SubstantialBytes)
	require.False(t, ok)
}

func TestPassesQualityGatePassesWithRealContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", strings.Repeat("a", 200))
	writeFile(t, dir, "handler.go", strings.Repeat("b", 200))
	writeFile(t, dir, "util.go", strings.Repeat("c", 200))
	writeFile(t, dir, "README.md", "seed readme")

	ok, files, meaningful, bytes, err := passesQualityGate(dir, DefaultQualityConfig())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, files)
	require.Equal(t, 3, meaningful)
	require.GreaterOrEqual(t, bytes, DefaultQualityConfig().SubstantialBytes)
}

func TestPassesQualityGateIgnoresGitDir(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	writeFile(t, gitDir, "HEAD", strings.Repeat("x", 1000))
	writeFile(t, dir, "main.go", strings.Repeat("a", 200))

	_, files, _, _, err := passesQualityGate(dir, DefaultQualityConfig())
	require.NoError(t, err)
	require.Equal(t, 1, files, ".git contents must not be counted")
}

func TestCountNonWhitespace(t *testing.T) {
	require.Equal(t, 5, countNonWhitespace("a b\nc\td e"))
	require.Equal(t, 0, countNonWhitespace("   \n\t  "))
}
