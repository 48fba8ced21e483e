package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kspringfield13/xenosync/internal/session"
)

func TestShortIDTruncatesToEightCharacters(t *testing.T) {
	require.Equal(t, "abcd1234", shortID("abcd1234-5678-90ab-cdef-1234567890ab"))
	require.Equal(t, "short", shortID("short"))
}

func TestStatusDotRendersForEveryKnownStatus(t *testing.T) {
	for _, s := range []session.Status{
		session.StatusActive, session.StatusCompleted, session.StatusFailed,
		session.StatusInterrupted, session.StatusPaused,
	} {
		require.NotEmpty(t, statusDot(string(s)))
	}
	require.NotEmpty(t, statusDot("unknown"))
}

func TestRuleRepeatsToRequestedWidth(t *testing.T) {
	require.Len(t, rule(10), 10)
	require.Equal(t, "==========", rule(10))
}
