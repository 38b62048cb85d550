package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "ingest", "ask", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestNewLoggerRespectsDebugFlag(t *testing.T) {
	debugFlag = false
	t.Setenv("DEBUG", "")
	logger := newLogger()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))

	debugFlag = true
	defer func() { debugFlag = false }()
	logger = newLogger()
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
