package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsoleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Output: &buf})
	l.Debug("hidden")
	l.Info("visible", "nodes", 3)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "visible")
	require.Contains(t, buf.String(), "nodes=3")

	buf.Reset()
	l = NewConsoleLogger(ConsoleLoggerParams{Debug: true, Output: &buf})
	l.Debug("shown")
	require.Contains(t, buf.String(), "shown")
}
