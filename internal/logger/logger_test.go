package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	lines []string
}

func (r *recorder) Debug(m string, _ ...any) { r.lines = append(r.lines, "debug:"+m) }
func (r *recorder) Info(m string, _ ...any)  { r.lines = append(r.lines, "info:"+m) }
func (r *recorder) Warn(m string, _ ...any)  { r.lines = append(r.lines, "warn:"+m) }
func (r *recorder) Error(m string, _ ...any) { r.lines = append(r.lines, "error:"+m) }
func (r *recorder) Fatal(m string, _ ...any) { r.lines = append(r.lines, "fatal:"+m) }

func TestFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { singleton = nil })

	Info("build started", "input", "maize.csv")
	Warn("row skipped", "row", 4)

	require.Equal(t, []string{"info:build started", "warn:row skipped"}, a.lines)
	require.Equal(t, a.lines, b.lines)
}

func TestNoInitIsNoop(t *testing.T) {
	singleton = nil
	require.NotPanics(t, func() { Error("dropped") })
}
