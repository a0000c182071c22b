package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigSeedsInitialStackSize(t *testing.T) {
	cfg := DefaultConfig()
	assert.EqualValues(t, 16, cfg.InitialStackSize)
	assert.False(t, cfg.Debug)
}

func TestStderrLoggerFiltersByMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &StderrLogger{W: &buf, MinLevel: LevelWarn}

	l.Log(LevelInfo, "should not appear")
	assert.Empty(t, buf.String())

	l.Log(LevelError, "boom %d", 7)
	assert.Contains(t, buf.String(), "[ERROR] boom 7")
}

func TestDebugLoggerEmitsDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewDebugLogger()
	l.W = &buf
	l.Log(LevelDebug, "trace")
	assert.Contains(t, buf.String(), "[DEBUG] trace")
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	var l NopLogger
	assert.NotPanics(t, func() { l.Log(LevelError, "anything") })
}

func TestLevelStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "LOG", Level(99).String())
}
