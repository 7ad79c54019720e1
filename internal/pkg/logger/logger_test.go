package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json", ""} {
		l, err := NewLogger("debug", format)
		require.NoError(t, err, format)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	}

	_, err := NewLogger("loud", "console")
	assert.ErrorContains(t, err, "invalid log level")
	_, err = NewLogger("info", "xml")
	assert.ErrorContains(t, err, "invalid log format")
}

func TestPhaseHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core)}

	l.PhaseStep("prepare", "disable swap", "10.0.0.2")
	l.PhaseError("install", "10.0.0.1", errors.New("boom"))
	l.CommandAttempt("10.0.0.1", "kubeadm init", 2, 3)

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "executing phase step", entries[0].Message)
	assert.Equal(t, "disable swap", entries[0].ContextMap()["step"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, int64(2), entries[2].ContextMap()["attempt"])
}
