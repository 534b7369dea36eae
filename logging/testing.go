package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a new logger that outputs Debug+ logs through the test's `Log` method,
// so log lines are associated with the right Test* function.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	logger := &impl{
		name:  "",
		level: zap.NewAtomicLevelAt(zapcore.DebugLevel),
		cores: []zapcore.Core{
			zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Core(),
			observerCore,
		},
	}
	return logger, observedLogs
}
