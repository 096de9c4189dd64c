// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log provides the small structured-logging facade the rest of
// the engine and the mixindump CLI build on, backed by zap.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Helper wraps a *zap.SugaredLogger with the handful of leveled
// convenience methods the engine calls throughout a cycle: Debugf for
// per-instruction tracing, Warnf for non-fatal diagnostics, Errorf for
// aborted cycles.
type Helper struct {
	*zap.SugaredLogger
}

// NewStdLogger returns a Helper writing human-readable, colorized-off
// console output at the given level, suitable for a CLI's default
// logger.
func NewStdLogger(level zapcore.Level) *Helper {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return &Helper{SugaredLogger: logger.Sugar()}
}

// NewFilter wraps base so that only records at or above min pass
// through, letting callers reuse a single underlying core across
// components with independently tunable verbosity.
func NewFilter(base *Helper, min zapcore.Level) *Helper {
	core, err := zapcore.NewIncreaseLevelCore(base.Desugar().Core(), min)
	if err != nil {
		return base
	}
	return &Helper{SugaredLogger: zap.New(core).Sugar()}
}

// FilterLevel reports the minimum level lvl currently admits, used by
// callers deciding whether to format an expensive debug message at all.
func FilterLevel(h *Helper) zapcore.Level {
	for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		if h.Desugar().Core().Enabled(lvl) {
			return lvl
		}
	}
	return zapcore.ErrorLevel
}

// Named returns a Helper with name appended to the logger's name chain,
// used so each engine component (applicator, registry, transformer)
// tags its own log lines.
func (h *Helper) Named(name string) *Helper {
	return &Helper{SugaredLogger: h.SugaredLogger.Named(name)}
}
