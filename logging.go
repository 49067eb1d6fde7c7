// Copyright 2026 The routecore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routecore

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging configures the process-wide structured logger. The zero
// value yields the default production logger writing to stderr.
type Logging struct {
	// Level is the minimum level to emit: "debug", "info", "warn",
	// "error". Empty means "info".
	Level string `json:"level,omitempty"`

	// Format selects the encoder: "json" (default) or "console".
	Format string `json:"format,omitempty"`
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   = newDefaultProductionLog()
)

// Log returns the current default logger. Subsystems derive their own
// with Log().Named("bgp") and the like.
func Log() *zap.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetupLogging replaces the default logger according to cfg. It is
// called once at startup, before the event loop runs.
func (l Logging) SetupLogging() error {
	level := zapcore.InfoLevel
	if l.Level != "" {
		if err := level.UnmarshalText([]byte(l.Level)); err != nil {
			return err
		}
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.EpochTimeEncoder
	var enc zapcore.Encoder
	if l.Format == "console" {
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	defaultLoggerMu.Lock()
	defaultLogger = zap.New(core)
	defaultLoggerMu.Unlock()
	return nil
}

func newDefaultProductionLog() *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}
