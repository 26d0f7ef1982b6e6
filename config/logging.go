package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugLogName is the log file written inside the data directory. The TUI
// owns stdout, so logs never go to the terminal.
const DebugLogName = "debug.log"

// NewLogger returns a console-encoded zap logger writing to
// <dataDir>/debug.log when debug is set, and a no-op logger otherwise.
// The returned func closes the log file.
func NewLogger(dataDir string, debug bool) (*zap.Logger, func(), error) {
	if !debug {
		return zap.NewNop(), func() {}, nil
	}

	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	logPath := filepath.Join(dataDir, DebugLogName)
	// 0600: debug output may include prompts
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open debug log at %s: %w", logPath, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(f),
		zap.DebugLevel,
	)

	logger := zap.New(core, zap.AddCaller())
	logger.Debug("debug logging started", zap.String("path", logPath))

	return logger, func() {
		_ = logger.Sync()
		_ = f.Close()
	}, nil
}
