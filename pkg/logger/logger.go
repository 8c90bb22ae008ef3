// pkg/logger/logger.go

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// L returns the process logger, falling back to the console-only logger if
// Initialize has not run yet.
func L() *zap.Logger {
	if log == nil {
		InitFallback()
	}
	return log
}

// Initialize builds the dual-sink logger: a console core for the operator
// and a timestamped JSON file under logs/ for the run record, mirroring the
// one-log-file-per-run convention of the runbooks this tool replaces.
func Initialize(verbose bool) {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}
	if writer, path, err := openRunLogFile(); err != nil {
		fmt.Fprintln(os.Stderr, "No writable log path found, logging to console only:", err)
	} else {
		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		jsonCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), writer, level))
		defer func() { log.Info("Run log file opened", zap.String("path", path)) }()
	}

	setGlobals(zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
}

// InitFallback installs a console-only logger so early failures are still
// visible before Initialize runs.
func InitFallback() {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		parseLogLevel(os.Getenv("LOG_LEVEL")),
	)
	setGlobals(zap.New(core))
}

func setGlobals(l *zap.Logger) {
	log = l
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l, otelzap.WithMinLevel(zapcore.DebugLevel)))
}

// Sync flushes buffered log entries. Errors from syncing the console sink
// are expected on some platforms and are ignored by callers.
func Sync() error {
	if log == nil {
		return nil
	}
	return log.Sync()
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func openRunLogFile() (zapcore.WriteSyncer, string, error) {
	dir := "logs"
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("omboot_%s.log", time.Now().Format("20060102_150405")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, "", err
	}
	return zapcore.AddSync(file), path, nil
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
