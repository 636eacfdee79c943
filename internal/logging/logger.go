// Package logging is a centralized wrapper around zap for the whole assistant.
// It supports a console encoder for local runs and a JSON+rotating-file sink for
// production (via lumberjack), with zap.AtomicLevel for changing the level without
// rebuilding the core from scratch.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu       sync.Mutex
	log      *zap.Logger
	level    = zap.NewAtomicLevelAt(zap.InfoLevel)
	fileSink *lumberjack.Logger
)

// Options controls how Init builds the logger.
type Options struct {
	Level string // debug|info|warn|error, default info
	// JSONFile, when set, enables a rotating JSON sink in addition to console output.
	JSONFile   string
	MaxSizeMB  int // lumberjack MaxSize, default 50
	MaxBackups int // default 5
	MaxAgeDays int // default 14
}

// Init (re)builds the global logger from Options. Safe to call multiple times,
// e.g. on SIGHUP-triggered config reload.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(opts.Level) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}

	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(stdoutSync())), level),
	}

	if opts.JSONFile != "" {
		fileSink = &lumberjack.Logger{
			Filename:   opts.JSONFile,
			MaxSize:    defaultInt(opts.MaxSizeMB, 50),
			MaxBackups: defaultInt(opts.MaxBackups, 5),
			MaxAge:     defaultInt(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		jsonEncoder := zapcore.NewJSONEncoder(jsonEncoderConfig())
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(fileSink), level))
	}

	if log != nil {
		_ = log.Sync()
	}
	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// L returns the current logger, lazily building a sane default if Init was never called.
func L() *zap.Logger {
	mu.Lock()
	l := log
	mu.Unlock()
	if l == nil {
		Init(Options{})
		mu.Lock()
		l = log
		mu.Unlock()
	}
	return l
}

// With returns a child logger carrying the given structured fields — the preferred way
// to attach chat_id/idempotency_key/action_type context at a call site.
func With(fields ...zap.Field) *zap.Logger { return L().With(fields...) }

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Sync flushes any buffered log entries; call on shutdown.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}
