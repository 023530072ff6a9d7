package logger

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	zapLogger   *zap.Logger
	zapOnce     sync.Once
	atomicLevel zap.AtomicLevel
)

const (
	EnvAppEnv      = "APP_ENV"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT" // json | console
	EnvLogFile     = "LOG_FILE"
	EnvLogSampling = "LOG_SAMPLING"
)

func appEnv() string {
	for _, v := range []string{os.Getenv(EnvAppEnv), os.Getenv("GO_ENV"), os.Getenv("ENV")} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "development"
}

func isProduction(env string) bool {
	return env == "production" || env == "prod"
}

// initZap builds the global zap logger lazily.
func initZap() {
	zapOnce.Do(func() {
		env := appEnv()

		atomicLevel = zap.NewAtomicLevel()
		lvl, ok := parseZapLevel(os.Getenv(EnvLogLevel))
		if !ok {
			lvl = zapcore.DebugLevel
			if isProduction(env) {
				lvl = zapcore.InfoLevel
			}
		}
		atomicLevel.SetLevel(lvl)

		format := strings.ToLower(os.Getenv(EnvLogFormat))
		if format == "" {
			format = "console"
			if isProduction(env) {
				format = "json"
			}
		}

		encoderCfg := zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stack",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     iso8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}

		var enc zapcore.Encoder
		if format == "json" {
			enc = zapcore.NewJSONEncoder(encoderCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(encoderCfg)
		}

		var sink zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
		if filePath := os.Getenv(EnvLogFile); filePath != "" {
			if f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(f))
			}
		}
		core := zapcore.NewCore(enc, sink, atomicLevel)

		// Event evaluation logs every decision; sample them in production.
		if isProduction(env) && os.Getenv(EnvLogSampling) != "0" {
			core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 10)
		}

		opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
		if !isProduction(env) {
			opts = append(opts, zap.AddCaller(), zap.Development())
		}

		zapLogger = zap.New(core, opts...)
	})
}

func parseZapLevel(lvl string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "dpanic":
		return zapcore.DPanicLevel, true
	case "panic":
		return zapcore.PanicLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

func iso8601TimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02T15:04:05Z07:00"))
}

// Zap returns the base *zap.Logger
func Zap() *zap.Logger {
	initZap()
	return zapLogger
}

// ZapSugar returns a *zap.SugaredLogger
func ZapSugar() *zap.SugaredLogger { return Zap().Sugar() }

// ZapForService returns a sugared logger with service + env fields.
func ZapForService(service string) *zap.SugaredLogger {
	return Zap().With(zap.String("service", service), zap.String("env", appEnv())).Sugar()
}

// SetLevel changes the log level at runtime (e.g., SetLevel("debug")).
func SetLevel(level string) error {
	initZap()
	lvl, ok := parseZapLevel(level)
	if !ok {
		return errors.New("unknown log level")
	}
	atomicLevel.SetLevel(lvl)
	return nil
}

// Level returns the current level string.
func Level() string { initZap(); return atomicLevel.Level().String() }

// Sync flushes any buffered logs (call on shutdown).
func Sync() {
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
}
