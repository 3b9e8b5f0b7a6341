package log

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DurationMSKey  = "durationMs"
	StartTimeKey   = "startTime"
	MethodKey      = "method"
	StatusCodeKey  = "statusCode"
	HrefKey        = "href"
	TopicKey       = "topic"
	CallbackKey    = "callback"
	ModeKey        = "mode"
	AttemptKey     = "attempt"
	SubscriptionID = "subscriptionId"
)

// Logger is the logging contract used across the hub.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})
	With(args ...interface{}) Logger
	Check(lvl zapcore.Level) bool
}

// Config configuration for setup logging.
type Config struct {
	// Level is the minimum enabled logging level.
	Level zapcore.Level `yaml:"level" json:"level"`
	// Encoding sets the logger's encoding. Valid values are "json" and "console".
	Encoding string `yaml:"encoding" json:"encoding"`
	// Stacktrace enables stacktraces for warn and above.
	Stacktrace bool `yaml:"stacktrace" json:"stacktrace"`
}

func MakeDefaultConfig() Config {
	return Config{
		Level:    zapcore.InfoLevel,
		Encoding: "json",
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Encoding) {
	case "json", "console":
	case "":
		c.Encoding = "json"
	default:
		return fmt.Errorf("encoding('%v') - only json and console are supported", c.Encoding)
	}
	return nil
}

type wrapSuggarLogger struct {
	*zap.SugaredLogger
	level zap.AtomicLevel
}

func (l *wrapSuggarLogger) With(args ...interface{}) Logger {
	return &wrapSuggarLogger{
		SugaredLogger: l.SugaredLogger.With(args...),
		level:         l.level,
	}
}

func (l *wrapSuggarLogger) Check(lvl zapcore.Level) bool {
	return l.level.Enabled(lvl)
}

// Errorf formats the message with fmt.Errorf so %w verbs are rendered.
func (l *wrapSuggarLogger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Error(fmt.Errorf(template, args...).Error())
}

// Warnf formats the message with fmt.Errorf so %w verbs are rendered.
func (l *wrapSuggarLogger) Warnf(template string, args ...interface{}) {
	l.SugaredLogger.Warn(fmt.Errorf(template, args...).Error())
}

// Debugf formats the message with fmt.Errorf so %w verbs are rendered.
func (l *wrapSuggarLogger) Debugf(template string, args ...interface{}) {
	if !l.Check(zapcore.DebugLevel) {
		return
	}
	l.SugaredLogger.Debug(fmt.Errorf(template, args...).Error())
}

// Infof formats the message with fmt.Errorf so %w verbs are rendered.
func (l *wrapSuggarLogger) Infof(template string, args ...interface{}) {
	l.SugaredLogger.Info(fmt.Errorf(template, args...).Error())
}

// NewLogger creates logger
func NewLogger(config Config) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(config.Level)
	if config.Encoding != "" {
		cfg.Encoding = strings.ToLower(config.Encoding)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.DisableStacktrace = !config.Stacktrace
	cfg.Sampling = nil
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(fmt.Sprintf("cannot create logger: %v", err))
	}
	return &wrapSuggarLogger{
		SugaredLogger: logger.Sugar(),
		level:         cfg.Level,
	}
}

var defaultLogger atomic.Value

func init() {
	Setup(MakeDefaultConfig())
}

// Setup changes log configuration for the application.
// Call ASAP in main after parse args/env.
func Setup(config Config) {
	Set(NewLogger(config))
}

// Set logger for global log fuctions
func Set(logger Logger) {
	defaultLogger.Store(&logger)
}

func Get() Logger {
	return *defaultLogger.Load().(*Logger)
}

// DurationToMilliseconds converts the duration to milliseconds with fractions.
func DurationToMilliseconds(duration time.Duration) float32 {
	return float32(duration.Nanoseconds()/1000) / 1000
}

// Debug uses fmt.Sprint to construct and log a message.
func Debug(args ...interface{}) {
	Get().Debug(args...)
}

// Info uses fmt.Sprint to construct and log a message.
func Info(args ...interface{}) {
	Get().Info(args...)
}

// Warn uses fmt.Sprint to construct and log a message.
func Warn(args ...interface{}) {
	Get().Warn(args...)
}

// Error uses fmt.Sprint to construct and log a message.
func Error(args ...interface{}) {
	Get().Error(args...)
}

// Debugf uses fmt.Sprintf to log a templated message.
func Debugf(template string, args ...interface{}) {
	Get().Debugf(template, args...)
}

// Infof uses fmt.Sprintf to log a templated message.
func Infof(template string, args ...interface{}) {
	Get().Infof(template, args...)
}

// Warnf uses fmt.Sprintf to log a templated message.
func Warnf(template string, args ...interface{}) {
	Get().Warnf(template, args...)
}

// Errorf uses fmt.Sprintf to log a templated message.
func Errorf(template string, args ...interface{}) {
	Get().Errorf(template, args...)
}

// Fatalf uses fmt.Sprintf to log a templated message, then calls os.Exit.
func Fatalf(template string, args ...interface{}) {
	Get().Fatalf(template, args...)
}
