// Package log provides the engine's structured logger: a single
// package-level zerolog.Logger guarded by a mutex, a level picked once at
// startup, and a handful of key-value helpers that poll, tally and
// cmd/scrutinium-demo log through instead of fmt.Print*.
package log

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	timeFormat = "2006-01-02T15:04:05.000Z07:00"
)

var (
	log   zerolog.Logger
	logMu sync.RWMutex
)

func init() {
	// Allow overriding the startup log level via $SCRUTINIUM_LOG_LEVEL so
	// tests and ad-hoc runs don't need a full Config to see debug output.
	// Always initializing avoids a nil logger panic before main calls Init.
	Init(cmp.Or(os.Getenv("SCRUTINIUM_LOG_LEVEL"), LogLevelError), "stderr")
}

// Logger returns a copy of the current global logger.
func Logger() *zerolog.Logger {
	logger := getLogger()
	return &logger
}

func getLogger() zerolog.Logger {
	logMu.RLock()
	logger := log
	logMu.RUnlock()
	return logger
}

func setLogger(logger zerolog.Logger) {
	logMu.Lock()
	log = logger
	logMu.Unlock()
}

// panicOnErrorHook panics when encountering Error level logs. Useful in
// tests that assert an operation never logs an error, such as a poll vote
// or an audit append that should always succeed on valid input.
type panicOnErrorHook struct {
	TestName string
	Delay    time.Duration
	Handler  func(string)
	once     sync.Once
}

func (h *panicOnErrorHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.ErrorLevel {
		return
	}
	panicMsg := fmt.Sprintf("ERROR found in logs during test %s: %s", h.TestName, msg)
	h.once.Do(func() {
		delay := h.Delay
		if delay <= 0 {
			delay = time.Second
		}
		handler := h.Handler
		if handler == nil {
			handler = func(message string) { panic(message) }
		}
		time.AfterFunc(delay, func() {
			handler(panicMsg)
		})
	})
}

// EnablePanicOnErrorWithHandler installs a hook on the current logger that
// invokes handler (or panics, if handler is nil) after delay when an Error
// level log occurs. It returns the previous logger so the caller can restore
// it with RestoreLogger once the test finishes.
func EnablePanicOnErrorWithHandler(testName string, delay time.Duration, handler func(string)) zerolog.Logger {
	previous := getLogger()
	setLogger(previous.Hook(&panicOnErrorHook{
		TestName: testName,
		Delay:    delay,
		Handler:  handler,
	}))
	return previous
}

// RestoreLogger restores a previously saved logger, removing any hooks.
func RestoreLogger(previous zerolog.Logger) {
	setLogger(previous)
}

// Init (re)configures the global logger: level is one of the LogLevel*
// constants, output is "stdout", "stderr", or a file path.
func Init(level, output string) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			panic(fmt.Sprintf("log: cannot open log output %q: %v", output, err))
		}
		out = f
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}).With().Timestamp().Logger()
	logger = logger.With().Caller().Logger()
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}

	switch level {
	case LogLevelDebug:
		logger = logger.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		logger = logger.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		logger = logger.Level(zerolog.WarnLevel)
	case LogLevelError:
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("log: invalid log level %q", level))
	}

	setLogger(logger)
	logger.Debug().Msgf("logger initialized at level %s, output %s", level, output)
}

// Debug sends a debug level log message.
func Debug(args ...any) {
	logger := getLogger()
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	logger.Debug().Msg(fmt.Sprint(args...))
}

// Info sends an info level log message.
func Info(args ...any) {
	getLogger().Info().Msg(fmt.Sprint(args...))
}

// Warn sends a warn level log message.
func Warn(args ...any) {
	getLogger().Warn().Msg(fmt.Sprint(args...))
}

// Error sends an error level log message.
func Error(args ...any) {
	getLogger().Error().Msg(fmt.Sprint(args...))
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	Logger().Debug().Fields(keyvalues).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	Logger().Info().Fields(keyvalues).Msg(msg)
}

// Warnw sends a warn level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	Logger().Warn().Fields(keyvalues).Msg(msg)
}

// Errorw sends an error level log message carrying err as a structured field.
func Errorw(err error, msg string) {
	Logger().Error().Err(err).Msg(msg)
}
