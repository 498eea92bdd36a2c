// Basic logging infrastructure shared by the collapsing engine, the sinks, the daemon, and the
// command line.
//
// The Logger interface is the one every component takes.  The standard implementation sits on top
// of logrus, which gives us structured fields and formatters; the level vocabulary (Debug, Info,
// Warning, Error, Critical) is ours and is mapped onto logrus levels.

package status

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel indicates the level of logging that should be done.

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
	LogLevelCritical
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarning:
		return "warning"
	case LogLevelError:
		return "error"
	case LogLevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts our level names and the logrus spellings ("warn", "fatal", ...).
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "critical":
		return LogLevelCritical, nil
	case "warning":
		return LogLevelWarning, nil
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return LogLevelError, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	switch lvl {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LogLevelDebug, nil
	case logrus.InfoLevel:
		return LogLevelInfo, nil
	case logrus.WarnLevel:
		return LogLevelWarning, nil
	case logrus.ErrorLevel:
		return LogLevelError, nil
	default:
		return LogLevelCritical, nil
	}
}

// Implementations of this must be thread-safe.
type Logger interface {
	// Print only messages at level l or above
	SetLevel(l LogLevel)

	// Lower log level at least to l
	LowerLevelTo(l LogLevel)

	// Print on this stream
	SetStderr(w io.Writer)

	// A logger that shares level and output with this one but tags every message with the field.
	WithField(key string, value any) Logger

	// Print at various levels.  None of these must exit or panic, the name indicates the log level
	// only.
	Debug(xs ...any)
	Debugf(format string, args ...any)

	Info(xs ...any)
	Infof(format string, args ...any)

	Warning(xs ...any)
	Warningf(format string, args ...any)

	Error(xs ...any)
	Errorf(format string, args ...any)

	Critical(xs ...any)
	Criticalf(format string, args ...any)
}

type StandardLogger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

var _ Logger = (*StandardLogger)(nil)

// MT: Constant after initialization, thread-safe.
var defaultLogger = New(os.Stderr, LogLevelWarning)

func Default() Logger {
	return defaultLogger
}

// New creates a fresh logger writing text records to w.
func New(w io.Writer, l LogLevel) *StandardLogger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	base.SetLevel(toLogrus(l))
	return &StandardLogger{
		base:  base,
		entry: logrus.NewEntry(base),
	}
}

// Logrus exposes the underlying logrus logger, for libraries that want a logrus.FieldLogger.
func (sl *StandardLogger) Logrus() logrus.FieldLogger {
	return sl.entry
}

func (sl *StandardLogger) SetLevel(l LogLevel) {
	sl.base.SetLevel(toLogrus(l))
}

func (sl *StandardLogger) LowerLevelTo(l LogLevel) {
	// logrus levels grow toward more verbose output.
	if want := toLogrus(l); want > sl.base.GetLevel() {
		sl.base.SetLevel(want)
	}
}

func (sl *StandardLogger) SetStderr(stderr io.Writer) {
	sl.base.SetOutput(stderr)
}

func (sl *StandardLogger) WithField(key string, value any) Logger {
	return &StandardLogger{
		base:  sl.base,
		entry: sl.entry.WithField(key, value),
	}
}

func (sl *StandardLogger) Critical(xs ...any) {
	sl.entry.WithField("severity", "critical").Error(xs...)
}

func (sl *StandardLogger) Criticalf(format string, args ...any) {
	sl.entry.WithField("severity", "critical").Errorf(format, args...)
}

func (sl *StandardLogger) Error(xs ...any) {
	sl.entry.Error(xs...)
}

func (sl *StandardLogger) Errorf(format string, args ...any) {
	sl.entry.Errorf(format, args...)
}

func (sl *StandardLogger) Warning(xs ...any) {
	sl.entry.Warning(xs...)
}

func (sl *StandardLogger) Warningf(format string, args ...any) {
	sl.entry.Warningf(format, args...)
}

func (sl *StandardLogger) Info(xs ...any) {
	sl.entry.Info(xs...)
}

func (sl *StandardLogger) Infof(format string, args ...any) {
	sl.entry.Infof(format, args...)
}

func (sl *StandardLogger) Debug(xs ...any) {
	sl.entry.Debug(xs...)
}

func (sl *StandardLogger) Debugf(format string, args ...any) {
	sl.entry.Debugf(format, args...)
}

// Critical messages are never filtered, so LogLevelCritical and LogLevelError both map onto
// logrus.ErrorLevel.
func toLogrus(l LogLevel) logrus.Level {
	switch l {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarning:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// Older API, still useful

func Fatal(msg string) {
	defaultLogger.Critical(msg)
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	defaultLogger.Criticalf(format, args...)
	os.Exit(1)
}
