package logger

import (
	"fmt"
	"io"
	"os"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Logger wraps the cometbft key/value logger with a debug flag.
// Debug lines are dropped unless debug is enabled.
type Logger struct {
	cmtlog.Logger
	debug bool
}

// New creates a new logger writing to stderr
func New(debug bool) *Logger {
	return NewWithWriter(debug, os.Stderr)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(debug bool, w io.Writer) *Logger {
	base := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(w))
	level := cmtlog.AllowInfo()
	if debug {
		level = cmtlog.AllowDebug()
	}
	return &Logger{
		Logger: cmtlog.NewFilter(base, level),
		debug:  debug,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: cmtlog.NewNopLogger()}
}

// With returns a child logger carrying keyvals on every line.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...), debug: l.debug}
}

// Debugging reports whether debug lines are emitted.
func (l *Logger) Debugging() bool {
	return l.debug
}

// Printf logs at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Logger.Info(fmt.Sprintf(format, v...))
}

// Println logs at info level
func (l *Logger) Println(v ...interface{}) {
	l.Logger.Info(fmt.Sprint(v...))
}

// Fatalf always logs (fatal errors) and exits
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.Logger.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}
