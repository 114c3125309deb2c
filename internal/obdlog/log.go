// Package obdlog wraps the standard log.Logger with the tagging convention
// obdkit uses across every protocol session.
package obdlog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	verbose = false
	logDir  = ""
)

// SetVerbose toggles debug-level output for Debugf. Called once from the
// CLI's -v flag.
func SetVerbose(v bool) { verbose = v }

// Verbose reports the current verbosity, mainly for tests.
func Verbose() bool { return verbose }

// SetLogDir points every subsequently-constructed Logger at a date-rotated
// file under dir, in addition to stderr. Called once from the CLI's
// --log-dir flag; a failure to open the file is not fatal, since a session
// log is a convenience, not something a diagnostic run should abort over.
func SetLogDir(dir string) { logDir = dir }

// Logger tags every line with a protocol/ECU scope, e.g. "[kwp1281 ecu=0x01]".
type Logger struct {
	*log.Logger
	scope string
}

// New returns a Logger writing to stderr, and additionally to a date-rotated
// file under the directory set by SetLogDir, if any.
func New(scope string) *Logger {
	w := io.Writer(os.Stderr)
	if logDir != "" {
		if f, err := OpenLogFile(logDir, scope); err == nil {
			w = io.MultiWriter(os.Stderr, f)
		}
	}
	return NewWithOutput(w, scope)
}

func NewWithOutput(w io.Writer, scope string) *Logger {
	l := log.New(w, "", log.Lmicroseconds)
	return &Logger{Logger: l, scope: scope}
}

func (l *Logger) tag(format string) string {
	return fmt.Sprintf("[%s] %s", l.scope, format)
}

func (l *Logger) Infof(format string, args ...any) {
	l.Printf(l.tag(format), args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if !verbose {
		return
	}
	l.Printf(l.tag("DEBUG "+format), args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Printf(l.tag("WARN "+format), args...)
}
