// Package log wraps a logrus.Logger with the fatal-call shape the rest
// of this tree expects: Debug for verbose diagnostics, Error for
// non-fatal warnings, Die/DieWithCode for the one-line "keyed: "
// prefixed fatal diagnostics the error handling design requires.
package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/keyed/keyed/pkg/env"
)

var base = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// SetVerbose raises or lowers the package logger's level. Called once
// from main after the -v flag is parsed; never toggled mid-run.
func SetVerbose(verbose bool) {
	if verbose {
		base.SetLevel(logrus.DebugLevel)
		return
	}
	base.SetLevel(logrus.InfoLevel)
}

// IsDebug reports whether verbose diagnostics are enabled, so callers
// can skip building an expensive debug argument.
func IsDebug() bool {
	return base.IsLevelEnabled(logrus.DebugLevel)
}

// Debug logs a verbose diagnostic line. No-op unless -v was passed.
func Debug(format string, v ...interface{}) {
	base.Debugf(format, v...)
}

// Error logs a non-fatal warning.
func Error(format string, v ...interface{}) {
	base.Errorf(format, v...)
}

// Die prints a single "keyed: "-prefixed diagnostic and exits with
// env.ExitErr.
func Die(format string, v ...interface{}) {
	DieWithCode(env.ExitErr, format, v...)
}

// DieWithCode prints a single "keyed: "-prefixed diagnostic and exits
// with the given code. Clean tracee termination never goes through
// here — it calls os.Exit with the tracee's own exit code directly.
func DieWithCode(code int, format string, v ...interface{}) {
	fmt.Fprintf(base.Out, "keyed: "+format+"\n", v...)
	os.Exit(code)
}
