// Package debug gates diagnostic output behind IRS_DEBUG or --verbose and
// normal output behind --quiet.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	enabled     = os.Getenv("IRS_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetOutput redirects normal and diagnostic output. Nil restores the
// process streams.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut
}

func writers() (io.Writer, io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	return stdout, stderr
}

func Logf(format string, args ...interface{}) {
	if Enabled() {
		_, errOut := writers()
		fmt.Fprintf(errOut, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		out, _ := writers()
		fmt.Fprintf(out, format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		out, _ := writers()
		fmt.Fprintln(out, args...)
	}
}

// Logger returns a text slog logger on the diagnostic stream. It logs at
// debug level when debugging is enabled and only warnings otherwise.
func Logger() *slog.Logger {
	level := slog.LevelWarn
	if Enabled() {
		level = slog.LevelDebug
	}
	_, errOut := writers()
	return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
}
