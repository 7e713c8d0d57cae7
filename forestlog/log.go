// Package forestlog wraps zerolog with the per-rank fields every
// forest operation's log lines carry, so log output from a multi-rank
// run can be filtered and correlated by rank without each call site
// remembering to attach one.
package forestlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a rank-scoped zerolog.Logger. The zero value is a no-op
// logger (zerolog.Nop()), so a Forest built without an explicit Logger
// stays silent rather than writing to stderr by default.
type Logger struct {
	zerolog.Logger
}

// New returns a Logger writing level-tagged, human-readable lines to w
// (typically os.Stderr), stamped with the given rank.
func New(w io.Writer, rank int) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Int("rank", rank).
		Logger()
	return Logger{zl}
}

// Nop returns a Logger that discards everything, the default for a
// Forest that never configured one explicitly.
func Nop() Logger {
	return Logger{zerolog.Nop()}
}

// Default returns a Logger writing to stderr for rank 0, with no level
// filter set (debug lines are written too), convenient for the CLI's default, non-distributed invocation.
func Default() Logger {
	return New(os.Stderr, 0)
}
