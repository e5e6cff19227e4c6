// Package tlog is the system's narrow logging sink: a thin wrapper
// around the standard library's log.Logger, in the teacher's spirit of
// plain fmt/log usage with no external logging dependency (see
// internal/batch/processor.go's bare fmt.Printf progress reporter).
// Every System gets a short random session tag so logs from several
// concurrently-running systems can be told apart, the same role
// google/uuid plays for client/session ids in therjak-goquake's
// protocol/server package.
package tlog

import (
	"io"
	"log"
	"os"

	"github.com/google/uuid"
)

// Logger writes tagged diagnostic lines. Nothing in the core blocks on
// it; the sampler logs through it when gettextureinfo is asked about a
// missing or broken file (evictions and opens are not logged). The
// writer is chosen at construction (spec §9: the source's stderr debug
// prints are bugs, not a contract -- diagnostics belong behind a sink).
type Logger struct {
	l *log.Logger
}

// New creates a Logger writing to os.Stderr, tagged with a short
// session id derived from a random UUID.
func New() *Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a Logger writing to w, for tests that want to
// capture output.
func NewWithWriter(w io.Writer) *Logger {
	tag := uuid.NewString()[:8]
	return &Logger{l: log.New(w, "texturesys["+tag+"] ", log.LstdFlags)}
}

func (lg *Logger) Printf(format string, args ...any) {
	if lg == nil || lg.l == nil {
		return
	}
	lg.l.Printf(format, args...)
}
