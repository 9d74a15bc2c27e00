package bf

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Session is one interpreter reused across many evaluated chunks of source.
// The tape and the data pointer persist from one Eval to the next, so a
// REPL can build up state incrementally. A failed compile leaves the
// session untouched.
type Session struct {
	interp *Interpreter
}

func NewSession(input io.Reader, output io.Writer, opts Options) *Session {
	return &Session{
		interp: NewInterpreter(nil, input, output, opts),
	}
}

// Eval compiles source and runs it on the session's tape.
func (s *Session) Eval(ctx context.Context, source string) error {
	start := time.Now()
	program, err := Compile(source)
	if err != nil {
		return err
	}
	if s.interp.opts.Verbose {
		fmt.Fprintf(os.Stderr, "compiled %d instructions in %v\n", len(program), time.Since(start))
	}
	s.interp.Load(program)
	return s.interp.RunContext(ctx)
}

// Reset discards all tape state accumulated by previous evaluations.
func (s *Session) Reset() {
	s.interp.Reset()
}

// Interpreter exposes the underlying interpreter, mostly so callers can
// inspect tape state.
func (s *Session) Interpreter() *Interpreter {
	return s.interp
}
