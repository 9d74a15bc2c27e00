package bf

import (
	"context"
	"io"
)

// Run compiles and executes source in one shot against a fresh tape.
func Run(source string, input io.Reader, output io.Writer, opts Options) error {
	return RunContext(context.Background(), source, input, output, opts)
}

// RunContext is Run with a cancellation context.
func RunContext(ctx context.Context, source string, input io.Reader, output io.Writer, opts Options) error {
	return NewSession(input, output, opts).Eval(ctx, source)
}
