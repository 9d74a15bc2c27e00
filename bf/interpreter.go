package bf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// MemorySize is the number of cells on the memory tape.
const MemorySize = 30_000

// ErrTapeOutOfBounds is returned when a program moves the data pointer
// outside the tape. It is not recoverable: the run that produced it cannot
// be resumed, and callers are expected to propagate it to process exit.
var ErrTapeOutOfBounds = errors.New("tape pointer out of bounds")

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/awisniewski/gobf/bf.debug=true'"`
var debug string

// Options configures an Interpreter.
type Options struct {
	// CharOutput renders output cells as characters. The default is the
	// decimal cell value, one per line.
	CharOutput bool
	// Verbose reports compile timing to stderr.
	Verbose bool
}

type Interpreter struct {
	program     Program
	program_ptr int
	mem         []uint8
	mem_ptr     int
	input       io.Reader
	output      io.Writer
	opts        Options
}

func NewInterpreter(program Program, input io.Reader, output io.Writer, opts Options) *Interpreter {
	return &Interpreter{
		program: program,
		mem:     make([]uint8, MemorySize),
		input:   input,
		output:  output,
		opts:    opts,
	}
}

// Load installs a new program and rewinds the instruction pointer. The tape
// and the data pointer are kept, which is what lets a REPL session carry
// state from one evaluated chunk to the next.
func (i *Interpreter) Load(program Program) {
	i.program = program
	i.program_ptr = 0
}

// Reset rewinds both pointers and zeroes the tape.
func (i *Interpreter) Reset() {
	i.program_ptr = 0
	i.mem_ptr = 0
	for j := range i.mem {
		i.mem[j] = 0
	}
}

func (i *Interpreter) MemoryLength() int {
	return len(i.mem)
}

// At reads the memory cell at index j.
func (i *Interpreter) At(j int) uint8 {
	return i.mem[j]
}

// Pointer is the current position of the data pointer.
func (i *Interpreter) Pointer() int {
	return i.mem_ptr
}

// Write a debug message to stderr if debug is enabled
func logf(format string, args ...interface{}) {
	if debug != "" {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Run the program until it finishes or an error occurs
func (i *Interpreter) RunContext(ctx context.Context) error {
	for i.program_ptr < len(i.program) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		inst := i.program[i.program_ptr]
		switch inst.Op {
		case Right:
			if i.mem_ptr+1 >= len(i.mem) {
				return fmt.Errorf("instruction %d: %w: cannot move right of cell %d", i.program_ptr, ErrTapeOutOfBounds, len(i.mem)-1)
			}
			i.mem_ptr++
		case Left:
			if i.mem_ptr == 0 {
				return fmt.Errorf("instruction %d: %w: cannot move left of cell 0", i.program_ptr, ErrTapeOutOfBounds)
			}
			i.mem_ptr--
		case Increment:
			i.mem[i.mem_ptr]++
		case Decrement:
			i.mem[i.mem_ptr]--
		case Output:
			if i.output != nil {
				if i.opts.CharOutput {
					i.output.Write([]byte{i.mem[i.mem_ptr]})
				} else {
					fmt.Fprintln(i.output, i.mem[i.mem_ptr])
				}
			}
		case Input:
			if i.input != nil {
				buff := make([]byte, 1)
				n, err := i.input.Read(buff)
				if n > 0 {
					i.mem[i.mem_ptr] = buff[0]
				} else if err != nil {
					if err == io.EOF {
						// end of input leaves the cell unchanged
						logf("EOF on input\n")
						break
					}
					return fmt.Errorf("instruction %d: reading input: %w", i.program_ptr, err)
				}
			}
		case LoopStart:
			if i.mem[i.mem_ptr] == 0 {
				// skip the body; the increment below lands one past the
				// matching LoopEnd
				i.program_ptr = inst.Partner
			}
		case LoopEnd:
			if i.mem[i.mem_ptr] != 0 {
				// re-enter the body one past the matching LoopStart
				i.program_ptr = inst.Partner
			}
		default:
			panic("unknown op")
		}
		i.program_ptr++
	}
	return nil
}

func (i *Interpreter) Run() error {
	return i.RunContext(context.Background())
}
