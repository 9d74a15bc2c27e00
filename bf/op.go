package bf

// Op is one of the eight brainfuck operations.
type Op uint8

const (
	Right Op = iota // >
	Left            // <
	Increment       // +
	Decrement       // -
	Output          // .
	Input           // ,
	LoopStart       // [
	LoopEnd         // ]
)

// parseOp maps a source character to its operation. The second return is
// false for any character outside the instruction alphabet.
func parseOp(c rune) (Op, bool) {
	switch c {
	case '>':
		return Right, true
	case '<':
		return Left, true
	case '+':
		return Increment, true
	case '-':
		return Decrement, true
	case '.':
		return Output, true
	case ',':
		return Input, true
	case '[':
		return LoopStart, true
	case ']':
		return LoopEnd, true
	default:
		return 0, false
	}
}

func (op Op) String() string {
	switch op {
	case Right:
		return ">"
	case Left:
		return "<"
	case Increment:
		return "+"
	case Decrement:
		return "-"
	case Output:
		return "."
	case Input:
		return ","
	case LoopStart:
		return "["
	case LoopEnd:
		return "]"
	default:
		return "?"
	}
}

// Instruction is a single compiled operation. For LoopStart and LoopEnd,
// Partner holds the index of the matching bracket within the same Program;
// it is meaningless for the other six operations.
type Instruction struct {
	Op      Op
	Partner int
}

// Program is a compiled instruction sequence. It is not mutated after
// compilation.
type Program []Instruction

func (p Program) String() string {
	out := make([]byte, len(p))
	for i, inst := range p {
		out[i] = inst.Op.String()[0]
	}
	return string(out)
}
