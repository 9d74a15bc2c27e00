package bf

import (
	"errors"
	"fmt"
)

// ErrUnbalancedBrackets is returned by Compile when the source's loop
// brackets do not pair up. Errors returned by Compile wrap this sentinel.
var ErrUnbalancedBrackets = errors.New("unbalanced brackets")

// Compile scans the source text and produces an executable Program.
// Characters outside the eight-symbol alphabet are dropped, so any program
// can carry free-form comments. Matching bracket indices are resolved here,
// in a single pass, so the interpreter never scans for brackets at run time.
//
// On unbalanced brackets no partial Program is returned.
func Compile(source string) (Program, error) {
	program := Program{}
	// indices of pending, not yet closed, LoopStart instructions
	stack := []int{}
	for _, c := range source {
		op, ok := parseOp(c)
		if !ok {
			continue
		}
		inst := Instruction{Op: op}
		switch op {
		case LoopStart:
			stack = append(stack, len(program))
		case LoopEnd:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unmatched ']' at instruction %d", ErrUnbalancedBrackets, len(program))
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			inst.Partner = start
			program[start].Partner = len(program)
		}
		program = append(program, inst)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unmatched '[' at instruction %d", ErrUnbalancedBrackets, stack[len(stack)-1])
	}
	return program, nil
}
