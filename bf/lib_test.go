package bf_test

import (
	"strings"
	"testing"

	"github.com/awisniewski/gobf/bf"
	"github.com/awisniewski/gobf/utils"
)

// the canonical hello-world program
const helloWorld = `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`

func TestRun_HelloWorld(t *testing.T) {
	var out strings.Builder
	err := bf.Run(helloWorld, nil, &out, bf.Options{CharOutput: true})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out.String(), "Hello World!\n")
}

func TestRun_NumericOutput(t *testing.T) {
	var out strings.Builder
	err := bf.Run("+++++.", nil, &out, bf.Options{})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out.String(), "5\n")
}

func TestRun_Echo(t *testing.T) {
	// read two bytes and write them back
	var out strings.Builder
	err := bf.Run(",.,.", strings.NewReader("hi"), &out, bf.Options{CharOutput: true})
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out.String(), "hi")
}

func TestRun_CompileError(t *testing.T) {
	var out strings.Builder
	err := bf.Run("+[", nil, &out, bf.Options{})
	utils.AssertErrorIs(t, err, bf.ErrUnbalancedBrackets)
	utils.AssertEqual(t, out.String(), "")
}

func TestRun_TapeOutOfBounds(t *testing.T) {
	err := bf.Run("<", nil, nil, bf.Options{})
	utils.AssertErrorIs(t, err, bf.ErrTapeOutOfBounds)
}
