package bf_test

import (
	"testing"

	"github.com/awisniewski/gobf/bf"
	"github.com/awisniewski/gobf/utils"
)

func ops(p bf.Program) []bf.Op {
	out := make([]bf.Op, len(p))
	for i, inst := range p {
		out[i] = inst.Op
	}
	return out
}

func TestCompile_AllSymbols(t *testing.T) {
	program, err := bf.Compile("+-<>.,[]")
	utils.AssertNoError(t, err)
	expected := []bf.Op{
		bf.Increment,
		bf.Decrement,
		bf.Left,
		bf.Right,
		bf.Output,
		bf.Input,
		bf.LoopStart,
		bf.LoopEnd,
	}
	utils.AssertEqualArrays(t, expected, ops(program))
}

func TestCompile_FiltersComments(t *testing.T) {
	commented, err := bf.Compile("a+b+c")
	utils.AssertNoError(t, err)
	plain, err := bf.Compile("++")
	utils.AssertNoError(t, err)
	utils.AssertEqualArrays(t, ops(plain), ops(commented))

	input := "++\n\n--<    >.,[hello sailor]"
	program, err := bf.Compile(input)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, program.String(), "++--<>.,[]")
}

func TestCompile_PartnerBinding(t *testing.T) {
	// +[>[-]<]
	program, err := bf.Compile("+[>[-]<]")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, program[1].Partner, 7)
	utils.AssertEqual(t, program[7].Partner, 1)
	utils.AssertEqual(t, program[3].Partner, 5)
	utils.AssertEqual(t, program[5].Partner, 3)
}

func TestCompile_PartnersAreMutual(t *testing.T) {
	program, err := bf.Compile("[[][[]]][]")
	utils.AssertNoError(t, err)
	for i, inst := range program {
		switch inst.Op {
		case bf.LoopStart:
			utils.Assert(t, inst.Partner > i, "loop start must point forward")
			utils.AssertEqual(t, program[inst.Partner].Op, bf.LoopEnd)
			utils.AssertEqual(t, program[inst.Partner].Partner, i)
		case bf.LoopEnd:
			utils.Assert(t, inst.Partner < i, "loop end must point backward")
			utils.AssertEqual(t, program[inst.Partner].Op, bf.LoopStart)
			utils.AssertEqual(t, program[inst.Partner].Partner, i)
		}
	}
}

func TestCompile_Unbalanced(t *testing.T) {
	for _, source := range []string{"[[", "]", "[+]]", "][", "[[]"} {
		program, err := bf.Compile(source)
		utils.AssertErrorIs(t, err, bf.ErrUnbalancedBrackets)
		utils.Assert(t, program == nil, "no partial program on compile error")
	}
}

func TestCompile_Empty(t *testing.T) {
	program, err := bf.Compile("")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, len(program), 0)

	program, err = bf.Compile("no instructions here")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, len(program), 0)
}
