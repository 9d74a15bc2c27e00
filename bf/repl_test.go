package bf_test

import (
	"context"
	"strings"
	"testing"

	"github.com/awisniewski/gobf/bf"
	"github.com/awisniewski/gobf/utils"
)

func TestSession_StatePersistsAcrossEvals(t *testing.T) {
	ctx := context.Background()
	var out strings.Builder
	session := bf.NewSession(nil, &out, bf.Options{})

	utils.AssertNoError(t, session.Eval(ctx, "+++"))
	utils.AssertNoError(t, session.Eval(ctx, "[->+<]"))

	utils.AssertEqual(t, session.Interpreter().At(0), 0)
	utils.AssertEqual(t, session.Interpreter().At(1), 3)
}

func TestSession_PointerPersistsAcrossEvals(t *testing.T) {
	ctx := context.Background()
	session := bf.NewSession(nil, nil, bf.Options{})

	utils.AssertNoError(t, session.Eval(ctx, ">>"))
	utils.AssertNoError(t, session.Eval(ctx, "+"))

	utils.AssertEqual(t, session.Interpreter().Pointer(), 2)
	utils.AssertEqual(t, session.Interpreter().At(2), 1)
}

func TestSession_CompileErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	var out strings.Builder
	session := bf.NewSession(nil, &out, bf.Options{})

	utils.AssertNoError(t, session.Eval(ctx, "++"))
	utils.AssertErrorIs(t, session.Eval(ctx, "["), bf.ErrUnbalancedBrackets)
	utils.AssertNoError(t, session.Eval(ctx, "."))

	utils.AssertEqual(t, out.String(), "2\n")
}

func TestSession_TapeOutOfBounds(t *testing.T) {
	ctx := context.Background()
	session := bf.NewSession(nil, nil, bf.Options{})
	utils.AssertErrorIs(t, session.Eval(ctx, "<"), bf.ErrTapeOutOfBounds)
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	session := bf.NewSession(nil, nil, bf.Options{})

	utils.AssertNoError(t, session.Eval(ctx, ">+++"))
	session.Reset()

	utils.AssertEqual(t, session.Interpreter().Pointer(), 0)
	utils.AssertEqual(t, session.Interpreter().At(1), 0)
}
