package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenhumany/binaryen/wasm"
)

// buildPhiLoop builds
//
//	i = 0
//	loop (out, in) {
//	  i2 = i + 1
//	  if (c) { i = i2; continue in }
//	}
//
// with c = local 0 (param), i = local 1, i2 = local 2.
func buildPhiLoop(conditionalContinue bool) (*wasm.Module, *wasm.Function, *wasm.SetLocal, *wasm.SetLocal, *wasm.Loop) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	f := &wasm.Function{
		Name:   "f",
		Params: []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Vars:   []wasm.NameType{{Name: "var$1", Type: wasm.I32}, {Name: "var$2", Type: wasm.I32}},
		Result: wasm.None,
	}

	initSet := b.MakeSetLocal(1, i32Const(0))
	phiSet := b.MakeSetLocal(1, b.MakeGetLocal(2, wasm.I32))

	var continueBr *wasm.Break
	if conditionalContinue {
		continueBr = b.MakeBreak("in", nil, b.MakeGetLocal(0, wasm.I32))
	} else {
		continueBr = b.MakeBreak("in", nil, nil)
	}

	loopBody := b.MakeBlock(
		b.MakeSetLocal(2, &wasm.Binary{
			Op:    wasm.Add,
			Left:  b.MakeGetLocal(1, wasm.I32),
			Right: i32Const(1),
			Typ:   wasm.I32,
		}),
		&wasm.If{
			Condition: b.MakeGetLocal(0, wasm.I32),
			IfTrue:    b.MakeBlock(phiSet, continueBr),
		},
	)
	loop := &wasm.Loop{Out: "out", In: "in", Body: loopBody}
	loop.Finalize()

	f.Body = b.MakeBlock(initSet, loop)
	m.AddFunction(f)
	return m, f, initSet, phiSet, loop
}

func TestLoopVarSplitting(t *testing.T) {
	m, f, initSet, phiSet, loop := buildPhiLoop(false)

	NewLoopVarSplitting().RunOnFunction(m, f)

	// a helper local appears
	require.Len(t, f.Vars, 3)
	helper := wasm.Index(3)
	require.Equal(t, wasm.I32, f.LocalType(helper))

	// both entries now write the helper instead of the phi local
	require.Equal(t, helper, initSet.Index)
	require.Equal(t, helper, phiSet.Index)

	// the loop body begins with the copy back into the original
	seq, ok := loop.Body.(*wasm.Block)
	require.True(t, ok)
	head, ok := seq.List[0].(*wasm.SetLocal)
	require.True(t, ok)
	require.Equal(t, wasm.Index(1), head.Index)
	get, ok := head.Value.(*wasm.GetLocal)
	require.True(t, ok)
	require.Equal(t, helper, get.Index)
}

func TestLoopVarSplittingConditionalContinueDisqualifies(t *testing.T) {
	m, f, initSet, phiSet, _ := buildPhiLoop(true)

	NewLoopVarSplitting().RunOnFunction(m, f)

	require.Len(t, f.Vars, 2, "no helper for a conditional continue")
	require.Equal(t, wasm.Index(1), initSet.Index)
	require.Equal(t, wasm.Index(1), phiSet.Index)
}
