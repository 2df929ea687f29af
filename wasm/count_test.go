package wasm_test

import (
	"testing"

	"github.com/zenhumany/binaryen/wasm"
)

func TestLocalAnalyzer(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})

	// param 0; vars 1..4 with different set/get shapes
	f := &wasm.Function{
		Name:   "f",
		Params: []wasm.NameType{{Name: "p", Type: wasm.I32}},
		Vars: []wasm.NameType{
			{Name: "a", Type: wasm.I32}, // set once, got after: SFA
			{Name: "b", Type: wasm.I32}, // set twice: not SFA
			{Name: "c", Type: wasm.I32}, // got before its set: not SFA
			{Name: "d", Type: wasm.I32}, // never set: not SFA
		},
	}
	body := &wasm.Block{List: []wasm.Expression{
		b.MakeSetLocal(0, b.MakeConst(wasm.LiteralI32(0))), // param set
		b.MakeSetLocal(1, b.MakeConst(wasm.LiteralI32(1))),
		b.MakeSetLocal(2, b.MakeGetLocal(1, wasm.I32)),
		b.MakeSetLocal(2, b.MakeGetLocal(1, wasm.I32)),
		b.MakeSetLocal(3, b.MakeGetLocal(3, wasm.I32)), // get inside value seen first in postorder
		b.MakeGetLocal(4, wasm.I32),
	}}
	body.Finalize()
	f.Body = body

	a := wasm.NewLocalAnalyzer(f)

	if a.IsSFA(0) {
		t.Error("param must not be SFA")
	}
	if !a.IsSFA(1) {
		t.Error("single-set local with later gets must be SFA")
	}
	if a.IsSFA(2) {
		t.Error("twice-set local must not be SFA")
	}
	if a.IsSFA(3) {
		t.Error("get before first set must kill SFA")
	}
	if a.IsSFA(4) {
		t.Error("never-set local must not be SFA")
	}

	if a.NumSets[2] != 2 || a.NumGets[1] != 2 {
		t.Errorf("counts wrong: sets[2]=%d gets[1]=%d", a.NumSets[2], a.NumGets[1])
	}
	if a.GetNumGets(4) != 1 {
		t.Errorf("gets[4]=%d", a.GetNumGets(4))
	}
}

func TestGetLocalCounterSubTree(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})
	f := &wasm.Function{
		Name: "f",
		Vars: []wasm.NameType{{Name: "a", Type: wasm.I32}, {Name: "b", Type: wasm.I32}},
	}
	sub := b.MakeBlock(
		b.MakeGetLocal(0, wasm.I32),
		b.MakeGetLocal(0, wasm.I32),
		b.MakeGetLocal(1, wasm.I32),
	)
	f.Body = b.MakeBlock(sub, b.MakeGetLocal(0, wasm.I32))

	c := wasm.NewGetLocalCounter(f, sub)
	if c.NumGets[0] != 2 || c.NumGets[1] != 1 {
		t.Errorf("sub-tree counts: got %v", c.NumGets)
	}
}
