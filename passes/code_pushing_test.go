package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenhumany/binaryen/wasm"
)

func TestCodePushingIntoIf(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	f := &wasm.Function{
		Name:   "f",
		Params: []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Vars:   []wasm.NameType{{Name: "var$1", Type: wasm.I32}},
		Result: wasm.None,
	}
	body := b.MakeBlock(
		b.MakeSetLocal(1, i32Const(7)),
		&wasm.If{
			Condition: b.MakeGetLocal(0, wasm.I32),
			IfTrue:    b.MakeGetLocal(1, wasm.I32),
			IfFalse:   b.MakeNop(),
		},
	)
	f.Body = body
	m.AddFunction(f)

	NewCodePushing().RunOnFunction(m, f)

	// the set's only use lives in the true arm, and the condition does not
	// interfere, so the set moves into the arm
	want := &wasm.Block{
		List: []wasm.Expression{
			&wasm.Nop{},
			&wasm.If{
				Condition: &wasm.GetLocal{Index: 0, Typ: wasm.I32},
				IfTrue: &wasm.Block{
					List: []wasm.Expression{
						&wasm.SetLocal{Index: 1, Value: i32Const(7)},
						&wasm.GetLocal{Index: 1, Typ: wasm.I32},
					},
					Typ: wasm.I32,
				},
				IfFalse: &wasm.Nop{},
			},
		},
		Typ: wasm.None,
	}
	require.Equal(t, wasm.Expression(want), f.Body)
}

func TestCodePushingPastIf(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	// the set's use comes after the if, which does not touch the local,
	// so the set is pushed past the whole if
	f := &wasm.Function{
		Name:   "f",
		Params: []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Vars:   []wasm.NameType{{Name: "var$1", Type: wasm.I32}},
		Result: wasm.I32,
	}
	set := b.MakeSetLocal(1, i32Const(7))
	iff := &wasm.If{
		Condition: b.MakeGetLocal(0, wasm.I32),
		IfTrue:    &wasm.Return{Value: i32Const(0)},
	}
	body := b.MakeBlock(
		set,
		iff,
		b.MakeGetLocal(1, wasm.I32),
	)
	f.Body = body
	m.AddFunction(f)

	NewCodePushing().RunOnFunction(m, f)

	block := f.Body.(*wasm.Block)
	require.Equal(t, wasm.IfKind, block.List[0].Kind(), "the if moves forward")
	require.Same(t, wasm.Expression(set), block.List[1], "the set lands right after the push point")
	require.Equal(t, wasm.GetLocalKind, block.List[2].Kind())
}

func TestCodePushingRespectsInvalidation(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	// the if reads the local, so the set may move neither past nor into it
	f := &wasm.Function{
		Name:   "f",
		Params: []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Vars:   []wasm.NameType{{Name: "var$1", Type: wasm.I32}},
		Result: wasm.I32,
	}
	set := b.MakeSetLocal(1, i32Const(7))
	body := b.MakeBlock(
		set,
		&wasm.If{
			Condition: b.MakeGetLocal(1, wasm.I32),
			IfTrue:    &wasm.Return{Value: i32Const(0)},
		},
		b.MakeGetLocal(1, wasm.I32),
	)
	f.Body = body
	m.AddFunction(f)

	NewCodePushing().RunOnFunction(m, f)

	block := f.Body.(*wasm.Block)
	require.Same(t, wasm.Expression(set), block.List[0], "the set must stay put")
}
