package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenhumany/binaryen/wasm"
)

func i32Const(v int32) *wasm.Const {
	return &wasm.Const{Value: wasm.LiteralI32(v), Typ: wasm.I32}
}

func TestSimplifyLocalsSinkThrough(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	f := &wasm.Function{
		Name:   "f",
		Vars:   []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Result: wasm.I32,
	}
	body := b.MakeBlock(
		b.MakeSetLocal(0, i32Const(42)),
		b.MakeNop(),
		b.MakeGetLocal(0, wasm.I32),
	)
	f.Body = body
	m.AddFunction(f)

	NewSimplifyLocals().RunOnFunction(m, f)

	// the set sinks into its single get, and with no gets left the set
	// itself dissolves into its value
	want := &wasm.Block{
		List: []wasm.Expression{&wasm.Nop{}, &wasm.Nop{}, i32Const(42)},
		Typ:  wasm.I32,
	}
	require.Equal(t, wasm.Expression(want), f.Body)
}

func TestSimplifyLocalsLoadCannotCrossStore(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	f := &wasm.Function{
		Name:   "f",
		Vars:   []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Result: wasm.None,
	}
	load := &wasm.Load{Bytes: 4, Align: 4, Ptr: i32Const(0), Typ: wasm.I32}
	store := &wasm.Store{Bytes: 4, Align: 4, Ptr: i32Const(0), Value: i32Const(9), ValueType: wasm.I32, Typ: wasm.None}
	body := b.MakeBlock(
		b.MakeSetLocal(0, load),
		store,
		&wasm.Drop{Value: b.MakeGetLocal(0, wasm.I32)},
	)
	f.Body = body
	m.AddFunction(f)

	NewSimplifyLocals().RunOnFunction(m, f)

	// the store invalidates the pending load, so the set must stay put
	_, isSet := body.List[0].(*wasm.SetLocal)
	require.True(t, isSet, "set of a load must not sink past a store")
}

func TestSimplifyLocalsIfReturnPromotion(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	f := &wasm.Function{
		Name:   "f",
		Params: []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Vars:   []wasm.NameType{{Name: "var$1", Type: wasm.I32}},
		Result: wasm.I32,
	}
	iff := &wasm.If{
		Condition: b.MakeGetLocal(0, wasm.I32),
		IfTrue:    b.MakeBlock(b.MakeSetLocal(1, i32Const(1)), b.MakeNop()),
		IfFalse:   b.MakeBlock(b.MakeSetLocal(1, i32Const(2)), b.MakeNop()),
	}
	body := b.MakeBlock(iff, b.MakeGetLocal(1, wasm.I32))
	f.Body = body
	m.AddFunction(f)

	NewSimplifyLocals().RunOnFunction(m, f)

	// both arms set the same local in tail position; the sets merge into
	// a single one consuming the if, which then sinks into the get and
	// dissolves
	wantIf := &wasm.If{
		Condition: &wasm.GetLocal{Index: 0, Typ: wasm.I32},
		IfTrue:    &wasm.Block{List: []wasm.Expression{&wasm.Nop{}, i32Const(1)}, Typ: wasm.I32},
		IfFalse:   &wasm.Block{List: []wasm.Expression{&wasm.Nop{}, i32Const(2)}, Typ: wasm.I32},
		Typ:       wasm.I32,
	}
	want := &wasm.Block{
		List: []wasm.Expression{&wasm.Nop{}, wantIf},
		Typ:  wasm.I32,
	}
	require.Equal(t, wasm.Expression(want), f.Body)
}

func TestSimplifyLocalsIdempotent(t *testing.T) {
	build := func() (*wasm.Module, *wasm.Function) {
		m := &wasm.Module{}
		b := wasm.NewBuilder(m)
		f := &wasm.Function{
			Name:   "f",
			Params: []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
			Vars:   []wasm.NameType{{Name: "var$1", Type: wasm.I32}, {Name: "var$2", Type: wasm.I32}},
			Result: wasm.I32,
		}
		f.Body = b.MakeBlock(
			b.MakeSetLocal(1, &wasm.Binary{Op: wasm.Add, Left: b.MakeGetLocal(0, wasm.I32), Right: i32Const(1), Typ: wasm.I32}),
			b.MakeSetLocal(2, &wasm.Binary{Op: wasm.Mul, Left: b.MakeGetLocal(1, wasm.I32), Right: i32Const(2), Typ: wasm.I32}),
			b.MakeGetLocal(2, wasm.I32),
		)
		m.AddFunction(f)
		return m, f
	}

	m1, f1 := build()
	NewSimplifyLocals().RunOnFunction(m1, f1)

	m2, f2 := build()
	NewSimplifyLocals().RunOnFunction(m2, f2)
	NewSimplifyLocals().RunOnFunction(m2, f2)

	require.Equal(t, f1.Body, f2.Body, "running the pass twice must equal running it once")
}

func TestSimplifyLocalsDeadSetRemoval(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	f := &wasm.Function{
		Name:   "f",
		Vars:   []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Result: wasm.None,
	}
	call := &wasm.Call{Target: "g", Typ: wasm.I32}
	f.Body = b.MakeBlock(
		b.MakeSetLocal(0, call),
		&wasm.Return{},
	)
	m.AddFunction(f)

	NewSimplifyLocals().RunOnFunction(m, f)

	// the local is never read: the set goes, its side-effecting value stays
	block := f.Body.(*wasm.Block)
	require.Same(t, wasm.Expression(call), block.List[0])
}
