package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenhumany/binaryen/wasm"
)

func TestDropReturnValuesInsertsDrops(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	f := &wasm.Function{
		Name:   "f",
		Vars:   []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Result: wasm.I32,
	}
	call := &wasm.Call{Target: "g", Typ: wasm.I32}
	tee := b.MakeTeeLocal(0, i32Const(1))
	f.Body = b.MakeBlock(
		call,
		tee,
		i32Const(5),
	)
	m.AddFunction(f)

	NewDropReturnValues().RunOnFunction(m, f)

	block := f.Body.(*wasm.Block)

	// the unused call result gets an explicit drop
	drop, ok := block.List[0].(*wasm.Drop)
	require.True(t, ok, "unused call must be dropped")
	require.Same(t, wasm.Expression(call), drop.Value)

	// the tee with an unused result is demoted to a plain set
	require.Same(t, wasm.Expression(tee), block.List[1])
	require.False(t, tee.IsTee)
	require.Equal(t, wasm.None, tee.Type())

	// the used final value stays bare
	require.Equal(t, wasm.ConstKind, block.List[2].Kind())
}

func TestDropReturnValuesStoreSpill(t *testing.T) {
	m := &wasm.Module{}

	// a store whose value an ancestor consumes must spill through a local:
	// spill value, store, re-read
	f := &wasm.Function{
		Name:   "f",
		Result: wasm.I32,
	}
	value := i32Const(42)
	store := &wasm.Store{
		Bytes:     4,
		Align:     4,
		Ptr:       i32Const(0),
		Value:     value,
		ValueType: wasm.I32,
		Typ:       wasm.I32,
	}
	f.Body = store
	m.AddFunction(f)

	NewDropReturnValues().RunOnFunction(m, f)

	require.Equal(t, wasm.None, store.Type(), "store no longer returns a value")
	require.Len(t, f.Vars, 1, "a helper local appears")

	outer, ok := f.Body.(*wasm.Block)
	require.True(t, ok)
	require.Len(t, outer.List, 2)
	require.Equal(t, wasm.I32, outer.Type())

	inner, ok := outer.List[0].(*wasm.Block)
	require.True(t, ok)
	spill, ok := inner.List[0].(*wasm.SetLocal)
	require.True(t, ok)
	require.Same(t, wasm.Expression(value), spill.Value)
	require.Same(t, wasm.Expression(store), inner.List[1])

	// the store now reads the spilled copy
	reread, ok := store.Value.(*wasm.GetLocal)
	require.True(t, ok)
	require.Equal(t, spill.Index, reread.Index)

	final, ok := outer.List[1].(*wasm.GetLocal)
	require.True(t, ok)
	require.Equal(t, spill.Index, final.Index)
}

func TestDropReturnValuesBreakValue(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)

	// a break carries a value into a block whose own result is dropped;
	// the carried value must be dropped at the break site too
	f := &wasm.Function{
		Name:   "f",
		Result: wasm.None,
	}
	carried := i32Const(1)
	br := b.MakeBreak("exit", carried, nil)
	body := &wasm.Block{
		Name: "exit",
		List: []wasm.Expression{br, i32Const(2)},
	}
	body.Finalize()
	f.Body = body
	m.AddFunction(f)

	NewDropReturnValues().RunOnFunction(m, f)

	require.Nil(t, br.Value, "the break no longer carries a value")

	seq, ok := body.List[0].(*wasm.Block)
	require.True(t, ok)
	drop, ok := seq.List[0].(*wasm.Drop)
	require.True(t, ok)
	require.Same(t, wasm.Expression(carried), drop.Value)
	require.Same(t, wasm.Expression(br), seq.List[1])

	// the fallthrough value is dropped as well
	_, ok = body.List[1].(*wasm.Drop)
	require.True(t, ok)
}
