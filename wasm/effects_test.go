package wasm_test

import (
	"testing"

	"github.com/zenhumany/binaryen/wasm"
)

func TestEffectsAnalyze(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})

	load := &wasm.Load{Bytes: 4, Ptr: b.MakeGetLocal(0, wasm.I32), Typ: wasm.I32}
	fx := wasm.AnalyzeEffects(load)
	if !fx.ReadsMemory || fx.WritesMemory {
		t.Error("load must read memory only")
	}
	if !fx.MayTrap {
		t.Error("load may trap")
	}
	if !fx.LocalsRead.Has(0) {
		t.Error("ptr read of local 0 missed")
	}

	div := &wasm.Binary{
		Op:    wasm.DivS,
		Left:  b.MakeConst(wasm.LiteralI32(1)),
		Right: b.MakeConst(wasm.LiteralI32(0)),
		Typ:   wasm.I32,
	}
	if !wasm.AnalyzeEffects(div).MayTrap {
		t.Error("integer division may trap")
	}

	br := b.MakeBreak("l", nil, nil)
	if !wasm.AnalyzeEffects(br).Branches {
		t.Error("break branches")
	}

	call := &wasm.Call{Target: "g"}
	if !wasm.AnalyzeEffects(call).Calls {
		t.Error("call calls")
	}
}

func TestEffectsInvalidates(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})

	setEffects := func(index wasm.Index) *wasm.Effects {
		return wasm.AnalyzeEffects(b.MakeSetLocal(index, b.MakeConst(wasm.LiteralI32(1))))
	}
	getEffects := func(index wasm.Index) *wasm.Effects {
		return wasm.AnalyzeEffects(b.MakeGetLocal(index, wasm.I32))
	}

	tests := []struct {
		name string
		a, b *wasm.Effects
		want bool
	}{
		{"write vs read of same local", setEffects(0), getEffects(0), true},
		{"write vs write of same local", setEffects(0), setEffects(0), true},
		{"write vs read of other local", setEffects(0), getEffects(1), false},
		{"read vs read", getEffects(0), getEffects(0), false},
		{
			"store vs load",
			wasm.AnalyzeEffects(&wasm.Store{Bytes: 4, Ptr: b.MakeConst(wasm.LiteralI32(0)), Value: b.MakeConst(wasm.LiteralI32(1)), ValueType: wasm.I32}),
			wasm.AnalyzeEffects(&wasm.Load{Bytes: 4, Ptr: b.MakeConst(wasm.LiteralI32(0)), Typ: wasm.I32}),
			true,
		},
		{
			"load vs load",
			wasm.AnalyzeEffects(&wasm.Load{Bytes: 4, Ptr: b.MakeConst(wasm.LiteralI32(0)), Typ: wasm.I32}),
			wasm.AnalyzeEffects(&wasm.Load{Bytes: 4, Ptr: b.MakeConst(wasm.LiteralI32(4)), Typ: wasm.I32}),
			false,
		},
		{
			"call vs load",
			wasm.AnalyzeEffects(&wasm.Call{Target: "g"}),
			wasm.AnalyzeEffects(&wasm.Load{Bytes: 4, Ptr: b.MakeConst(wasm.LiteralI32(0)), Typ: wasm.I32}),
			true,
		},
		{"branch contaminates", wasm.AnalyzeEffects(b.MakeBreak("l", nil, nil)), getEffects(0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Invalidates(tt.b); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectsMergeIn(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})
	fx := wasm.AnalyzeEffects(b.MakeGetLocal(3, wasm.I32))
	other := wasm.AnalyzeEffects(&wasm.Store{Bytes: 4, Ptr: b.MakeConst(wasm.LiteralI32(0)), Value: b.MakeGetLocal(1, wasm.I32), ValueType: wasm.I32})

	fx.MergeIn(other)
	if !fx.WritesMemory || !fx.MayTrap {
		t.Error("merge lost memory effects")
	}
	if !fx.LocalsRead.Has(3) || !fx.LocalsRead.Has(1) {
		t.Error("merge lost local reads")
	}
}
