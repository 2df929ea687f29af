package wasm_test

import (
	"testing"

	"github.com/zenhumany/binaryen/wasm"
)

func validModule() *wasm.Module {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)
	ft := &wasm.FunctionType{Name: "type$0", Result: wasm.I32}
	m.AddFunctionType(ft)
	m.AddFunction(&wasm.Function{
		Name:   "f",
		Vars:   []wasm.NameType{{Name: "var$0", Type: wasm.I32}},
		Result: wasm.I32,
		Type:   ft,
		Body: b.MakeBlock(
			b.MakeSetLocal(0, b.MakeConst(wasm.LiteralI32(1))),
			b.MakeGetLocal(0, wasm.I32),
		),
	})
	return m
}

func TestValidateAccepts(t *testing.T) {
	if err := wasm.Validate(validModule()); err != nil {
		t.Fatalf("valid module rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})

	tests := []struct {
		name   string
		mangle func(m *wasm.Module)
	}{
		{"local index out of range", func(m *wasm.Module) {
			m.Functions[0].Body = b.MakeGetLocal(9, wasm.I32)
		}},
		{"set type mismatch", func(m *wasm.Module) {
			m.Functions[0].Body = b.MakeBlock(
				b.MakeSetLocal(0, b.MakeConst(wasm.LiteralF64(1))),
				b.MakeGetLocal(0, wasm.I32),
			)
		}},
		{"break to unknown label", func(m *wasm.Module) {
			m.Functions[0].Body = b.MakeBlock(
				b.MakeBreak("nowhere", nil, nil),
				b.MakeGetLocal(0, wasm.I32),
			)
		}},
		{"binary operand disagreement", func(m *wasm.Module) {
			m.Functions[0].Body = &wasm.Binary{
				Op:    wasm.Add,
				Left:  b.MakeConst(wasm.LiteralI32(1)),
				Right: b.MakeConst(wasm.LiteralF64(2)),
				Typ:   wasm.I32,
			}
		}},
		{"call arity mismatch", func(m *wasm.Module) {
			m.Functions[0].Body = &wasm.Call{
				Target:   "f",
				Operands: []wasm.Expression{b.MakeConst(wasm.LiteralI32(1))},
				Typ:      wasm.I32,
			}
		}},
		{"store width too wide", func(m *wasm.Module) {
			m.Functions[0].Body = b.MakeBlock(
				&wasm.Store{
					Bytes:     8,
					Align:     8,
					Ptr:       b.MakeConst(wasm.LiteralI32(0)),
					Value:     b.MakeConst(wasm.LiteralI32(1)),
					ValueType: wasm.I32,
					Typ:       wasm.None,
				},
				b.MakeGetLocal(0, wasm.I32),
			)
		}},
		{"missing child", func(m *wasm.Module) {
			m.Functions[0].Body = &wasm.Drop{}
		}},
		{"export of unknown function", func(m *wasm.Module) {
			m.Exports = append(m.Exports, &wasm.Export{Name: "x", Value: "ghost"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModule()
			tt.mangle(m)
			if err := wasm.Validate(m); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
