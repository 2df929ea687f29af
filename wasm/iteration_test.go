package wasm_test

import (
	"testing"

	"github.com/zenhumany/binaryen/wasm"
)

func TestOperandOrder(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})
	value := b.MakeConst(wasm.LiteralI32(1))
	condition := b.MakeConst(wasm.LiteralI32(2))
	ptr := b.MakeConst(wasm.LiteralI32(3))
	left := b.MakeConst(wasm.LiteralI32(4))
	right := b.MakeConst(wasm.LiteralI32(5))
	target := b.MakeConst(wasm.LiteralI32(6))

	tests := []struct {
		name string
		expr wasm.Expression
		want []wasm.Expression
	}{
		{"block is structural", &wasm.Block{List: []wasm.Expression{value}}, nil},
		{"if is structural", &wasm.If{Condition: condition, IfTrue: value}, nil},
		{"loop is structural", &wasm.Loop{Body: value}, nil},
		{"break full", &wasm.Break{Name: "l", Value: value, Condition: condition}, []wasm.Expression{value, condition}},
		{"break bare", &wasm.Break{Name: "l"}, nil},
		{"break condition only", &wasm.Break{Name: "l", Condition: condition}, []wasm.Expression{condition}},
		{"switch", &wasm.Switch{Default: "l", Value: value, Condition: condition}, []wasm.Expression{value, condition}},
		{"switch no value", &wasm.Switch{Default: "l", Condition: condition}, []wasm.Expression{condition}},
		{"call", &wasm.Call{Operands: []wasm.Expression{left, right}}, []wasm.Expression{left, right}},
		{"call indirect target last", &wasm.CallIndirect{Operands: []wasm.Expression{left, right}, Target: target}, []wasm.Expression{left, right, target}},
		{"set local", &wasm.SetLocal{Index: 0, Value: value}, []wasm.Expression{value}},
		{"load", &wasm.Load{Bytes: 4, Ptr: ptr, Typ: wasm.I32}, []wasm.Expression{ptr}},
		{"store ptr then value", &wasm.Store{Bytes: 4, Ptr: ptr, Value: value, ValueType: wasm.I32}, []wasm.Expression{ptr, value}},
		{"unary", &wasm.Unary{Op: wasm.EqZ, Value: value, Typ: wasm.I32}, []wasm.Expression{value}},
		{"binary", &wasm.Binary{Op: wasm.Add, Left: left, Right: right, Typ: wasm.I32}, []wasm.Expression{left, right}},
		{"select", &wasm.Select{IfTrue: left, IfFalse: right, Condition: condition}, []wasm.Expression{left, right, condition}},
		{"drop", &wasm.Drop{Value: value}, []wasm.Expression{value}},
		{"return empty", &wasm.Return{}, nil},
		{"return value", &wasm.Return{Value: value}, []wasm.Expression{value}},
		{"host", &wasm.Host{Op: wasm.GrowMemory, Operands: []wasm.Expression{value}}, []wasm.Expression{value}},
		{"leaf", b.MakeConst(wasm.LiteralI32(0)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := wasm.Operands(tt.expr)
			if len(slots) != len(tt.want) {
				t.Fatalf("got %d operands, want %d", len(slots), len(tt.want))
			}
			if got := wasm.NumOperands(tt.expr); got != len(tt.want) {
				t.Errorf("NumOperands: got %d, want %d", got, len(tt.want))
			}
			for i, slot := range slots {
				if *slot != tt.want[i] {
					t.Errorf("operand %d mismatch", i)
				}
			}
		})
	}
}

func TestOperandSlotsAreAssignable(t *testing.T) {
	b := wasm.NewBuilder(&wasm.Module{})
	set := &wasm.SetLocal{Index: 0, Value: b.MakeConst(wasm.LiteralI32(1))}

	slots := wasm.Operands(set)
	replacement := b.MakeConst(wasm.LiteralI32(7))
	*slots[0] = replacement

	if set.Value != wasm.Expression(replacement) {
		t.Error("writing through the slot did not update the parent")
	}
}
