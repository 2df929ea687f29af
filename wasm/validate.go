package wasm

import (
	"github.com/zenhumany/binaryen/errors"
)

// Validate checks the module invariants: structural (no missing children,
// labels resolve), typing (calls match signatures, operand agreement,
// access widths), and locals (indices in range, set types match). It
// returns the first violation found; a module that fails validation must
// not be written out.
func Validate(m *Module) error {
	for _, f := range m.Functions {
		v := &validator{module: m, function: f}
		if err := v.validateFunction(); err != nil {
			return err
		}
	}
	for _, name := range m.Table {
		if m.GetFunction(name) == nil {
			return errors.NotFound(errors.PhaseValidate, "table entry", name)
		}
	}
	for _, exp := range m.Exports {
		if m.GetFunction(exp.Value) == nil {
			return errors.NotFound(errors.PhaseValidate, "exported function", exp.Value)
		}
	}
	if m.Start != "" && m.GetFunction(m.Start) == nil {
		return errors.NotFound(errors.PhaseValidate, "start function", m.Start)
	}
	return nil
}

type validator struct {
	module   *Module
	function *Function
	labels   []string
}

func (v *validator) validateFunction() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*errors.Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	if v.function.Body == nil {
		return errors.TypeMismatch(v.function.Name, "function has no body")
	}
	v.check(v.function.Body)
	return nil
}

func (v *validator) fail(e *errors.Error) {
	panic(e)
}

func (v *validator) checkLabel(name string) {
	for i := len(v.labels) - 1; i >= 0; i-- {
		if v.labels[i] == name {
			return
		}
	}
	v.fail(errors.BadLabel(v.function.Name, name))
}

func (v *validator) checkLocal(index Index) {
	if int(index) >= v.function.NumLocals() {
		v.fail(errors.OutOfBounds(v.function.Name, "local", int(index), v.function.NumLocals()))
	}
}

func (v *validator) check(e Expression) {
	if e == nil {
		v.fail(errors.TypeMismatch(v.function.Name, "missing child expression"))
	}
	switch n := e.(type) {
	case *Block:
		if n.Name != "" {
			v.labels = append(v.labels, n.Name)
		}
		for _, child := range n.List {
			v.check(child)
		}
		if n.Name != "" {
			v.labels = v.labels[:len(v.labels)-1]
		}
	case *If:
		v.check(n.Condition)
		v.check(n.IfTrue)
		if n.IfFalse != nil {
			v.check(n.IfFalse)
		}
	case *Loop:
		v.labels = append(v.labels, n.Out, n.In)
		v.check(n.Body)
		v.labels = v.labels[:len(v.labels)-2]
	case *Break:
		v.checkLabel(n.Name)
		if n.Value != nil {
			v.check(n.Value)
		}
		if n.Condition != nil {
			v.check(n.Condition)
		}
	case *Switch:
		for _, target := range n.Targets {
			v.checkLabel(target)
		}
		v.checkLabel(n.Default)
		if n.Value != nil {
			v.check(n.Value)
		}
		v.check(n.Condition)
	case *Call:
		target := v.module.GetFunction(n.Target)
		if target == nil {
			v.fail(errors.NotFound(errors.PhaseValidate, "call target", n.Target))
		}
		v.checkCallOperands(n.Operands, target.Type)
	case *CallImport:
		im := v.module.GetImport(n.Target)
		if im == nil {
			v.fail(errors.NotFound(errors.PhaseValidate, "import call target", n.Target))
		}
		v.checkCallOperands(n.Operands, im.Type)
	case *CallIndirect:
		v.checkCallOperands(n.Operands, n.FullType)
		v.check(n.Target)
	case *GetLocal:
		v.checkLocal(n.Index)
	case *SetLocal:
		v.checkLocal(n.Index)
		v.check(n.Value)
		if want := v.function.LocalType(n.Index); n.Value.Type().Concrete() && n.Value.Type() != want {
			v.fail(errors.TypeMismatch(v.function.Name,
				"set of "+want.String()+" local with "+n.Value.Type().String()+" value"))
		}
	case *Load:
		if int(n.Bytes) > n.Typ.Size() || n.Bytes == 0 {
			v.fail(errors.TypeMismatch(v.function.Name, "load width invalid for "+n.Typ.String()))
		}
		v.check(n.Ptr)
	case *Store:
		if int(n.Bytes) > n.ValueType.Size() || n.Bytes == 0 {
			v.fail(errors.TypeMismatch(v.function.Name, "store width invalid for "+n.ValueType.String()))
		}
		v.check(n.Ptr)
		v.check(n.Value)
	case *Unary:
		v.check(n.Value)
	case *Binary:
		v.check(n.Left)
		v.check(n.Right)
		lt, rt := n.Left.Type(), n.Right.Type()
		if lt.Concrete() && rt.Concrete() && lt != rt {
			v.fail(errors.TypeMismatch(v.function.Name,
				"binary operands disagree: "+lt.String()+" vs "+rt.String()))
		}
	case *Select:
		v.check(n.IfTrue)
		v.check(n.IfFalse)
		v.check(n.Condition)
		tt, ft := n.IfTrue.Type(), n.IfFalse.Type()
		if tt.Concrete() && ft.Concrete() && tt != ft {
			v.fail(errors.TypeMismatch(v.function.Name,
				"select arms disagree: "+tt.String()+" vs "+ft.String()))
		}
	case *Drop:
		v.check(n.Value)
	case *Return:
		if n.Value != nil {
			v.check(n.Value)
		}
	case *Host:
		for _, operand := range n.Operands {
			v.check(operand)
		}
	case *SetGlobal:
		v.check(n.Value)
	case *GetGlobal, *Const, *Nop, *Unreachable:
	}
}

func (v *validator) checkCallOperands(operands []Expression, ftype *FunctionType) {
	if len(operands) != len(ftype.Params) {
		v.fail(errors.TypeMismatch(v.function.Name, "call operand count does not match signature"))
	}
	for i, operand := range operands {
		v.check(operand)
		if operand.Type().Concrete() && operand.Type() != ftype.Params[i] {
			v.fail(errors.TypeMismatch(v.function.Name,
				"call operand type "+operand.Type().String()+" does not match "+ftype.Params[i].String()))
		}
	}
}
