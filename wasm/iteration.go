package wasm

// Operand iteration. The operands of a node are its direct children in
// order of execution, in the stack-machine sense: a block's list members
// and a loop's body are structural, not operands, and are skipped here.
// Optional children that are absent (a break without a condition) are
// skipped rather than yielded as nil.
//
// Each position is the address of the child pointer inside the parent, so
// rewriters can splice a replacement in place through the slot.

// EachOperand calls fn with the slot of each operand of e, in execution
// order.
func EachOperand(e Expression, fn func(slot *Expression)) {
	switch n := e.(type) {
	case *Block, *If, *Loop, *GetLocal, *GetGlobal, *Const, *Nop, *Unreachable:
		// no operands
	case *Break:
		if n.Value != nil {
			fn(&n.Value)
		}
		if n.Condition != nil {
			fn(&n.Condition)
		}
	case *Switch:
		if n.Value != nil {
			fn(&n.Value)
		}
		fn(&n.Condition)
	case *Call:
		for i := range n.Operands {
			fn(&n.Operands[i])
		}
	case *CallImport:
		for i := range n.Operands {
			fn(&n.Operands[i])
		}
	case *CallIndirect:
		for i := range n.Operands {
			fn(&n.Operands[i])
		}
		fn(&n.Target)
	case *SetLocal:
		fn(&n.Value)
	case *SetGlobal:
		fn(&n.Value)
	case *Load:
		fn(&n.Ptr)
	case *Store:
		fn(&n.Ptr)
		fn(&n.Value)
	case *Unary:
		fn(&n.Value)
	case *Binary:
		fn(&n.Left)
		fn(&n.Right)
	case *Select:
		fn(&n.IfTrue)
		fn(&n.IfFalse)
		fn(&n.Condition)
	case *Drop:
		fn(&n.Value)
	case *Return:
		if n.Value != nil {
			fn(&n.Value)
		}
	case *Host:
		for i := range n.Operands {
			fn(&n.Operands[i])
		}
	default:
		panic("unhandled expression kind in operand iteration")
	}
}

// Operands collects the operand slots of e into a slice.
func Operands(e Expression) []*Expression {
	var slots []*Expression
	EachOperand(e, func(slot *Expression) {
		slots = append(slots, slot)
	})
	return slots
}

// NumOperands returns the number of operands of e without materializing
// the slots.
func NumOperands(e Expression) int {
	switch n := e.(type) {
	case *Break:
		count := 0
		if n.Value != nil {
			count++
		}
		if n.Condition != nil {
			count++
		}
		return count
	case *Switch:
		if n.Value != nil {
			return 2
		}
		return 1
	case *Call:
		return len(n.Operands)
	case *CallImport:
		return len(n.Operands)
	case *CallIndirect:
		return len(n.Operands) + 1
	case *SetLocal, *SetGlobal, *Load, *Unary, *Drop:
		return 1
	case *Store, *Binary:
		return 2
	case *Select:
		return 3
	case *Return:
		if n.Value != nil {
			return 1
		}
		return 0
	case *Host:
		return len(n.Operands)
	default:
		return 0
	}
}
