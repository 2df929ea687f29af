package wasm

// Traversal framework. Walkers visit every node of a function body and hand
// visitors the address of the child pointer inside the parent (the slot),
// so a visitor can replace the current node in place.

// EachChild calls fn with every structural child slot of e in order of
// execution: the operands plus the control-flow children that operand
// iteration skips (block list members, if arms, loop bodies).
func EachChild(e Expression, fn func(slot *Expression)) {
	switch n := e.(type) {
	case *Block:
		for i := range n.List {
			fn(&n.List[i])
		}
	case *If:
		fn(&n.Condition)
		fn(&n.IfTrue)
		if n.IfFalse != nil {
			fn(&n.IfFalse)
		}
	case *Loop:
		fn(&n.Body)
	default:
		EachOperand(e, fn)
	}
}

// PostWalker drives a post-order traversal. PreVisit runs before a node's
// children, Visit after them (the main visit, and the point where the node
// may be replaced through the slot), PostVisit last. Nil hooks are skipped.
type PostWalker struct {
	PreVisit  func(currp *Expression)
	Visit     func(currp *Expression)
	PostVisit func(currp *Expression)
}

// Walk traverses the tree rooted in the given slot.
func (w *PostWalker) Walk(rootp *Expression) {
	if w.PreVisit != nil {
		w.PreVisit(rootp)
	}
	EachChild(*rootp, w.Walk)
	if w.Visit != nil {
		w.Visit(rootp)
	}
	if w.PostVisit != nil {
		w.PostVisit(rootp)
	}
}

// LinearWalker is a post-order walker that additionally reports where
// linear execution is interrupted, for passes that reason about straight-
// line traces. NoteNonLinear fires:
//
//   - at a loop top, before the body (the fallthrough entry);
//   - after the children of a break, switch, return, or unreachable;
//   - at the end of a labeled block, where its breaks merge back in.
//
// An if either gets generic notes after its condition and after each arm,
// or, when the NoteIf hooks are set, the pass takes over the split/merge
// bookkeeping itself.
type LinearWalker struct {
	PreVisit  func(currp *Expression)
	Visit     func(currp *Expression)
	PostVisit func(currp *Expression)

	NoteNonLinear func(currp *Expression)

	NoteIfCondition func(currp *Expression)
	NoteIfTrue      func(currp *Expression)
	NoteIfFalse     func(currp *Expression)
}

// Walk traverses the tree rooted in the given slot.
func (w *LinearWalker) Walk(rootp *Expression) {
	if w.PreVisit != nil {
		w.PreVisit(rootp)
	}
	switch n := (*rootp).(type) {
	case *Block:
		for i := range n.List {
			w.Walk(&n.List[i])
		}
		if n.Name != "" {
			w.note(rootp)
		}
	case *Loop:
		w.note(rootp)
		w.Walk(&n.Body)
	case *If:
		w.Walk(&n.Condition)
		if w.NoteIfCondition != nil {
			w.NoteIfCondition(rootp)
		} else {
			w.note(rootp)
		}
		w.Walk(&n.IfTrue)
		if w.NoteIfTrue != nil {
			w.NoteIfTrue(rootp)
		} else {
			w.note(rootp)
		}
		if n.IfFalse != nil {
			w.Walk(&n.IfFalse)
			if w.NoteIfFalse != nil {
				w.NoteIfFalse(rootp)
			} else {
				w.note(rootp)
			}
		}
	case *Break:
		if n.Value != nil {
			w.Walk(&n.Value)
		}
		if n.Condition != nil {
			w.Walk(&n.Condition)
		}
		w.note(rootp)
	case *Switch:
		if n.Value != nil {
			w.Walk(&n.Value)
		}
		w.Walk(&n.Condition)
		w.note(rootp)
	case *Return:
		if n.Value != nil {
			w.Walk(&n.Value)
		}
		w.note(rootp)
	case *Unreachable:
		w.note(rootp)
	default:
		EachChild(*rootp, w.Walk)
	}
	if w.Visit != nil {
		w.Visit(rootp)
	}
	if w.PostVisit != nil {
		w.PostVisit(rootp)
	}
}

func (w *LinearWalker) note(currp *Expression) {
	if w.NoteNonLinear != nil {
		w.NoteNonLinear(currp)
	}
}

// WalkExpressions calls fn for every node in the tree, post-order, without
// exposing slots.
func WalkExpressions(root Expression, fn func(e Expression)) {
	EachChild(root, func(slot *Expression) {
		WalkExpressions(*slot, fn)
	})
	fn(root)
}
