package wasm

// IsResultUsed decides whether the value of the expression at the top of
// stack is consumed by its surroundings. The stack holds the ancestors of
// the expression, outermost first, with the expression itself last.
//
// Only blocks, ifs, and loops can discard a child's value: a block forwards
// only its last element, an if forwards its arms (its condition is consumed
// by the if itself), a loop forwards its body. Every other parent consumes
// all of its children. At the function root the value is used iff the
// function returns one.
func IsResultUsed(stack []Expression, fn *Function) bool {
	for i := len(stack) - 2; i >= 0; i-- {
		curr := stack[i]
		above := stack[i+1]
		switch p := curr.(type) {
		case *Block:
			if len(p.List) == 0 || p.List[len(p.List)-1] != above {
				return false
			}
			// the last element; the block's value is ours, keep climbing
		case *If:
			if above == p.Condition {
				return true
			}
			// an arm; used iff the if is used
		case *Loop:
			// the body; used iff the loop is used
		default:
			return true
		}
	}
	return fn.Result != None
}
