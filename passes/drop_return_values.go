package passes

import (
	"github.com/zenhumany/binaryen/wasm"
)

// Stops using the return values of nodes whose context does not want them.
// This converts a module from before drop and tee existed into one with
// explicit drops and demoted sets.

// DropReturnValues wraps every concretely-typed expression whose result is
// unused in an explicit drop, demotes tees with unused results, and gives
// stores the none type, spilling through a helper local where an ancestor
// still consumes the stored value.
type DropReturnValues struct {
	module   *wasm.Module
	function *wasm.Function
	builder  *wasm.Builder

	exprStack []wasm.Expression
}

// NewDropReturnValues creates the pass.
func NewDropReturnValues() *DropReturnValues {
	return &DropReturnValues{}
}

func (p *DropReturnValues) Name() string { return "drop-return-values" }

// Create returns a fresh instance for a worker.
func (p *DropReturnValues) Create() FunctionPass { return NewDropReturnValues() }

// RunOnFunction converts one function.
func (p *DropReturnValues) RunOnFunction(m *wasm.Module, f *wasm.Function) {
	p.module = m
	p.function = f
	p.builder = wasm.NewBuilder(m)
	p.exprStack = p.exprStack[:0]

	walker := &wasm.PostWalker{
		PreVisit: func(currp *wasm.Expression) {
			p.exprStack = append(p.exprStack, *currp)
		},
		Visit: p.visit,
		PostVisit: func(currp *wasm.Expression) {
			p.exprStack = p.exprStack[:len(p.exprStack)-1]
		},
	}
	walker.Walk(&f.Body)
}

func (p *DropReturnValues) maybeDrop(currp *wasm.Expression) {
	curr := *currp
	if curr.Type().Concrete() && !wasm.IsResultUsed(p.exprStack, p.function) {
		*currp = p.builder.MakeDrop(curr)
	}
}

func (p *DropReturnValues) visit(currp *wasm.Expression) {
	// changes may have occurred in the children
	p.exprStack[len(p.exprStack)-1] = *currp

	switch curr := (*currp).(type) {
	case *wasm.Block:
		curr.Finalize()
		p.maybeDrop(currp)
	case *wasm.If:
		curr.Finalize()
		p.maybeDrop(currp)
	case *wasm.Loop:
		curr.Finalize()
		p.maybeDrop(currp)
	case *wasm.Break:
		p.visitBreak(currp, curr)
	case *wasm.Call, *wasm.CallImport, *wasm.CallIndirect,
		*wasm.GetLocal, *wasm.Load, *wasm.Const,
		*wasm.Unary, *wasm.Binary, *wasm.Select, *wasm.Host:
		p.maybeDrop(currp)
	case *wasm.SetLocal:
		if curr.IsTee && !wasm.IsResultUsed(p.exprStack, p.function) {
			curr.IsTee = false
			curr.Finalize()
		}
	case *wasm.Store:
		p.visitStore(currp, curr)
	}
}

// visitBreak handles a break carrying a value into a block whose
// fallthrough value is being dropped: the block will not return a value,
// so the broken value must be dropped at the break site too.
func (p *DropReturnValues) visitBreak(currp *wasm.Expression, br *wasm.Break) {
	if br.Value == nil {
		return
	}
	check := func(i int) {
		// i indexes the targeted block or loop; if its own result is
		// unused, the carried value must go
		smallStack := p.exprStack[:i+1]
		if !wasm.IsResultUsed(smallStack, p.function) {
			// the value is first in execution order, so it can be pulled
			// out in front, but its side effects must stay
			*currp = p.builder.MakeSequence(
				p.builder.MakeDrop(br.Value),
				br,
			)
			br.Value = nil
		}
	}
	for i := len(p.exprStack) - 1; i >= 0; i-- {
		switch target := p.exprStack[i].(type) {
		case *wasm.Block:
			if target.Name == br.Name {
				check(i)
				return
			}
		case *wasm.Loop:
			if target.In == br.Name {
				return
			}
			if target.Out == br.Name {
				check(i)
				return
			}
		}
	}
}

// visitStore demotes the store to type none; if an ancestor still consumes
// the stored value it is materialized through a helper local: spill the
// value, store it, re-read it.
func (p *DropReturnValues) visitStore(currp *wasm.Expression, store *wasm.Store) {
	store.Typ = wasm.None
	if wasm.IsResultUsed(p.exprStack, p.function) {
		valueType := store.Value.Type()
		index := p.builder.AddVar(p.function, valueType)
		*currp = p.builder.MakeSequence(
			p.builder.MakeSequence(
				p.builder.MakeSetLocal(index, store.Value),
				store,
			),
			p.builder.MakeGetLocal(index, valueType),
		)
		store.Value = p.builder.MakeGetLocal(index, valueType)
	}
}

func init() {
	Register("drop-return-values", func() Pass { return NewDropReturnValues() })
}
