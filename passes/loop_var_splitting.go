package passes

import (
	"sort"

	"github.com/zenhumany/binaryen/wasm"
)

// Splits critical loop vars - phis to the head of the loop - so that later
// coalescing can be more effective. Consider
//
//	i = 0
//	loop {
//	  i2 = i + 1
//	  .. use i and i2, potentially making them conflict
//	  if (cond) { i = i2; continue }
//	}
//
// This separates getting the phi var to the top of the loop from keeping
// it alive throughout the loop. The added copy conflicts with neither of
// the other two vars, so a coalescing pass can drop whichever original is
// more valuable to remove.

// LoopVarSplitting retargets the final set on every unconditional entry to
// a loop top into a fresh helper local, and prepends a copy back into the
// original at the loop head.
type LoopVarSplitting struct {
	module   *wasm.Module
	function *wasm.Function
	builder  *wasm.Builder

	// the last set seen of each local with no get of it after, in the
	// current linear trace; a loop phi needs one on every entry
	currFinalSets map[wasm.Index]*wasm.SetLocal

	// loop entry label -> the final sets of each entry into the loop top
	loopEntries map[string][]map[wasm.Index]*wasm.SetLocal
}

// NewLoopVarSplitting creates the pass.
func NewLoopVarSplitting() *LoopVarSplitting {
	return &LoopVarSplitting{}
}

func (p *LoopVarSplitting) Name() string { return "loop-var-splitting" }

// Create returns a fresh instance for a worker.
func (p *LoopVarSplitting) Create() FunctionPass { return NewLoopVarSplitting() }

// RunOnFunction optimizes one function.
func (p *LoopVarSplitting) RunOnFunction(m *wasm.Module, f *wasm.Function) {
	p.module = m
	p.function = f
	p.builder = wasm.NewBuilder(m)
	p.currFinalSets = make(map[wasm.Index]*wasm.SetLocal)
	p.loopEntries = make(map[string][]map[wasm.Index]*wasm.SetLocal)

	walker := &wasm.LinearWalker{
		NoteNonLinear: p.noteNonLinear,
		Visit:         p.visit,
	}
	walker.Walk(&f.Body)
}

func (p *LoopVarSplitting) noteNonLinear(currp *wasm.Expression) {
	switch curr := (*currp).(type) {
	case *wasm.Break:
		if curr.Condition != nil {
			// a loop phi must arrive unconditionally
			delete(p.loopEntries, curr.Name)
		} else if entries, ok := p.loopEntries[curr.Name]; ok {
			// a continue to the loop top
			p.loopEntries[curr.Name] = append(entries, p.currFinalSets)
		}
	case *wasm.Loop:
		// the loop top; the fallthrough is the first entry
		p.loopEntries[curr.In] = append(p.loopEntries[curr.In], p.currFinalSets)
	case *wasm.Switch:
		// a switch directly to a loop top implies there is no phi there
		for _, target := range curr.Targets {
			delete(p.loopEntries, target)
		}
		delete(p.loopEntries, curr.Default)
	}
	// nonlinearity clears the current final sets
	p.currFinalSets = make(map[wasm.Index]*wasm.SetLocal)
}

func (p *LoopVarSplitting) visit(currp *wasm.Expression) {
	switch curr := (*currp).(type) {
	case *wasm.GetLocal:
		delete(p.currFinalSets, curr.Index)
	case *wasm.SetLocal:
		p.currFinalSets[curr.Index] = curr
	case *wasm.Loop:
		p.visitLoop(curr)
	}
}

// visitLoop runs at the critical point: the loop body has been traversed
// and every entry's final sets are known.
func (p *LoopVarSplitting) visitLoop(loop *wasm.Loop) {
	entries := p.loopEntries[loop.In]
	if len(entries) >= 2 {
		// find locals with a final set in every entry
		indices := make([]wasm.Index, 0, len(entries[0]))
		for index := range entries[0] {
			indices = append(indices, index)
		}
		sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
		for _, index := range indices {
			inAll := true
			for i := 1; i < len(entries); i++ {
				if _, ok := entries[i][index]; !ok {
					inAll = false
					break
				}
			}
			if !inAll {
				continue
			}
			// retarget every entry's final set to a fresh helper, and
			// copy it back into the original at the loop head
			typ := p.function.LocalType(index)
			newIndex := p.builder.AddVar(p.function, typ)
			entries[0][index].Index = newIndex
			for i := 1; i < len(entries); i++ {
				entries[i][index].Index = newIndex
			}
			loop.Body = p.builder.MakeSequence(
				p.builder.MakeSetLocal(index, p.builder.MakeGetLocal(newIndex, typ)),
				loop.Body,
			)
		}
	}
	delete(p.loopEntries, loop.In)
}

func init() {
	Register("loop-var-splitting", func() Pass { return NewLoopVarSplitting() })
}
