package passes

import (
	"sort"

	"github.com/zenhumany/binaryen/wasm"
)

// Locals-related optimizations.
//
// This "sinks" sets of locals, pushing them to the next get of the local
// where possible, and removing the set if no gets remain. We also note
// where sets coalesce: if all exits of a block set the same local, the
// block can return the value instead, replacing several sets with one
// that consumes the block's return value. Further cycles can then sink
// that set as well.
//
// Control-flow splits are tracked with fragments: a rational in [0, 1]
// recording what share of the paths reaching this point still hold the
// same sinkable candidate. An if-split halves both sides, a merge sums
// the surviving halves; only a whole fragment may actually sink.

type fragment struct {
	top    uint32
	bottom uint32
}

func wholeFragment() fragment {
	return fragment{top: 1, bottom: 1}
}

func (f *fragment) add(other fragment) {
	if f.bottom == other.bottom {
		f.top += other.top
	} else {
		f.top = f.top*other.bottom + other.top*f.bottom
		f.bottom = f.bottom * other.bottom
	}
	// normalize in the common case of merging back to one
	if f.top == f.bottom {
		f.top, f.bottom = 1, 1
	}
}

func (f *fragment) split(factor uint32) {
	f.bottom *= factor
}

func (f fragment) one() bool {
	return f.top == f.bottom
}

// sinkableInfo describes a set we could sink: the slot it sits in, the
// effects of its whole subtree, and its surviving control-flow fragment.
type sinkableInfo struct {
	item    *wasm.Expression
	effects *wasm.Effects
	frag    fragment
}

func newSinkableInfo(item *wasm.Expression) *sinkableInfo {
	return &sinkableInfo{
		item:    item,
		effects: wasm.AnalyzeEffects(*item),
		frag:    wholeFragment(),
	}
}

// sinkables maps a local index to its pending sinkable in the current
// linear trace.
type sinkables map[wasm.Index]*sinkableInfo

func (s sinkables) split(factor uint32) {
	for _, info := range s {
		info.frag.split(factor)
	}
}

func (s sinkables) clone() sinkables {
	c := make(sinkables, len(s))
	for index, info := range s {
		copied := *info
		c[index] = &copied
	}
	return c
}

// merge keeps only entries present in both traces with the same site,
// summing their fragments.
func (s sinkables) merge(other sinkables) {
	for index, info := range other {
		if mine, ok := s[index]; ok && mine.item != info.item {
			delete(s, index)
		}
	}
	for index, mine := range s {
		if theirs, ok := other[index]; ok {
			mine.frag.add(theirs.frag)
		} else {
			delete(s, index)
		}
	}
}

func (s sinkables) sortedIndices() []wasm.Index {
	indices := make([]wasm.Index, 0, len(s))
	for index := range s {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// blockBreak records one exit from a block: the break and the sinkables
// alive when it was taken.
type blockBreak struct {
	br        *wasm.Break
	sinkables sinkables
}

// SimplifyLocals sinks assignments forward, promotes block and if return
// values, and sweeps dead sets.
type SimplifyLocals struct {
	module   *wasm.Module
	function *wasm.Function
	builder  *wasm.Builder

	sinkables           sinkables
	blockBreaks         map[string][]blockBreak
	unoptimizableBlocks map[string]bool
	ifStack             []sinkables
	exprStack           []wasm.Expression

	blocksToEnlarge []*wasm.Block
	ifsToEnlarge    []*wasm.If

	anotherCycle bool
}

// NewSimplifyLocals creates the pass.
func NewSimplifyLocals() *SimplifyLocals {
	return &SimplifyLocals{}
}

func (p *SimplifyLocals) Name() string { return "simplify-locals" }

// Create returns a fresh instance for a worker.
func (p *SimplifyLocals) Create() FunctionPass { return NewSimplifyLocals() }

// RunOnFunction optimizes one function. Multiple cycles may be required:
// in x = load; y = store; use(x, y) the load cannot cross the store, but y
// can be sunk, after which so can x.
func (p *SimplifyLocals) RunOnFunction(m *wasm.Module, f *wasm.Function) {
	p.module = m
	p.function = f
	p.builder = wasm.NewBuilder(m)

	walker := &wasm.LinearWalker{
		PreVisit:        p.visitPre,
		Visit:           p.visit,
		PostVisit:       p.visitPost,
		NoteNonLinear:   p.noteNonLinear,
		NoteIfCondition: p.noteIfCondition,
		NoteIfTrue:      p.noteIfTrue,
		NoteIfFalse:     p.noteIfFalse,
	}

	for {
		p.anotherCycle = false
		p.sinkables = make(sinkables)
		p.blockBreaks = make(map[string][]blockBreak)
		p.unoptimizableBlocks = make(map[string]bool)
		p.ifStack = p.ifStack[:0]
		p.exprStack = p.exprStack[:0]

		walker.Walk(&f.Body)

		// enlarge blocks and ifs that were marked, for the next round;
		// growing them mid-walk would invalidate the sinkable slots
		if len(p.blocksToEnlarge) > 0 {
			for _, block := range p.blocksToEnlarge {
				block.List = append(block.List, p.builder.MakeNop())
			}
			p.blocksToEnlarge = p.blocksToEnlarge[:0]
			p.anotherCycle = true
		}
		if len(p.ifsToEnlarge) > 0 {
			for _, iff := range p.ifsToEnlarge {
				ifTrue := p.builder.Blockify(iff.IfTrue)
				iff.IfTrue = ifTrue
				if len(ifTrue.List) == 0 || ifTrue.List[len(ifTrue.List)-1].Kind() != wasm.NopKind {
					ifTrue.List = append(ifTrue.List, p.builder.MakeNop())
				}
				ifFalse := p.builder.Blockify(iff.IfFalse)
				iff.IfFalse = ifFalse
				if len(ifFalse.List) == 0 || ifFalse.List[len(ifFalse.List)-1].Kind() != wasm.NopKind {
					ifFalse.List = append(ifFalse.List, p.builder.MakeNop())
				}
			}
			p.ifsToEnlarge = p.ifsToEnlarge[:0]
			p.anotherCycle = true
		}

		if !p.anotherCycle {
			break
		}
	}

	p.removeDeadSets(f)
}

// removeDeadSets replaces every set of a local with no remaining gets by
// its value, preserving side effects.
func (p *SimplifyLocals) removeDeadSets(f *wasm.Function) {
	counter := wasm.NewGetLocalCounter(f, f.Body)
	remover := &wasm.PostWalker{
		Visit: func(currp *wasm.Expression) {
			if set, ok := (*currp).(*wasm.SetLocal); ok {
				if counter.NumGets[set.Index] == 0 {
					*currp = set.Value
				}
			}
		},
	}
	remover.Walk(&f.Body)
}

func (p *SimplifyLocals) visitPre(currp *wasm.Expression) {
	p.exprStack = append(p.exprStack, *currp)
}

func (p *SimplifyLocals) visit(currp *wasm.Expression) {
	switch (*currp).(type) {
	case *wasm.Block:
		p.visitBlock(currp)
	case *wasm.GetLocal:
		p.visitGetLocal(currp)
	}
}

func (p *SimplifyLocals) visitPost(currp *wasm.Expression) {
	// the visit may have replaced the node; keep the stack current
	p.exprStack[len(p.exprStack)-1] = *currp

	set, isSet := (*currp).(*wasm.SetLocal)

	if isSet {
		// a second set while the first is still whole means the first
		// store is dead; leave just its value
		if info, ok := p.sinkables[set.Index]; ok && info.frag.one() {
			*info.item = (*info.item).(*wasm.SetLocal).Value
			delete(p.sinkables, set.Index)
			p.anotherCycle = true
		}
	}

	fx := &wasm.Effects{}
	fx.AnalyzeShallow(*currp)
	p.checkInvalidations(fx)

	if isSet && !wasm.IsResultUsed(p.exprStack, p.function) {
		p.sinkables[set.Index] = newSinkableInfo(currp)
	}

	p.exprStack = p.exprStack[:len(p.exprStack)-1]
}

func (p *SimplifyLocals) checkInvalidations(fx *wasm.Effects) {
	var invalidated []wasm.Index
	for index, info := range p.sinkables {
		if fx.Invalidates(info.effects) {
			invalidated = append(invalidated, index)
		}
	}
	for _, index := range invalidated {
		delete(p.sinkables, index)
	}
}

func (p *SimplifyLocals) noteNonLinear(currp *wasm.Expression) {
	switch curr := (*currp).(type) {
	case *wasm.Break:
		if curr.Value != nil {
			// a value means the block already has a return value
			p.unoptimizableBlocks[curr.Name] = true
		} else {
			p.blockBreaks[curr.Name] = append(p.blockBreaks[curr.Name],
				blockBreak{br: curr, sinkables: p.sinkables})
		}
	case *wasm.Block:
		return // handled in visitBlock
	case *wasm.Switch:
		for _, target := range curr.Targets {
			p.unoptimizableBlocks[target] = true
		}
		p.unoptimizableBlocks[curr.Default] = true
	}
	p.sinkables = make(sinkables)
}

func (p *SimplifyLocals) noteIfCondition(currp *wasm.Expression) {
	// control flow branches in two; leave one half here and stack the other
	p.sinkables.split(2)
	p.ifStack = append(p.ifStack, p.sinkables.clone())
}

func (p *SimplifyLocals) noteIfTrue(currp *wasm.Expression) {
	// the stack holds the starting state for the ifFalse
	forIfFalse := p.ifStack[len(p.ifStack)-1]
	p.ifStack = p.ifStack[:len(p.ifStack)-1]
	if (*currp).(*wasm.If).IfFalse != nil {
		// save the ifTrue data, and start the ifFalse from the split state
		p.ifStack = append(p.ifStack, p.sinkables)
		p.sinkables = forIfFalse
	} else {
		// no ifFalse, as if it were empty with no changes; merge
		p.sinkables.merge(forIfFalse)
	}
}

func (p *SimplifyLocals) noteIfFalse(currp *wasm.Expression) {
	// both sides are done; try to merge the arms into a return value
	iff := (*currp).(*wasm.If)
	ifTrue := p.ifStack[len(p.ifStack)-1]
	p.optimizeIfReturn(iff, currp, ifTrue)
	p.sinkables.merge(ifTrue)
	p.ifStack = p.ifStack[:len(p.ifStack)-1]
}

func (p *SimplifyLocals) visitGetLocal(currp *wasm.Expression) {
	curr := (*currp).(*wasm.GetLocal)
	info, ok := p.sinkables[curr.Index]
	if !ok || !info.frag.one() {
		return
	}
	// sink the set here, and nop its original site
	set := (*info.item).(*wasm.SetLocal)
	set.IsTee = true
	set.Finalize()
	*currp = set
	*info.item = p.builder.MakeNop()
	delete(p.sinkables, curr.Index)
	p.anotherCycle = true
}

func (p *SimplifyLocals) visitBlock(currp *wasm.Expression) {
	curr := (*currp).(*wasm.Block)
	hasBreaks := curr.Name != "" && len(p.blockBreaks[curr.Name]) > 0

	p.optimizeBlockReturn(curr, currp) // can modify blockBreaks

	if curr.Name != "" {
		if p.unoptimizableBlocks[curr.Name] {
			p.sinkables = make(sinkables)
			delete(p.unoptimizableBlocks, curr.Name)
		}
		if hasBreaks {
			// more than one path to here, so nonlinear
			p.sinkables = make(sinkables)
			delete(p.blockBreaks, curr.Name)
		}
	}
}

// optimizeBlockReturn looks for a local set on the fallthrough and on
// every break exiting the block; such a block can return the value and be
// wrapped in a single set.
func (p *SimplifyLocals) optimizeBlockReturn(block *wasm.Block, currp *wasm.Expression) {
	if block.Name == "" || p.unoptimizableBlocks[block.Name] {
		return
	}
	breaks := p.blockBreaks[block.Name]
	delete(p.blockBreaks, block.Name)
	if len(breaks) == 0 {
		return // block has no branches
	}
	// find a set present, whole, in the fallthrough and in every break
	found := false
	var sharedIndex wasm.Index
	for _, index := range p.sinkables.sortedIndices() {
		if !p.sinkables[index].frag.one() {
			continue
		}
		inAll := true
		for i := range breaks {
			info, ok := breaks[i].sinkables[index]
			if !ok || !info.frag.one() {
				inAll = false
				break
			}
		}
		if inAll {
			sharedIndex = index
			found = true
			break
		}
	}
	if !found {
		return
	}
	if len(block.List) == 0 || block.List[len(block.List)-1].Kind() != wasm.NopKind {
		// we need a slot at the end of the block for the value; growing the
		// block now would invalidate sinkable slots, so queue it for the
		// next cycle
		p.blocksToEnlarge = append(p.blocksToEnlarge, block)
		return
	}
	// move the fallthrough set's value into return position
	blockSetSlot := p.sinkables[sharedIndex].item
	value := (*blockSetSlot).(*wasm.SetLocal).Value
	block.List[len(block.List)-1] = value
	block.Typ = value.Type()
	*blockSetSlot = p.builder.MakeNop()
	// move each break's set value onto the break itself
	for i := range breaks {
		breakSetSlot := breaks[i].sinkables[sharedIndex].item
		breaks[i].br.Value = (*breakSetSlot).(*wasm.SetLocal).Value
		*breakSetSlot = p.builder.MakeNop()
	}
	// finally, a single set consuming the block
	*currp = p.builder.MakeSetLocal(sharedIndex, block)
	p.sinkables = make(sinkables)
	p.anotherCycle = true
}

// optimizeIfReturn merges sets of the same local from both arms of an
// if-else into a single set consuming the if's return value.
func (p *SimplifyLocals) optimizeIfReturn(iff *wasm.If, currp *wasm.Expression, ifTrue sinkables) {
	// if the if's own result is used, it already returns something
	if wasm.IsResultUsed(p.exprStack, p.function) {
		return
	}
	ifFalse := p.sinkables
	found := false
	var sharedIndex wasm.Index
	for _, index := range ifTrue.sortedIndices() {
		if !ifTrue[index].frag.one() {
			continue
		}
		if info, ok := ifFalse[index]; ok && info.frag.one() {
			sharedIndex = index
			found = true
			break
		}
	}
	if !found {
		return
	}
	// both arms must end in a nop slot to receive the values; if not,
	// queue an enlargement and retry next cycle
	ifTrueBlock, okTrue := iff.IfTrue.(*wasm.Block)
	ifFalseBlock, okFalse := iff.IfFalse.(*wasm.Block)
	if !okTrue || len(ifTrueBlock.List) == 0 || ifTrueBlock.List[len(ifTrueBlock.List)-1].Kind() != wasm.NopKind ||
		!okFalse || len(ifFalseBlock.List) == 0 || ifFalseBlock.List[len(ifFalseBlock.List)-1].Kind() != wasm.NopKind {
		p.ifsToEnlarge = append(p.ifsToEnlarge, iff)
		return
	}
	ifTrueSlot := ifTrue[sharedIndex].item
	ifTrueBlock.List[len(ifTrueBlock.List)-1] = (*ifTrueSlot).(*wasm.SetLocal).Value
	*ifTrueSlot = p.builder.MakeNop()
	ifTrueBlock.Finalize()
	ifFalseSlot := ifFalse[sharedIndex].item
	ifFalseBlock.List[len(ifFalseBlock.List)-1] = (*ifFalseSlot).(*wasm.SetLocal).Value
	*ifFalseSlot = p.builder.MakeNop()
	ifFalseBlock.Finalize()
	iff.Finalize()
	*currp = p.builder.MakeSetLocal(sharedIndex, iff)
	p.anotherCycle = true
}

func init() {
	Register("simplify-locals", func() Pass { return NewSimplifyLocals() })
}
