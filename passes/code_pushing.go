package passes

import (
	"github.com/zenhumany/binaryen/wasm"
)

// Pushes code "forward" as much as possible, potentially into a location
// behind a condition, where it might not always execute.

// CodePushing moves sets of single-first-assignment locals past
// conditional control flow, and into an if arm when all the uses live
// there.
type CodePushing struct {
	module   *wasm.Module
	function *wasm.Function

	analyzer     *wasm.LocalAnalyzer
	numGetsSoFar []wasm.Index

	anotherCycle bool
}

// NewCodePushing creates the pass.
func NewCodePushing() *CodePushing {
	return &CodePushing{analyzer: &wasm.LocalAnalyzer{}}
}

func (p *CodePushing) Name() string { return "code-pushing" }

// Create returns a fresh instance for a worker.
func (p *CodePushing) Create() FunctionPass { return NewCodePushing() }

// RunOnFunction optimizes one function. Pushing into an if arm may expose
// further opportunities inside it, so the walk repeats until settled.
func (p *CodePushing) RunOnFunction(m *wasm.Module, f *wasm.Function) {
	p.module = m
	p.function = f
	// pre-scan to find which locals are SFA, and count their gets and sets
	p.analyzer.Analyze(f)
	for {
		p.anotherCycle = false
		p.numGetsSoFar = make([]wasm.Index, f.NumLocals())
		walker := &wasm.PostWalker{Visit: p.visit}
		walker.Walk(&f.Body)
		if !p.anotherCycle {
			break
		}
	}
}

func (p *CodePushing) visit(currp *wasm.Expression) {
	switch curr := (*currp).(type) {
	case *wasm.GetLocal:
		p.numGetsSoFar[curr.Index]++
	case *wasm.Block:
		// Pushing needs at least one element to push and a push point; at
		// this point in the postorder walk all the block's own gets have
		// been counted, so an SFA local whose gets-so-far equal its total
		// gets has no users after this block.
		if len(curr.List) < 2 {
			return
		}
		pusher := newPusher(curr, p.analyzer, p.numGetsSoFar, p.module, p.function)
		if pusher.pushedIntoIf {
			// continue pushing inside the arm next cycle
			p.anotherCycle = true
		}
	}
}

// pusher implements the core logic for one block, and is then discarded.
type pusher struct {
	block        *wasm.Block
	analyzer     *wasm.LocalAnalyzer
	numGetsSoFar []wasm.Index
	module       *wasm.Module
	function     *wasm.Function
	builder      *wasm.Builder

	// pushables may be scanned more than once, so cache their effects
	pushableEffects map[*wasm.SetLocal]*wasm.Effects

	pushedIntoIf bool
}

func newPusher(block *wasm.Block, analyzer *wasm.LocalAnalyzer, numGetsSoFar []wasm.Index, m *wasm.Module, f *wasm.Function) *pusher {
	p := &pusher{
		block:           block,
		analyzer:        analyzer,
		numGetsSoFar:    numGetsSoFar,
		module:          m,
		function:        f,
		builder:         wasm.NewBuilder(m),
		pushableEffects: make(map[*wasm.SetLocal]*wasm.Effects),
	}
	// Find an optimization segment: from the first pushable thing to the
	// first point past which we want to push, then push in that range
	// before continuing forward.
	list := block.List
	nothing := -1
	firstPushable := nothing
	i := 0
	for i < len(list) {
		if firstPushable == nothing && p.isPushable(list[i]) != nil {
			firstPushable = i
			i++
			continue
		}
		if firstPushable != nothing && p.isPushPoint(list[i]) {
			// optimize this segment, and proceed from where it tells us
			i = p.optimizeSegment(firstPushable, i)
			firstPushable = nothing
			continue
		}
		i++
	}
	return p
}

func (p *pusher) isPushable(e wasm.Expression) *wasm.SetLocal {
	set, ok := e.(*wasm.SetLocal)
	if !ok {
		return nil
	}
	index := set.Index
	if p.analyzer.IsSFA(index) && p.numGetsSoFar[index] == p.analyzer.GetNumGets(index) {
		return set
	}
	return nil
}

// isPushPoint finds conditional control flow to push past: an if, or a
// conditional break, possibly wrapped in a drop.
func (p *pusher) isPushPoint(e wasm.Expression) bool {
	if drop, ok := e.(*wasm.Drop); ok {
		e = drop.Value
	}
	if _, ok := e.(*wasm.If); ok {
		return true
	}
	if br, ok := e.(*wasm.Break); ok {
		return br.Condition != nil
	}
	return false
}

func (p *pusher) effectsOf(set *wasm.SetLocal) *wasm.Effects {
	fx, ok := p.pushableEffects[set]
	if !ok {
		fx = wasm.AnalyzeEffects(set)
		p.pushableEffects[set] = fx
	}
	return fx
}

func (p *pusher) optimizeSegment(firstPushable, pushPoint int) int {
	// Starting at firstPushable, try to push code past pushPoint. Walk
	// backward from the end so later pushables move out of the way of
	// earlier ones; once everything pushable is known, rewrite in one
	// pass, keeping the order of the pushables intact.
	list := p.block.List
	pushPointExpr := list[pushPoint]

	// everything that matters if you want to be pushed past the push point;
	// ignoring the branching is the crucial point of this optimization
	cumulativeEffects := wasm.AnalyzeEffects(pushPointExpr)
	cumulativeEffects.Branches = false

	var toPush []*wasm.SetLocal

	iff, _ := pushPointExpr.(*wasm.If)
	var ifCondition *wasm.Effects
	var toPushToIfTrue, toPushToIfFalse []*wasm.SetLocal

	i := pushPoint - 1
	for {
		pushable := p.isPushable(list[i])
		if pushable != nil {
			effects := p.effectsOf(pushable)
			if cumulativeEffects.Invalidates(effects) {
				// we can't push this past the point
				stays := true
				if iff != nil && ifCondition == nil {
					// maybe we can push it into an arm instead, if the
					// condition does not interfere and all the uses live
					// in exactly one arm
					ifCondition = wasm.AnalyzeEffects(iff.Condition)
					if !ifCondition.Invalidates(effects) {
						index := pushable.Index
						ifTrueCounter := wasm.NewGetLocalCounter(p.function, iff.IfTrue)
						if ifTrueCounter.NumGets[index] == p.analyzer.GetNumGets(index) {
							toPushToIfTrue = append(toPushToIfTrue, pushable)
							list[i] = p.builder.MakeNop()
							stays = false
						} else if iff.IfFalse != nil {
							ifFalseCounter := wasm.NewGetLocalCounter(p.function, iff.IfFalse)
							if ifFalseCounter.NumGets[index] == p.analyzer.GetNumGets(index) {
								toPushToIfFalse = append(toPushToIfFalse, pushable)
								list[i] = p.builder.MakeNop()
								stays = false
							}
						}
					}
				}
				if stays {
					// it stays in place; further pushables must pass it
					cumulativeEffects.MergeIn(effects)
				}
			} else {
				// we can push this
				toPush = append(toPush, pushable)
			}
			if i == firstPushable {
				break
			}
		} else {
			// something that can't be pushed, so it might block pushing
			cumulativeEffects.Analyze(list[i])
		}
		i--
	}

	total := len(toPush)
	if total == 0 && len(toPushToIfTrue) == 0 && len(toPushToIfFalse) == 0 {
		return pushPoint + 1
	}

	// compact the segment, skipping the pushed elements
	last := total - 1
	skip := 0
	for j := firstPushable; j <= pushPoint; j++ {
		// the earliest elements are at the end of toPush
		if skip < total && list[j] == wasm.Expression(toPush[last-skip]) {
			skip++
		} else if skip > 0 {
			list[j-skip] = list[j]
		}
	}
	// write the pushed elements back, ending at the push point
	for j := 0; j < total; j++ {
		list[pushPoint-j] = toPush[j]
	}

	// wrap arms with the sets pushed into them
	if iff != nil {
		pushInto := func(toPush []*wasm.SetLocal, arm *wasm.Expression) {
			block := &wasm.Block{}
			n := len(toPush)
			block.List = make([]wasm.Expression, n+1)
			for j := 0; j < n; j++ {
				block.List[n-1-j] = toPush[j]
			}
			block.List[n] = *arm
			block.Finalize()
			*arm = block
		}
		if len(toPushToIfTrue) > 0 {
			pushInto(toPushToIfTrue, &iff.IfTrue)
			p.pushedIntoIf = true
		}
		if len(toPushToIfFalse) > 0 {
			pushInto(toPushToIfFalse, &iff.IfFalse)
			p.pushedIntoIf = true
		}
	}

	// proceed right after the push point; the pushed elements may be
	// pushed again past a later point
	return pushPoint - total + 1
}

func init() {
	Register("code-pushing", func() Pass { return NewCodePushing() })
}
