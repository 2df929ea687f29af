package wasm

// BitSet is a compact set of local indices using a bitmap.
// Optimized for small dense sets.
type BitSet struct {
	bits []uint64
}

// Set adds val to the set.
func (b *BitSet) Set(val Index) {
	word := int(val / 64)
	if word >= len(b.bits) {
		b.grow(word + 1)
	}
	b.bits[word] |= 1 << (val % 64)
}

// Has returns true if val is in the set.
func (b *BitSet) Has(val Index) bool {
	word := int(val / 64)
	if word >= len(b.bits) {
		return false
	}
	return b.bits[word]&(1<<(val%64)) != 0
}

// Union adds all elements from other into this set.
func (b *BitSet) Union(other *BitSet) {
	if len(other.bits) > len(b.bits) {
		b.grow(len(other.bits))
	}
	for i := range other.bits {
		b.bits[i] |= other.bits[i]
	}
}

// Intersects reports whether the two sets share any element.
func (b *BitSet) Intersects(other *BitSet) bool {
	n := len(b.bits)
	if len(other.bits) < n {
		n = len(other.bits)
	}
	for i := 0; i < n; i++ {
		if b.bits[i]&other.bits[i] != 0 {
			return true
		}
	}
	return false
}

// Empty reports whether the set has no elements.
func (b *BitSet) Empty() bool {
	for _, word := range b.bits {
		if word != 0 {
			return false
		}
	}
	return true
}

func (b *BitSet) grow(n int) {
	newBits := make([]uint64, n)
	copy(newBits, b.bits)
	b.bits = newBits
}

// Effects summarizes the observable side effects of a sub-tree: whether it
// branches, calls, touches memory or globals, which locals it reads and
// writes, and whether it may trap.
type Effects struct {
	Branches      bool
	Calls         bool
	ReadsMemory   bool
	WritesMemory  bool
	ReadsGlobals  bool
	WritesGlobals bool
	MayTrap       bool

	LocalsRead    BitSet
	LocalsWritten BitSet
}

// AnalyzeEffects summarizes a whole sub-tree.
func AnalyzeEffects(e Expression) *Effects {
	fx := &Effects{}
	fx.Analyze(e)
	return fx
}

// Analyze accumulates the effects of the whole sub-tree rooted at e.
func (fx *Effects) Analyze(e Expression) {
	WalkExpressions(e, fx.visit)
}

// AnalyzeShallow accumulates only the node's own effect, ignoring children.
func (fx *Effects) AnalyzeShallow(e Expression) {
	fx.visit(e)
}

func (fx *Effects) visit(e Expression) {
	switch n := e.(type) {
	case *Break, *Switch, *Return, *Unreachable:
		fx.Branches = true
	case *Call, *CallImport:
		fx.Calls = true
	case *CallIndirect:
		fx.Calls = true
		fx.MayTrap = true
	case *GetLocal:
		fx.LocalsRead.Set(n.Index)
	case *SetLocal:
		fx.LocalsWritten.Set(n.Index)
	case *GetGlobal:
		fx.ReadsGlobals = true
	case *SetGlobal:
		fx.WritesGlobals = true
	case *Load:
		fx.ReadsMemory = true
		fx.MayTrap = true
	case *Store:
		fx.WritesMemory = true
		fx.MayTrap = true
	case *Host:
		if n.Op == GrowMemory {
			fx.WritesMemory = true
		}
		fx.ReadsMemory = true
	case *Unary:
		switch n.Op {
		case TruncSFloat32, TruncUFloat32, TruncSFloat64, TruncUFloat64:
			fx.MayTrap = true
		}
	case *Binary:
		switch n.Op {
		case DivS, DivU, RemS, RemU:
			fx.MayTrap = true
		}
	}
}

func (fx *Effects) accessesMemory() bool {
	return fx.ReadsMemory || fx.WritesMemory
}

func (fx *Effects) accessesGlobals() bool {
	return fx.ReadsGlobals || fx.WritesGlobals
}

// HasSideEffects reports whether the sub-tree does anything observable
// beyond producing a value.
func (fx *Effects) HasSideEffects() bool {
	return fx.Branches || fx.Calls || fx.WritesMemory || fx.WritesGlobals ||
		fx.MayTrap || !fx.LocalsWritten.Empty()
}

// Invalidates reports whether executing fx would change the observable
// behavior of other if the two were swapped in execution order. Branching
// contaminates everything; otherwise the usual hazards apply: a write on
// one side against any access on the other (memory, globals, locals), a
// call against any memory or global access, and a trap reordered against
// a call.
func (fx *Effects) Invalidates(other *Effects) bool {
	if fx.Branches || other.Branches {
		return true
	}
	if (fx.WritesMemory || fx.Calls) && other.accessesMemory() {
		return true
	}
	if fx.accessesMemory() && (other.WritesMemory || other.Calls) {
		return true
	}
	if (fx.WritesGlobals || fx.Calls) && other.accessesGlobals() {
		return true
	}
	if fx.accessesGlobals() && (other.WritesGlobals || other.Calls) {
		return true
	}
	if fx.LocalsWritten.Intersects(&other.LocalsWritten) ||
		fx.LocalsWritten.Intersects(&other.LocalsRead) ||
		fx.LocalsRead.Intersects(&other.LocalsWritten) {
		return true
	}
	if (fx.MayTrap && other.Calls) || (fx.Calls && other.MayTrap) {
		return true
	}
	return false
}

// MergeIn unions other's effects into fx.
func (fx *Effects) MergeIn(other *Effects) {
	fx.Branches = fx.Branches || other.Branches
	fx.Calls = fx.Calls || other.Calls
	fx.ReadsMemory = fx.ReadsMemory || other.ReadsMemory
	fx.WritesMemory = fx.WritesMemory || other.WritesMemory
	fx.ReadsGlobals = fx.ReadsGlobals || other.ReadsGlobals
	fx.WritesGlobals = fx.WritesGlobals || other.WritesGlobals
	fx.MayTrap = fx.MayTrap || other.MayTrap
	fx.LocalsRead.Union(&other.LocalsRead)
	fx.LocalsWritten.Union(&other.LocalsWritten)
}
