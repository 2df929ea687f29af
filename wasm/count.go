package wasm

// GetLocalCounter counts local reads over a function body or a sub-tree.
type GetLocalCounter struct {
	NumGets []Index
}

// NewGetLocalCounter counts the gets of every local of f within ast.
func NewGetLocalCounter(f *Function, ast Expression) *GetLocalCounter {
	c := &GetLocalCounter{NumGets: make([]Index, f.NumLocals())}
	WalkExpressions(ast, func(e Expression) {
		if get, ok := e.(*GetLocal); ok {
			c.NumGets[get.Index]++
		}
	})
	return c
}

// LocalAnalyzer computes per-local properties in one post-order walk: the
// number of sets and gets, and Single First Assignment.
//
// Single First Assignment (SFA) form: the local has a single set, is not a
// parameter, and has no gets before the set in postorder. This is a much
// weaker property than SSA, but together with the implicit dominance
// properties of the structured tree it is quite useful.
type LocalAnalyzer struct {
	SFA     []bool
	NumSets []Index
	NumGets []Index
}

// NewLocalAnalyzer analyzes the given function.
func NewLocalAnalyzer(f *Function) *LocalAnalyzer {
	a := &LocalAnalyzer{}
	a.Analyze(f)
	return a
}

// Analyze recomputes the arrays for f.
func (a *LocalAnalyzer) Analyze(f *Function) {
	num := f.NumLocals()
	a.NumSets = make([]Index, num)
	a.NumGets = make([]Index, num)
	a.SFA = make([]bool, num)
	for i := f.NumParams(); i < num; i++ {
		a.SFA[i] = true
	}
	WalkExpressions(f.Body, func(e Expression) {
		switch n := e.(type) {
		case *GetLocal:
			if a.NumSets[n.Index] == 0 {
				a.SFA[n.Index] = false
			}
			a.NumGets[n.Index]++
		case *SetLocal:
			a.NumSets[n.Index]++
			if a.NumSets[n.Index] > 1 {
				a.SFA[n.Index] = false
			}
		}
	})
	for i := 0; i < num; i++ {
		if a.NumSets[i] == 0 {
			a.SFA[i] = false
		}
	}
}

// IsSFA reports whether local i is in Single First Assignment form.
func (a *LocalAnalyzer) IsSFA(i Index) bool {
	return a.SFA[i]
}

// GetNumGets returns the total number of gets of local i.
func (a *LocalAnalyzer) GetNumGets(i Index) Index {
	return a.NumGets[i]
}
