package passes

import (
	"bytes"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zlib"

	"github.com/zenhumany/binaryen/wasm"
)

// Sorts functions to reduce the size and improve the compressibility of
// the output binary, in decreasing importance:
//
//   - Functions with many uses get low indexes, so the LEB with the index
//     in each call to them is small.
//   - All things considered, larger functions go first; similar functions
//     tend to have similar sizes, and may compress well close together.
//   - Within the index ranges the previous steps fixed, similar contents
//     are placed adjacently, by a greedy nearest-neighbor sort.

// bitsPerLEBByte is how many index bits one LEB byte carries; reordering
// within a 2^(7k) boundary never changes a call site's encoded width.
const bitsPerLEBByte = 7

// DistanceFunc measures how different two encoded function bodies are;
// lower means more similar.
type DistanceFunc func(a, b []byte) int

// ZlibDistance compares mutual compressibility: two byte streams are more
// similar when compressing their concatenation beats compressing them
// separately.
func ZlibDistance(a, b []byte) int {
	ca := compressedSize(a)
	cb := compressedSize(b)
	combined := make([]byte, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	cc := compressedSize(combined)
	sum := ca + cb
	if sum == 0 {
		return 0
	}
	return (100 * (cc - sum)) / sum
}

func compressedSize(data []byte) int {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Len()
}

// hashWindow is the substring length HashDistance samples.
const hashWindow = 8

// HashDistance counts the windows of b whose hash never occurs in a; a
// cheap approximation of shared-substring similarity.
func HashDistance(a, b []byte) int {
	seen := make(map[uint32]struct{})
	for i := 0; i+hashWindow <= len(a); i++ {
		seen[hashBytes(a[i:i+hashWindow])] = struct{}{}
	}
	misses := 0
	for i := 0; i+hashWindow <= len(b); i++ {
		if _, ok := seen[hashBytes(b[i:i+hashWindow])]; !ok {
			misses++
		}
	}
	return misses
}

func hashBytes(data []byte) uint32 {
	var h uint32 = 5381
	for _, b := range data {
		h = ((h << 5) + h) ^ uint32(b)
	}
	return h
}

// ReorderFunctions reorders the module's function list by use count, then
// by encoded size within LEB-width boundaries, then by content similarity
// within each chunk.
type ReorderFunctions struct {
	// Distance measures body similarity in the final stage;
	// ZlibDistance when nil.
	Distance DistanceFunc

	// Workers bounds the parallel use-count walk; NumCPU when zero.
	Workers int
}

// NewReorderFunctions creates the pass with the default distance.
func NewReorderFunctions() *ReorderFunctions {
	return &ReorderFunctions{}
}

func (p *ReorderFunctions) Name() string { return "reorder-functions" }

// Run reorders the module.
func (p *ReorderFunctions) Run(m *wasm.Module) error {
	p.sortByUses(m)
	m.InvalidateNameCaches()

	// encode once to get the byte image of every body
	writer := wasm.NewWriter(m)
	data, err := writer.Write()
	if err != nil {
		return err
	}
	bodies := make(map[string][]byte, len(m.Functions))
	for _, entry := range writer.TOC().Functions {
		bodies[entry.Name] = data[entry.Offset : entry.Offset+entry.Size]
	}

	p.refineBySize(m, bodies)
	p.refineBySimilarity(m, bodies)
	m.InvalidateNameCaches()
	return nil
}

// sortByUses counts how often each function is referenced - calls in
// bodies, the start function, exports, and table entries - and sorts
// descending by that count. Ties keep their original order.
func (p *ReorderFunctions) sortByUses(m *wasm.Module) {
	// prepopulate with a counter per function so the parallel workers
	// only ever increment, never insert
	uses := make(map[string]*atomic.Uint32, len(m.Functions))
	for _, f := range m.Functions {
		uses[f.Name] = new(atomic.Uint32)
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobs := make(chan *wasm.Function)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				wasm.WalkExpressions(f.Body, func(e wasm.Expression) {
					if call, ok := e.(*wasm.Call); ok {
						uses[call.Target].Add(1)
					}
				})
			}
		}()
	}
	for _, f := range m.Functions {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	if m.Start != "" {
		uses[m.Start].Add(1)
	}
	for _, exp := range m.Exports {
		uses[exp.Value].Add(1)
	}
	for _, name := range m.Table {
		uses[name].Add(1)
	}

	sort.SliceStable(m.Functions, func(i, j int) bool {
		return uses[m.Functions[i].Name].Load() > uses[m.Functions[j].Name].Load()
	})
}

// refineBySize sorts by encoded body size, descending, without moving any
// function across a boundary that would change the LEB width of its call
// sites.
func (p *ReorderFunctions) refineBySize(m *wasm.Module, bodies map[string][]byte) {
	start := 0
	bits := 0
	for start < len(m.Functions) {
		bits += bitsPerLEBByte
		end := len(m.Functions)
		if bits < 31 && (1<<bits) < end {
			end = 1 << bits
		}
		chunk := m.Functions[start:end]
		sort.Slice(chunk, func(i, j int) bool {
			a, b := len(bodies[chunk[i].Name]), len(bodies[chunk[j].Name])
			if a != b {
				return a > b
			}
			return chunk[i].Name > chunk[j].Name
		})
		start = end
	}
}

// refineBySimilarity greedily places, within each chunk, the remaining
// function most similar to the one placed before it. The chunk size keeps
// call-site widths fixed and bounds the quadratic comparison; the
// previous sorts already put near-identical bodies close by.
func (p *ReorderFunctions) refineBySimilarity(m *wasm.Module, bodies map[string][]byte) {
	distance := p.Distance
	if distance == nil {
		distance = ZlibDistance
	}
	functions := m.Functions
	const chunkSize = 1 << bitsPerLEBByte
	start := 0
	last := "" // best match carries across chunks, as it should
	for start < len(functions) {
		end := start + chunkSize
		if end > len(functions) {
			end = len(functions)
		}
		for i := start; i < end; i++ {
			if last == "" {
				// the very first position; leave the first (and largest)
				// function in place
			} else {
				bestIndex := i
				bestDifference := distance(bodies[last], bodies[functions[i].Name])
				for j := i + 1; j < end; j++ {
					currDifference := distance(bodies[last], bodies[functions[j].Name])
					if currDifference < bestDifference {
						bestDifference = currDifference
						bestIndex = j
					}
				}
				functions[i], functions[bestIndex] = functions[bestIndex], functions[i]
			}
			last = functions[i].Name
		}
		start = end
	}
}

func init() {
	Register("reorder-functions", func() Pass { return NewReorderFunctions() })
}
