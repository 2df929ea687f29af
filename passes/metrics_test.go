package passes

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenhumany/binaryen/wasm"
)

func TestMetricsCountsAndDiff(t *testing.T) {
	m := &wasm.Module{}
	b := wasm.NewBuilder(m)
	f := &wasm.Function{Name: "f", Result: wasm.None}
	f.Body = b.MakeBlock(
		b.MakeNop(),
		b.MakeNop(),
		b.MakeSetLocal(0, i32Const(1)),
	)
	f.Vars = []wasm.NameType{{Name: "var$0", Type: wasm.I32}}
	m.AddFunction(f)

	var out bytes.Buffer
	p := &Metrics{Out: &out}
	require.NoError(t, p.Run(m))

	require.Contains(t, out.String(), "Counts")
	require.Contains(t, out.String(), "nop")
	require.Equal(t, 2, p.Latest["nop"])
	require.Equal(t, 1, p.Latest["block"])
	require.Equal(t, 1, p.Latest["set_local"])
	require.Equal(t, 1, p.Latest["const"])
	require.Equal(t, 5, sumCounts(p.Latest))

	// a second run fed the previous snapshot reports the delta
	block := f.Body.(*wasm.Block)
	block.List = append(block.List, b.MakeNop())

	var out2 bytes.Buffer
	p2 := &Metrics{Out: &out2, Previous: p.Latest}
	require.NoError(t, p2.Run(m))
	require.Equal(t, 3, p2.Latest["nop"])
	require.True(t, strings.Contains(out2.String(), "+1"), "diff line missing: %q", out2.String())
}

func sumCounts(s Snapshot) int {
	total := 0
	for _, v := range s {
		total += v
	}
	return total
}
