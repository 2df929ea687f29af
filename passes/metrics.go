package passes

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"

	"github.com/zenhumany/binaryen/wasm"
)

// Snapshot holds per-node-kind counts from one metrics run. Passing the
// previous run's snapshot back in makes the next report show the diff.
type Snapshot map[string]int

// Metrics prints per-kind expression counts for the module. When Previous
// is set, each count that differs from its entry in Previous carries a
// colored delta: red grew, green shrank. Kinds absent from Previous get no
// delta, and kinds absent from this run are not listed.
// The snapshot travels explicitly through the pass instance; there is no
// process-wide state.
type Metrics struct {
	Out      io.Writer
	Previous Snapshot

	// Latest is the snapshot of the most recent Run.
	Latest Snapshot
}

// NewMetrics creates the pass writing to stdout.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (p *Metrics) Name() string { return "metrics" }

// Run counts and reports.
func (p *Metrics) Run(m *wasm.Module) error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}

	counts := make(Snapshot)
	for _, f := range m.Functions {
		wasm.WalkExpressions(f.Body, func(e wasm.Expression) {
			counts[e.Kind().String()]++
		})
	}

	keys := make([]string, 0, len(counts))
	total := 0
	for key, value := range counts {
		keys = append(keys, key)
		total += value
	}
	sort.Strings(keys)

	grew := color.New(color.FgRed)
	shrank := color.New(color.FgGreen)

	fmt.Fprintln(out, "Counts")
	for _, key := range keys {
		value := counts[key]
		fmt.Fprintf(out, " %-25s: %-8d", key, value)
		if p.Previous != nil {
			if before, ok := p.Previous[key]; ok && value != before {
				delta := value - before
				c := shrank
				if delta > 0 {
					c = grew
				}
				c.Fprintf(out, "%+8d", delta)
			}
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%-26s: %-8d\n", "Total", total)

	p.Latest = counts
	return nil
}

func init() {
	Register("metrics", func() Pass { return NewMetrics() })
}
