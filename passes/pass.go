// Package passes implements the optimizing rewriter engine: a registry of
// tree-walking passes over function bodies, and a runner that executes them
// in order, fanning function-parallel passes out over a worker pool.
package passes

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zenhumany/binaryen/errors"
	"github.com/zenhumany/binaryen/wasm"
)

// Pass is anything the runner can execute. Concrete passes implement one of
// FunctionPass or ModulePass.
type Pass interface {
	Name() string
}

// FunctionPass rewrites one function at a time and touches nothing outside
// it, so the runner may fan it out over a worker pool. Each worker operates
// on a fresh instance from Create; per-run state lives in the instance.
type FunctionPass interface {
	Pass
	Create() FunctionPass
	RunOnFunction(m *wasm.Module, f *wasm.Function)
}

// ModulePass rewrites the module as a whole and runs on the calling thread.
type ModulePass interface {
	Pass
	Run(m *wasm.Module) error
}

var registry = map[string]func() Pass{}

// Register adds a pass factory under a name. Passes register themselves in
// init; duplicate names are a programming error.
func Register(name string, factory func() Pass) {
	if _, ok := registry[name]; ok {
		panic("duplicate pass registration: " + name)
	}
	registry[name] = factory
}

// Lookup returns the factory for a registered pass, or nil.
func Lookup(name string) func() Pass {
	return registry[name]
}

// Names returns the registered pass names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner executes an ordered list of passes against a module. The pipeline
// is sequential across passes; within a function-parallel pass, per-function
// tasks run on an unordered pool of Workers goroutines.
type Runner struct {
	Workers int

	passes []Pass
	logger *zap.Logger
}

// NewRunner creates a runner with the default worker count.
func NewRunner() *Runner {
	return &Runner{
		Workers: runtime.NumCPU(),
		logger:  Logger(),
	}
}

// Add appends a registered pass by name.
func (r *Runner) Add(name string) error {
	factory := Lookup(name)
	if factory == nil {
		return errors.NotFound(errors.PhasePass, "pass", name)
	}
	r.passes = append(r.passes, factory())
	return nil
}

// AddPass appends a pass instance directly, for passes that need
// configuration beyond their defaults.
func (r *Runner) AddPass(p Pass) {
	r.passes = append(r.passes, p)
}

// Run executes the pipeline. The first failure stops it; a worker's fatal
// during a parallel pass becomes the run's result once the pool drains.
func (r *Runner) Run(m *wasm.Module) error {
	for _, p := range r.passes {
		start := time.Now()
		var err error
		switch pass := p.(type) {
		case FunctionPass:
			err = r.runFunctionParallel(m, pass)
		case ModulePass:
			err = pass.Run(m)
		default:
			err = errors.Unsupported(errors.PhasePass, "pass implements neither surface: "+p.Name())
		}
		r.logger.Debug("pass finished",
			zap.String("pass", p.Name()),
			zap.Duration("elapsed", time.Since(start)))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runFunctionParallel(m *wasm.Module, pass FunctionPass) error {
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(m.Functions) {
		workers = len(m.Functions)
	}
	if workers <= 1 {
		instance := pass.Create()
		for _, f := range m.Functions {
			if err := runOne(instance, m, f); err != nil {
				return err
			}
		}
		return nil
	}

	jobs := make(chan *wasm.Function)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			instance := pass.Create()
			for f := range jobs {
				if err := runOne(instance, m, f); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	for _, f := range m.Functions {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

// runOne executes the pass on one function, converting a pass panic into
// the run's error with the function name attached.
func runOne(pass FunctionPass, m *wasm.Module, f *wasm.Function) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*errors.Error); ok {
				if e.Function == "" {
					e.Function = f.Name
				}
				err = e
				return
			}
			err = errors.New(errors.PhasePass, errors.KindInvalidData).
				Function(f.Name).
				Detail("%s: %v", pass.Name(), r).
				Build()
		}
	}()
	pass.RunOnFunction(m, f)
	return nil
}
