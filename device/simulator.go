package device

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/spvlower/spirv"
)

// Simulator is a software Runtime. It interprets the compute subset of
// SPIR-V that spirv.Backend emits, running every lane of the dispatch on its
// own goroutine against shared word-addressed buffers.
type Simulator struct {
	logger      *zap.Logger
	concurrency int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger used for run diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency bounds the number of lanes executing at once.
func WithConcurrency(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewSimulator creates a simulator.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		logger:      zap.NewNop(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Runtime = (*Simulator)(nil)

// Run executes program over resources. Every resource is copied back into
// the result, whether or not the kernel wrote it.
func (s *Simulator) Run(ctx context.Context, program Program, resources ResourceTable, dispatch DispatchSize) (*Result, error) {
	runID := uuid.New()
	log := s.logger.With(zap.Stringer("run", runID), zap.String("entry", program.EntryPoint))

	if err := resources.Validate(); err != nil {
		return nil, &CallError{Call: "validate resources", Err: err}
	}
	if dispatch.Count() == 0 {
		return nil, &CallError{Call: "validate dispatch",
			Err: fmt.Errorf("dispatch size %dx%dx%d has an empty dimension", dispatch.X, dispatch.Y, dispatch.Z)}
	}

	mod, entry, err := createShaderModule(program)
	if err != nil {
		return nil, &CallError{Call: "create shader module", Err: err}
	}

	mems := make(map[BindingKey]*memory, len(resources))
	for _, key := range resources.Keys() {
		mems[key] = newMemory(key, resources[key])
	}

	template, err := s.bindResources(log, mod, mems)
	if err != nil {
		return nil, &CallError{Call: "bind resources", Err: err}
	}

	start := time.Now()
	if err := s.dispatch(ctx, mod, entry, template, dispatch); err != nil {
		return nil, &CallError{Call: "dispatch", Err: err}
	}
	elapsed := time.Since(start)

	out := make(ResourceTable, len(resources))
	for key, mem := range mems {
		out[key] = &Buffer{Data: mem.bytes(), StorageClass: resources[key].StorageClass}
	}
	log.Debug("run finished",
		zap.Uint64("workgroups", dispatch.Count()),
		zap.Duration("duration", elapsed))
	return &Result{RunID: runID, Buffers: out, Duration: elapsed}, nil
}

func createShaderModule(program Program) (*module, *entryPoint, error) {
	if len(program.Binary) == 0 {
		return nil, nil, errors.New("expected a non-empty binary")
	}
	bin, err := spirv.Parse(program.Binary)
	if err != nil {
		return nil, nil, err
	}
	mod, err := decodeModule(bin)
	if err != nil {
		return nil, nil, err
	}
	entry, ok := mod.entries[program.EntryPoint]
	if !ok {
		return nil, nil, fmt.Errorf("no compute entry point named %q", program.EntryPoint)
	}
	return mod, entry, nil
}

// bindResources returns the initial value table shared by every lane:
// constants and one pointer per module-scope variable.
func (s *Simulator) bindResources(log *zap.Logger, mod *module, mems map[BindingKey]*memory) ([]value, error) {
	vals := make([]value, mod.bound)
	for id, c := range mod.constants {
		vals[id] = c
	}
	for id, v := range mod.variables {
		pt, err := mod.typeOf(v.typ)
		if err != nil {
			return nil, err
		}
		if pt.kind != kindPointer {
			return nil, fmt.Errorf("variable %%%d does not have a pointer type", id)
		}
		if v.builtin {
			vals[id] = value{ptr: &pointer{typ: pt.elem}}
			continue
		}
		if !v.bound {
			return nil, fmt.Errorf("variable %%%d has no descriptor binding", id)
		}
		mem, ok := mems[v.binding]
		if !ok {
			return nil, fmt.Errorf("no resource bound at %s", v.binding)
		}
		want, err := storageClassFor(v.storage)
		if err != nil {
			return nil, fmt.Errorf("variable %%%d: %w", id, err)
		}
		if got := storageOf(mem); got != want {
			return nil, fmt.Errorf("resource %s is %s but the kernel declares %s", v.binding, got, want)
		}
		kind, _ := DescriptorTypeOf(want)
		log.Debug("bound resource",
			zap.Stringer("binding", v.binding),
			zap.Stringer("descriptor", kind),
			zap.Int("bytes", mem.size))
		vals[id] = value{ptr: &pointer{mem: mem, typ: pt.elem}}
	}
	return vals, nil
}

func storageClassFor(c spirv.StorageClass) (StorageClass, error) {
	switch c {
	case spirv.StorageClassStorageBuffer:
		return StorageBuffer, nil
	case spirv.StorageClassUniform:
		return Uniform, nil
	}
	return 0, fmt.Errorf("unsupported storage class %d", c)
}

func storageOf(m *memory) StorageClass {
	if m.readOnly {
		return Uniform
	}
	return StorageBuffer
}

// dispatch runs one invocation per lane. Lanes start in x-major global
// index order but may interleave freely; the first failing lane cancels
// the rest.
func (s *Simulator) dispatch(ctx context.Context, mod *module, entry *entryPoint, template []value, size DispatchSize) error {
	body, ok := mod.functions[entry.function]
	if !ok {
		return fmt.Errorf("entry function %%%d is not defined", entry.function)
	}
	local := entry.localSize
	width := uint64(size.X) * uint64(local[0])
	height := uint64(size.Y) * uint64(local[1])
	lanes := width * height * uint64(size.Z) * uint64(local[2])

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for n := range lanes {
		if gctx.Err() != nil {
			return waitLanes(ctx, g)
		}
		id := [3]uint32{uint32(n % width), uint32(n / width % height), uint32(n / (width * height))}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inv := &invocation{m: mod, vals: make([]value, len(template)), globalID: id}
			copy(inv.vals, template)
			if err := inv.run(body); err != nil {
				return fmt.Errorf("lane (%d, %d, %d): %w", id[0], id[1], id[2], err)
			}
			return nil
		})
	}
	return g.Wait()
}

// waitLanes drains the group after cancellation, preferring a lane's error
// over the caller's.
func waitLanes(ctx context.Context, g *errgroup.Group) error {
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
