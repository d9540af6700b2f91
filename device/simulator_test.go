package device

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/lowering"
	"github.com/gogpu/spvlower/spirv"
)

func compile(t *testing.T, m *ir.Module) []byte {
	t.Helper()
	opts := spirv.DefaultOptions()
	converter := lowering.NewTypeConverter(opts, zaptest.NewLogger(t))
	patterns := lowering.PopulateStandardToSPIRVPatterns(converter, lowering.NewPatternSet())
	_, err := lowering.ApplyFullConversion(m, lowering.SPIRVTarget(), patterns, converter)
	require.NoError(t, err)

	bin, err := spirv.NewBackend(opts).Compile(m)
	require.NoError(t, err)
	return bin
}

func newSimulator(t *testing.T) *Simulator {
	return NewSimulator(WithLogger(zaptest.NewLogger(t)), WithConcurrency(16))
}

func kernel(name string, wg uint32, args ...ir.Type) (*ir.Function, *ir.Builder) {
	fn := ir.NewFunction(name, args...)
	fn.EntryPoint = true
	fn.WorkgroupSize = [3]uint32{wg, 1, 1}
	return fn, ir.NewBuilder(fn.Body)
}

func moduleOf(fn *ir.Function) *ir.Module { return &ir.Module{Functions: []*ir.Function{fn}} }

// spreadKernel copies in[i] to out[2*i], leaving the odd elements of out to
// share words with elements written by other lanes.
func spreadKernel(elem ir.Type, n int64) *ir.Module {
	fn, b := kernel("spread", 8,
		ir.MemRefType{Shape: []int64{n}, Elem: elem},
		ir.MemRefType{Shape: []int64{2 * n}, Elem: elem})
	gid := b.GlobalID(0)
	two := b.ConstantInt(ir.Index, 2)
	v := b.Load(fn.Args[0], gid)
	b.Store(v, fn.Args[1], b.Binary(ir.OpMulI, gid, two))
	b.Return()
	return moduleOf(fn)
}

func TestNarrowRoundTrip(t *testing.T) {
	const n = 64
	tests := []struct {
		name string
		elem ir.Type
		size int
	}{
		{"i8", ir.I8, 1},
		{"i16", ir.I16, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := compile(t, spreadKernel(tt.elem, n))

			in := make([]byte, n*tt.size)
			for i := range in {
				in[i] = byte(i*37 + 11)
			}
			out := make([]byte, 2*n*tt.size)
			for i := range out {
				out[i] = 0xEE
			}
			resources := ResourceTable{
				{Binding: 0}: {Data: in, StorageClass: StorageBuffer},
				{Binding: 1}: {Data: out, StorageClass: StorageBuffer},
			}

			res, err := newSimulator(t).Run(context.Background(),
				Program{Binary: bin, EntryPoint: "spread"}, resources, DispatchSize{X: n / 8, Y: 1, Z: 1})
			require.NoError(t, err)

			got := res.Buffers[BindingKey{Binding: 1}].Data
			require.Len(t, got, len(out))
			for i := range n {
				even := got[2*i*tt.size : (2*i+1)*tt.size]
				odd := got[(2*i+1)*tt.size : (2*i+2)*tt.size]
				assert.Equal(t, in[i*tt.size:(i+1)*tt.size], even, "element %d", 2*i)
				for _, b := range odd {
					assert.Equal(t, byte(0xEE), b, "element %d was clobbered", 2*i+1)
				}
			}
			assert.Equal(t, in, res.Buffers[BindingKey{Binding: 0}].Data)
		})
	}
}

func TestStoreByte(t *testing.T) {
	fn, b := kernel("store_byte", 1, ir.MemRefType{Shape: []int64{8}, Elem: ir.I8})
	b.Store(b.ConstantInt(ir.I8, -85), fn.Args[0], b.ConstantInt(ir.Index, 5))
	b.Return()
	bin := compile(t, moduleOf(fn))

	data := []byte{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}
	res, err := newSimulator(t).Run(context.Background(),
		Program{Binary: bin, EntryPoint: "store_byte"},
		ResourceTable{{}: {Data: data}},
		DispatchSize{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	assert.Equal(t, []byte{0x11, 0x11, 0x11, 0x11, 0x11, 0xAB, 0x11, 0x11}, res.Buffers[BindingKey{}].Data)
	assert.Equal(t, byte(0x11), data[5], "input buffer must not be modified")
	assert.NotEqual(t, uuid.Nil, res.RunID)
}

func TestFloatKernel(t *testing.T) {
	// out[i] = x < 0 ? -x : sqrt(x)
	const n = 4
	fn, b := kernel("magnitude", 2,
		ir.MemRefType{Shape: []int64{n}, Elem: ir.F32},
		ir.MemRefType{Shape: []int64{n}, Elem: ir.F32})
	gid := b.GlobalID(0)
	x := b.Load(fn.Args[0], gid)
	neg := b.CmpF(ir.CmpFOLT, x, b.ConstantFloat(ir.F32, 0))
	b.Store(b.Select(neg, b.Unary(ir.OpNegF, x), b.Unary(ir.OpSqrt, x)), fn.Args[1], gid)
	b.Return()
	bin := compile(t, moduleOf(fn))

	in := floats(4, -2.5, 9, 0.25)
	res, err := newSimulator(t).Run(context.Background(),
		Program{Binary: bin, EntryPoint: "magnitude"},
		ResourceTable{
			{Binding: 0}: {Data: in, StorageClass: Uniform},
			{Binding: 1}: {Data: make([]byte, len(in))},
		},
		DispatchSize{X: 2, Y: 1, Z: 1})
	require.Error(t, err, "kernel declares a storage buffer for the input")

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "bind resources", callErr.Call)

	res, err = newSimulator(t).Run(context.Background(),
		Program{Binary: bin, EntryPoint: "magnitude"},
		ResourceTable{
			{Binding: 0}: {Data: in},
			{Binding: 1}: {Data: make([]byte, len(in))},
		},
		DispatchSize{X: 2, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.Equal(t, floats(2, 2.5, 3, 0.5), res.Buffers[BindingKey{Binding: 1}].Data)
}

func floats(vs ...float32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func TestUniformIsReadOnly(t *testing.T) {
	fn, b := kernel("write", 1, ir.MemRefType{Shape: []int64{4}, Elem: ir.I32, Space: ir.Uniform})
	b.Store(b.ConstantInt(ir.I32, 1), fn.Args[0], b.ConstantInt(ir.Index, 0))
	b.Return()
	bin := compile(t, moduleOf(fn))

	_, err := newSimulator(t).Run(context.Background(),
		Program{Binary: bin, EntryPoint: "write"},
		ResourceTable{{}: {Data: make([]byte, 16), StorageClass: Uniform}},
		DispatchSize{X: 1, Y: 1, Z: 1})
	require.Error(t, err)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "dispatch", callErr.Call)
	assert.Contains(t, err.Error(), "store to read-only resource 0:0")
}

func TestRunValidation(t *testing.T) {
	fn, b := kernel("noop", 1, ir.MemRefType{Shape: []int64{4}, Elem: ir.I32})
	b.Return()
	bin := compile(t, moduleOf(fn))
	one := DispatchSize{X: 1, Y: 1, Z: 1}

	tests := []struct {
		name      string
		program   Program
		resources ResourceTable
		dispatch  DispatchSize
		call      string
		message   string
	}{
		{
			name:     "no resources",
			program:  Program{Binary: bin, EntryPoint: "noop"},
			dispatch: one,
			call:     "validate resources",
			message:  "runtime needs at least one resource",
		},
		{
			name:      "empty buffer",
			program:   Program{Binary: bin, EntryPoint: "noop"},
			resources: ResourceTable{{Set: 0, Binding: 3}: {}},
			dispatch:  one,
			call:      "validate resources",
			message:   "expected buffer size greater than zero for resource 0:3",
		},
		{
			name:      "empty dispatch",
			program:   Program{Binary: bin, EntryPoint: "noop"},
			resources: ResourceTable{{}: {Data: make([]byte, 16)}},
			dispatch:  DispatchSize{X: 1, Y: 0, Z: 1},
			call:      "validate dispatch",
			message:   "empty dimension",
		},
		{
			name:      "empty binary",
			program:   Program{EntryPoint: "noop"},
			resources: ResourceTable{{}: {Data: make([]byte, 16)}},
			dispatch:  one,
			call:      "create shader module",
			message:   "non-empty binary",
		},
		{
			name:      "unknown entry point",
			program:   Program{Binary: bin, EntryPoint: "main"},
			resources: ResourceTable{{}: {Data: make([]byte, 16)}},
			dispatch:  one,
			call:      "create shader module",
			message:   `no compute entry point named "main"`,
		},
		{
			name:      "missing binding",
			program:   Program{Binary: bin, EntryPoint: "noop"},
			resources: ResourceTable{{Binding: 1}: {Data: make([]byte, 16)}},
			dispatch:  one,
			call:      "bind resources",
			message:   "no resource bound at 0:0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSimulator(t).Run(context.Background(), tt.program, tt.resources, tt.dispatch)
			require.Error(t, err)
			var callErr *CallError
			require.ErrorAs(t, err, &callErr)
			assert.Equal(t, tt.call, callErr.Call)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	bin := compile(t, spreadKernel(ir.I8, 16))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSimulator(t).Run(ctx, Program{Binary: bin, EntryPoint: "spread"},
		ResourceTable{
			{Binding: 0}: {Data: make([]byte, 16)},
			{Binding: 1}: {Data: make([]byte, 32)},
		},
		DispatchSize{X: 2, Y: 1, Z: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOutOfBoundsAccess(t *testing.T) {
	// 8 lanes over a 4-element buffer: the upper lanes fault.
	fn, b := kernel("overrun", 8, ir.MemRefType{Shape: []int64{4}, Elem: ir.I32})
	gid := b.GlobalID(0)
	b.Store(b.ConstantInt(ir.I32, 7), fn.Args[0], gid)
	b.Return()
	bin := compile(t, moduleOf(fn))

	_, err := newSimulator(t).Run(context.Background(), Program{Binary: bin, EntryPoint: "overrun"},
		ResourceTable{{}: {Data: make([]byte, 16)}}, DispatchSize{X: 1, Y: 1, Z: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestSequentialLanesStopAtFirstFault(t *testing.T) {
	fn, b := kernel("overrun", 8, ir.MemRefType{Shape: []int64{4}, Elem: ir.I32})
	gid := b.GlobalID(0)
	b.Store(b.ConstantInt(ir.I32, 7), fn.Args[0], gid)
	b.Return()
	bin := compile(t, moduleOf(fn))

	sim := NewSimulator(WithLogger(zaptest.NewLogger(t)), WithConcurrency(1))
	_, err := sim.Run(context.Background(), Program{Binary: bin, EntryPoint: "overrun"},
		ResourceTable{{}: {Data: make([]byte, 16)}}, DispatchSize{X: 1, Y: 1, Z: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lane (4, 0, 0)")
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestMemorySubWordStore(t *testing.T) {
	mem := newMemory(BindingKey{}, &Buffer{Data: []byte{1, 2, 3, 4, 5, 6}})
	require.Len(t, mem.words, 2)

	require.NoError(t, mem.store(1, 1, 0xFF))
	require.NoError(t, mem.store(4, 2, 0xBEEF))
	assert.Equal(t, []byte{1, 0xFF, 3, 4, 0xEF, 0xBE}, mem.bytes())

	v, err := mem.load(4, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xBEEF), v)

	assert.Error(t, mem.store(3, 2, 0), "straddles a word")
	assert.Error(t, mem.store(8, 1, 0), "out of bounds")
	_, err = mem.load(2, 4)
	assert.Error(t, err, "unaligned")

	old, err := mem.atomicOr(4, 0xFFFF0000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xBEEF), old)
}

func TestDescriptorTypeOf(t *testing.T) {
	d, err := DescriptorTypeOf(StorageBuffer)
	require.NoError(t, err)
	assert.Equal(t, DescriptorStorageBuffer, d)
	d, err = DescriptorTypeOf(Uniform)
	require.NoError(t, err)
	assert.Equal(t, "uniform-buffer", d.String())
	_, err = DescriptorTypeOf(StorageClass(9))
	assert.Error(t, err)
}
