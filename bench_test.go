package spvlower

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/gogpu/spvlower/device"
	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
	"github.com/gogpu/spvlower/yamlir"
)

// ---------------------------------------------------------------------------
// Test kernels at different complexity levels
// ---------------------------------------------------------------------------

// kernelSmallStore writes one emulated byte.
const kernelSmallStore = `
functions:
  - name: store_byte
    entry_point: true
    workgroup_size: [1, 1, 1]
    args:
      - {name: buf, type: "memref<8xi8>"}
    body:
      - {result: idx, op: std.constant, type: index, attrs: {value: 5}}
      - {result: v, op: std.constant, type: i8, attrs: {value: -85}}
      - {op: std.store, operands: [v, buf, idx]}
      - {op: std.return}
`

// kernelMediumSpread copies in[i] to out[2*i] through emulated 16-bit loads
// and stores.
const kernelMediumSpread = `
functions:
  - name: spread
    entry_point: true
    workgroup_size: [64]
    args:
      - {name: in, type: "memref<1024xi16>"}
      - {name: out, type: "memref<2048xi16>"}
    body:
      - {result: gid, op: gpu.global_id, type: index, attrs: {dimension: 0}}
      - {result: two, op: std.constant, type: index, attrs: {value: 2}}
      - {result: v, op: std.load, type: i16, operands: [in, gid]}
      - {result: dst, op: std.muli, type: index, operands: [gid, two]}
      - {op: std.store, operands: [v, out, dst]}
      - {op: std.return}
`

// kernelMediumFloat computes x < 0 ? -x : sqrt(x).
const kernelMediumFloat = `
functions:
  - name: magnitude
    entry_point: true
    workgroup_size: [64]
    args:
      - {name: in, type: "memref<1024xf32>"}
      - {name: out, type: "memref<1024xf32>"}
    body:
      - {result: gid, op: gpu.global_id, type: index, attrs: {dimension: 0}}
      - {result: x, op: std.load, type: f32, operands: [in, gid]}
      - {result: zero, op: std.constant, type: f32, attrs: {value: 0.0}}
      - {result: neg, op: std.cmpf, type: i1, operands: [x, zero], attrs: {predicate: olt}}
      - {result: nx, op: std.negf, type: f32, operands: [x]}
      - {result: sx, op: std.sqrt, type: f32, operands: [x]}
      - {result: r, op: std.select, type: f32, operands: [neg, nx, sx]}
      - {op: std.store, operands: [r, out, gid]}
      - {op: std.return}
`

type kernelCase struct {
	name       string
	source     string
	entry      string
	buffers    []int // bytes per binding
	workgroups uint32
}

var kernelsByComplexity = []kernelCase{
	{"small_store", kernelSmallStore, "store_byte", []int{8}, 1},
	{"medium_spread", kernelMediumSpread, "spread", []int{2048, 4096}, 16},
	{"medium_float", kernelMediumFloat, "magnitude", []int{4096, 4096}, 16},
}

func decodeKernel(b *testing.B, source string) *ir.Module {
	b.Helper()
	m, err := yamlir.Decode(strings.NewReader(source))
	if err != nil {
		b.Fatalf("decode failed: %v", err)
	}
	return m
}

// ---------------------------------------------------------------------------
// End-to-end: YAML to SPIR-V
// ---------------------------------------------------------------------------

// BenchmarkCompile benchmarks decoding, lowering and serialization grouped
// by kernel complexity.
func BenchmarkCompile(b *testing.B) {
	for _, kc := range kernelsByComplexity {
		b.Run(kc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(kc.source)))
			b.ResetTimer()

			var result []byte
			for i := 0; i < b.N; i++ {
				m := decodeKernel(b, kc.source)
				var err error
				result, _, err = Compile(m, Options{Target: spirv.DefaultOptions()})
				if err != nil {
					b.Fatalf("compile failed: %v", err)
				}
			}
			runtime.KeepAlive(result)
		})
	}
}

// BenchmarkCompileNative compiles with Int8 and Int16 declared, so narrow
// accesses need no emulation.
func BenchmarkCompileNative(b *testing.B) {
	opts := DefaultOptions()
	opts.Target.Capabilities = []spirv.Capability{spirv.CapabilityInt8, spirv.CapabilityInt16}
	for _, kc := range kernelsByComplexity {
		b.Run(kc.name, func(b *testing.B) {
			b.ReportAllocs()
			var result []byte
			for i := 0; i < b.N; i++ {
				m := decodeKernel(b, kc.source)
				var err error
				result, _, err = Compile(m, opts)
				if err != nil {
					b.Fatalf("compile failed: %v", err)
				}
			}
			runtime.KeepAlive(result)
		})
	}
}

// ---------------------------------------------------------------------------
// Individual stages
// ---------------------------------------------------------------------------

func BenchmarkDecode(b *testing.B) {
	source := kernelMediumFloat
	b.ReportAllocs()
	b.SetBytes(int64(len(source)))

	var m *ir.Module
	for i := 0; i < b.N; i++ {
		m = decodeKernel(b, source)
	}
	runtime.KeepAlive(m)
}

// BenchmarkLower measures lowering alone; decoding happens with the timer
// stopped because lowering rewrites the module in place.
func BenchmarkLower(b *testing.B) {
	source := kernelMediumSpread
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		m := decodeKernel(b, source)
		b.StartTimer()
		if _, err := Lower(m, Options{Target: spirv.DefaultOptions()}); err != nil {
			b.Fatalf("lower failed: %v", err)
		}
	}
}

func BenchmarkValidate(b *testing.B) {
	m := decodeKernel(b, kernelMediumFloat)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		errs, err := ir.Validate(m)
		if err != nil || len(errs) > 0 {
			b.Fatalf("validate failed: %v %v", err, errs)
		}
	}
}

func BenchmarkGenerateSPIRV(b *testing.B) {
	m := decodeKernel(b, kernelMediumSpread)
	if _, err := Lower(m, DefaultOptions()); err != nil {
		b.Fatalf("lower failed: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	var result []byte
	for i := 0; i < b.N; i++ {
		var err error
		result, err = GenerateSPIRV(m, spirv.DefaultOptions())
		if err != nil {
			b.Fatalf("generate failed: %v", err)
		}
	}
	runtime.KeepAlive(result)
}

// ---------------------------------------------------------------------------
// Simulated execution
// ---------------------------------------------------------------------------

// BenchmarkRun benchmarks the software device on precompiled kernels.
func BenchmarkRun(b *testing.B) {
	for _, kc := range kernelsByComplexity {
		b.Run(kc.name, func(b *testing.B) {
			bin, _, err := Compile(decodeKernel(b, kc.source), DefaultOptions())
			if err != nil {
				b.Fatalf("compile failed: %v", err)
			}
			resources := make(device.ResourceTable, len(kc.buffers))
			for i, size := range kc.buffers {
				resources[device.BindingKey{Binding: uint32(i)}] = &device.Buffer{Data: make([]byte, size)}
			}
			sim := device.NewSimulator()
			program := device.Program{Binary: bin, EntryPoint: kc.entry}
			dispatch := device.DispatchSize{X: kc.workgroups, Y: 1, Z: 1}

			b.ReportAllocs()
			b.ResetTimer()
			var res *device.Result
			for i := 0; i < b.N; i++ {
				res, err = sim.Run(context.Background(), program, resources, dispatch)
				if err != nil {
					b.Fatalf("run failed: %v", err)
				}
			}
			runtime.KeepAlive(res)
		})
	}
}
