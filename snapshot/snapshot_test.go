// Package snapshot_test runs every kernel in testdata/in/ through the whole
// pipeline twice: once on a target that emulates 8 and 16-bit integers on
// 32-bit words and once on a target that supports them natively. Both
// binaries execute on the software device over the same inputs and must
// leave identical buffers behind.
package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gogpu/spvlower"
	"github.com/gogpu/spvlower/device"
	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
	"github.com/gogpu/spvlower/yamlir"
)

// ---------------------------------------------------------------------------
// Test Runner
// ---------------------------------------------------------------------------

// kernelFile is an input module loaded from disk.
type kernelFile struct {
	name string // base name without extension (e.g., "spread_i8")
	path string
}

func TestSnapshots(t *testing.T) {
	kernels := loadInputKernels(t, "testdata/in")
	require.NotEmpty(t, kernels, "no input kernels found in testdata/in/")

	native := spvlower.DefaultOptions()
	native.Target.Capabilities = []spirv.Capability{spirv.CapabilityInt8, spirv.CapabilityInt16}

	for _, k := range kernels {
		t.Run(k.name, func(t *testing.T) {
			emulatedRun := compileAndRun(t, k, spvlower.DefaultOptions())
			nativeRun := compileAndRun(t, k, native)

			require.Equal(t, nativeRun.Keys(), emulatedRun.Keys())
			for _, key := range nativeRun.Keys() {
				assert.Equal(t, nativeRun[key].Data, emulatedRun[key].Data, "binding %s", key)
			}
		})
	}
}

// loadInputKernels lists the .yaml files of dir in name order.
func loadInputKernels(t *testing.T, dir string) []kernelFile {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var kernels []kernelFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		kernels = append(kernels, kernelFile{
			name: strings.TrimSuffix(entry.Name(), ".yaml"),
			path: filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(kernels, func(i, j int) bool {
		return kernels[i].name < kernels[j].name
	})
	return kernels
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// compileAndRun compiles k with opts and dispatches its entry point with one
// lane per element of its first argument.
func compileAndRun(t *testing.T, k kernelFile, opts spvlower.Options) device.ResourceTable {
	t.Helper()

	m, err := yamlir.DecodeFile(k.path)
	require.NoError(t, err)
	fn := entryPoint(t, m)
	resources, lanes := inputsFor(t, fn)
	wg := fn.WorkgroupSize[0]

	opts.Logger = zaptest.NewLogger(t)
	bin, _, err := spvlower.Compile(m, opts)
	require.NoError(t, err)
	checkDialect(t, m)

	parsed, err := spirv.Parse(bin)
	require.NoError(t, err)
	assert.Equal(t, opts.Target.Version, parsed.Header.Version)

	sim := device.NewSimulator(device.WithLogger(zaptest.NewLogger(t)))
	res, err := sim.Run(context.Background(),
		device.Program{Binary: bin, EntryPoint: fn.Name},
		resources,
		device.DispatchSize{X: uint32(lanes) / wg, Y: 1, Z: 1})
	require.NoError(t, err)
	return res.Buffers
}

func entryPoint(t *testing.T, m *ir.Module) *ir.Function {
	t.Helper()
	for _, fn := range m.Functions {
		if fn.EntryPoint {
			return fn
		}
	}
	t.Fatal("module has no entry point")
	return nil
}

// inputsFor allocates one buffer per memref argument, filled with a fixed
// byte pattern, and returns the element count of the first one.
func inputsFor(t *testing.T, fn *ir.Function) (device.ResourceTable, int64) {
	t.Helper()

	resources := make(device.ResourceTable, len(fn.Args))
	var lanes int64
	for i, arg := range fn.Args {
		mt, ok := arg.Type().(ir.MemRefType)
		require.True(t, ok, "argument %d is not a memref", i)

		n := int64(1)
		for _, d := range mt.Shape {
			n *= d
		}
		if i == 0 {
			lanes = n
		}
		data := make([]byte, n*elemBytes(t, mt.Elem))
		for j := range data {
			data[j] = byte(j*37 + 11*i + 5)
		}
		resources[device.BindingKey{Binding: uint32(i)}] = &device.Buffer{Data: data}
	}
	return resources, lanes
}

func elemBytes(t *testing.T, elem ir.Type) int64 {
	t.Helper()
	switch e := elem.(type) {
	case ir.IntegerType:
		return int64(e.Width) / 8
	case ir.FloatType:
		return int64(e.Width) / 8
	}
	t.Fatalf("unsupported element type %s", elem)
	return 0
}

// checkDialect asserts that lowering left nothing outside the spv dialect.
func checkDialect(t *testing.T, m *ir.Module) {
	t.Helper()
	for _, fn := range m.Functions {
		for i, op := range fn.Body.Ops() {
			assert.True(t, spirv.IsTargetOp(op), "%s op %d: %s", fn.Name, i, op.Kind)
		}
	}
}
