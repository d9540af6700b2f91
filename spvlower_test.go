package spvlower

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gogpu/spvlower/device"
	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/lowering"
	"github.com/gogpu/spvlower/spirv"
	"github.com/gogpu/spvlower/yamlir"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions([]byte(`
validate = false

[target]
version = "1.5"
capabilities = ["Int8"]
`))
	require.NoError(t, err)
	assert.False(t, opts.Validate)
	assert.Equal(t, spirv.Version{Major: 1, Minor: 5}, opts.Target.Version)
	assert.Equal(t, []spirv.Capability{spirv.CapabilityInt8}, opts.Target.Capabilities)
	assert.True(t, opts.Target.Validation, "omitted settings keep their defaults")
}

func TestParseOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", "[target", "failed to parse config file"},
		{"unknown version", "[target]\nversion = \"2.0\"", "unsupported"},
		{"unknown capability", "[target]\ncapabilities = [\"Int7\"]", `unknown capability "Int7"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadOptions(t *testing.T) {
	opts, err := LoadOptions("testdata/spvlower.toml")
	require.NoError(t, err)
	assert.True(t, opts.Target.Debug)
	assert.True(t, opts.Target.SupportsIntWidth(8))
	assert.True(t, opts.Target.SupportsIntWidth(16))
	assert.False(t, opts.Target.SupportsIntWidth(64))

	_, err = LoadOptions("testdata/missing.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// compileStoreByte compiles testdata/store_byte.yaml and runs it over a
// buffer of 0x11 bytes.
func compileStoreByte(t *testing.T, opts Options) ([]byte, []byte) {
	t.Helper()
	m, err := yamlir.DecodeFile("testdata/store_byte.yaml")
	require.NoError(t, err)

	opts.Logger = zaptest.NewLogger(t)
	bin, report, err := Compile(m, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Functions)
	assert.Positive(t, report.Converted)

	sim := device.NewSimulator(device.WithLogger(zaptest.NewLogger(t)))
	res, err := sim.Run(context.Background(),
		device.Program{Binary: bin, EntryPoint: "store_byte"},
		device.ResourceTable{{}: {Data: bytes.Repeat([]byte{0x11}, 8)}},
		device.DispatchSize{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	return bin, res.Buffers[device.BindingKey{}].Data
}

func disassemble(t *testing.T, bin []byte) string {
	t.Helper()
	parsed, err := spirv.Parse(bin)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, spirv.Disassemble(&buf, parsed))
	return buf.String()
}

func TestCompileAndRun(t *testing.T) {
	want := []byte{0x11, 0x11, 0x11, 0x11, 0x11, 0xAB, 0x11, 0x11}

	t.Run("emulated", func(t *testing.T) {
		bin, got := compileStoreByte(t, DefaultOptions())
		assert.Equal(t, want, got)

		text := disassemble(t, bin)
		assert.Contains(t, text, "OpAtomicAnd")
		assert.Contains(t, text, "OpAtomicOr")
		assert.NotContains(t, text, "Int8")
	})

	t.Run("native", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Target.Capabilities = []spirv.Capability{spirv.CapabilityInt8}
		bin, got := compileStoreByte(t, opts)
		assert.Equal(t, want, got)

		text := disassemble(t, bin)
		assert.Contains(t, text, "OpCapability Int8")
		assert.NotContains(t, text, "OpAtomicAnd")
	})
}

func TestLowerRejectsInvalidModule(t *testing.T) {
	fn := ir.NewFunction("f", ir.I32)
	later := ir.NewOperation(ir.OpAddI, ir.I32, []*ir.Value{fn.Args[0], fn.Args[0]}, nil)
	fn.Body.Append(ir.NewOperation(ir.OpAddI, ir.I32, []*ir.Value{fn.Args[0], later.Result()}, nil))
	fn.Body.Append(later)
	ir.NewBuilder(fn.Body).Return()

	_, err := Lower(&ir.Module{Functions: []*ir.Function{fn}}, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	var verr *ir.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "f", verr.Function)
}

func TestLowerFailureLeavesModule(t *testing.T) {
	fn := ir.NewFunction("f", ir.I1, ir.I1)
	b := ir.NewBuilder(fn.Body)
	b.Binary(ir.OpXOr, fn.Args[0], fn.Args[1])
	b.Return()
	m := &ir.Module{Functions: []*ir.Function{fn}}
	before := m.String()

	report, err := Lower(m, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, lowering.IsKind(err, lowering.ErrUnsupportedOperand))
	assert.Equal(t, before, m.String())

	_, _, err = Compile(m, DefaultOptions())
	assert.Contains(t, err.Error(), "lowering error")
}
