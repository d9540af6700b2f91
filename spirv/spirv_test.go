package spirv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/spvlower/ir"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "1.3", want: Version1_3},
		{in: "v1.5.0", want: Version1_5},
		{in: "1.6", want: Version1_6},
		{in: "1.7", wantErr: true},
		{in: "2.0", wantErr: true},
		{in: "latest", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	assert.True(t, Version1_4.AtLeast(Version1_3))
	assert.True(t, Version1_3.AtLeast(Version1_3))
	assert.False(t, Version1_0.AtLeast(Version1_3))
	assert.Equal(t, "1.5", Version1_5.String())
}

func TestOptionsScalarWidths(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.SupportsIntWidth(32))
	assert.True(t, opts.SupportsIntWidth(1))
	assert.False(t, opts.SupportsIntWidth(8))
	assert.False(t, opts.SupportsIntWidth(64))
	assert.True(t, opts.SupportsFloatWidth(32))
	assert.False(t, opts.SupportsFloatWidth(16))

	opts.Capabilities = []Capability{CapabilityInt8, CapabilityFloat64}
	assert.True(t, opts.SupportsIntWidth(8))
	assert.False(t, opts.SupportsIntWidth(16))
	assert.True(t, opts.SupportsFloatWidth(64))
	assert.True(t, opts.HasCapability(CapabilityShader))
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("Int16")
	require.NoError(t, err)
	assert.Equal(t, CapabilityInt16, c)
	assert.Equal(t, "Int16", c.String())

	_, err = ParseCapability("Geometry")
	assert.Error(t, err)
	assert.Equal(t, "Capability(4)", Capability(4).String())
}

func TestScopeAndSemantics(t *testing.T) {
	s, ok := ParseScope("Device")
	require.True(t, ok)
	assert.Equal(t, ScopeDevice, s)
	assert.Equal(t, uint32(1), uint32(s))

	m, ok := ParseMemorySemantics("AcquireRelease")
	require.True(t, ok)
	assert.Equal(t, uint32(0x8), uint32(m))

	_, ok = ParseScope("Nowhere")
	assert.False(t, ok)
}

func TestDialectTables(t *testing.T) {
	op, ok := OpcodeOf(IAdd)
	require.True(t, ok)
	assert.Equal(t, OpIAdd, op)
	assert.Equal(t, "OpIAdd", OpcodeName(op))

	inst, ok := GLSLInstructionOf(GLSLInverseSqrt)
	require.True(t, ok)
	assert.Equal(t, uint32(32), inst)

	_, ok = OpcodeOf(ir.OpAddI)
	assert.False(t, ok)

	assert.Equal(t, StorageClassStorageBuffer, StorageClassOf(ir.StorageBuffer))
	assert.Equal(t, StorageClassUniform, StorageClassOf(ir.Uniform))
	assert.Equal(t, StorageClassInput, StorageClassOf(ir.Input))
	assert.Equal(t, StorageClassFunction, StorageClassOf(ir.StorageClassFunction))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(make([]byte, 8))
	assert.ErrorContains(t, err, "too small")

	_, err = Parse(make([]byte, 22))
	assert.ErrorContains(t, err, "not a multiple of 4")

	_, err = Parse(make([]byte, 20))
	assert.ErrorContains(t, err, "invalid magic")

	data := NewModuleBuilder(Version1_3).Build()
	// an instruction claiming three words with only one present
	data = append(data, 0x00, 0x00, 0x03, 0x00)
	_, err = Parse(data)
	assert.ErrorContains(t, err, "invalid word count 3")
}

func TestEncodeDecodeString(t *testing.T) {
	for _, s := range []string{"", "abc", "abcd", "GLSL.std.450"} {
		words := EncodeString(s)
		assert.Len(t, words, len(s)/4+1, s)
		got, n := DecodeString(words)
		assert.Equal(t, s, got)
		assert.Equal(t, len(words), n)
	}
}
