package ir

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeStringRoundTrip(t *testing.T) {
	tests := []struct {
		typ  Type
		text string
	}{
		{I1, "i1"},
		{IntegerType{Width: 8, Signedness: Signed}, "si8"},
		{IntegerType{Width: 16, Signedness: Unsigned}, "ui16"},
		{Index, "index"},
		{F16, "f16"},
		{VectorType{Shape: []int64{4}, Elem: F32}, "vector<4xf32>"},
		{TensorType{Shape: []int64{2, 3}, Elem: I32}, "tensor<2x3xi32>"},
		{TensorType{Shape: []int64{DynamicSize}, Elem: I8}, "tensor<?xi8>"},
		{MemRefType{Shape: []int64{16}, Elem: I8}, "memref<16xi8>"},
		{MemRefType{Shape: []int64{4, 4}, Elem: F32, Space: Uniform}, "memref<4x4xf32, Uniform>"},
		{MemRefType{Shape: []int64{8}, Elem: I32, Space: StorageClassFunction}, "memref<8xi32, Function>"},
		{ArrayType{Elem: I32, Count: 4, Stride: 4}, "!spv.array<4 x i32, stride=4>"},
		{RuntimeArrayType{Elem: F32, Stride: 4}, "!spv.rtarray<f32, stride=4>"},
		{
			PointerType{
				Pointee: StructType{Members: []Type{ArrayType{Elem: I32, Count: 4, Stride: 4}}, Offsets: []uint32{0}},
				Space:   StorageBuffer,
			},
			"!spv.ptr<!spv.struct<!spv.array<4 x i32, stride=4> [0]>, StorageBuffer>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.typ.String())

			parsed, err := ParseType(tt.text)
			require.NoError(t, err)
			assert.True(t, TypesEqual(tt.typ, parsed), "parsed %s", parsed)
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, text := range []string{"", "f8", "vector<4x", "memref<4xi8, Heap>", "i32 junk", "!spv.ptr<i32>"} {
		_, err := ParseType(text)
		assert.Error(t, err, "ParseType(%q)", text)
	}
}

func TestStorageClassNames(t *testing.T) {
	for sc := StorageBuffer; sc <= Input; sc++ {
		got, ok := ParseStorageClass(sc.String())
		require.True(t, ok, sc.String())
		assert.Equal(t, sc, got)
	}
	assert.Equal(t, "Function", StorageClassFunction.String())
	_, ok := ParseStorageClass("Heap")
	assert.False(t, ok)
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsBoolScalarOrVector(I1))
	assert.True(t, IsBoolScalarOrVector(VectorType{Shape: []int64{4}, Elem: I1}))
	assert.False(t, IsBoolScalarOrVector(I8))
	assert.False(t, IsBoolScalarOrVector(VectorType{Shape: []int64{4}, Elem: I32}))

	assert.True(t, IsSignlessInteger(I8))
	assert.False(t, IsSignlessInteger(IntegerType{Width: 8, Signedness: Signed}))
	assert.False(t, IsSignlessInteger(F32))

	w, ok := BitWidth(F64)
	assert.True(t, ok)
	assert.Equal(t, uint32(64), w)
	_, ok = BitWidth(Index)
	assert.False(t, ok)

	size, ok := ByteSize(VectorType{Shape: []int64{3}, Elem: F32})
	assert.True(t, ok)
	assert.Equal(t, uint32(12), size)

	assert.Equal(t, int64(24), NumElements([]int64{2, 3, 4}))
	assert.False(t, HasStaticShape([]int64{2, DynamicSize}))
}

func TestIntegerAttrCanonicalForm(t *testing.T) {
	tests := []struct {
		name string
		attr IntegerAttr
		want string
		bits uint64
	}{
		{"signless wraps to negative", NewIntegerAttrBig(I8, big.NewInt(200)), "-56 : i8", 200},
		{"unsigned keeps pattern", NewIntegerAttrBig(IntegerType{Width: 8, Signedness: Unsigned}, big.NewInt(-1)), "255 : ui8", 255},
		{"index is 64 bits", NewIntegerAttr(Index, -1), "-1 : index", ^uint64(0)},
		{"bool", NewIntegerAttr(I1, 1), "1 : i1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.attr.String())
			assert.Equal(t, tt.bits, tt.attr.Bits().Uint64())
		})
	}
}

func TestAttributeStrings(t *testing.T) {
	assert.Equal(t, "true", BoolAttr{Value: true}.String())
	assert.Equal(t, "1.5 : f32", NewFloatAttr(F32, 1.5).String())
	assert.Equal(t, "3.0 : f64", NewFloatAttr(F64, 3).String())
	assert.Equal(t, `"oeq"`, StringAttr("oeq").String())

	dense := DenseElementsAttr{
		Type:   TensorType{Shape: []int64{2}, Elem: F32},
		Values: []Attribute{NewFloatAttr(F32, 1), NewFloatAttr(F32, -0.5)},
	}
	assert.Equal(t, "dense<[1.0, -0.5]> : tensor<2xf32>", dense.String())

	reshaped := dense.Reshape(TensorType{Shape: []int64{1, 2}, Elem: F32})
	assert.Len(t, reshaped.Values, 2)
	assert.Equal(t, "tensor<1x2xf32>", reshaped.Type.String())
}
