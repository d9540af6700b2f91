package ir

import (
	"testing"
)

func TestTypeRegistry_ScalarDeduplication(t *testing.T) {
	registry := NewTypeRegistry()

	f32a := registry.GetOrCreate(F32)
	f32b := registry.GetOrCreate(FloatType{Width: 32})

	if f32a != f32b {
		t.Errorf("Expected same handle for identical scalar types, got %d and %d", f32a, f32b)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 type, got %d", registry.Count())
	}
}

func TestTypeRegistry_DifferentScalars(t *testing.T) {
	registry := NewTypeRegistry()

	handles := []TypeHandle{
		registry.GetOrCreate(F32),
		registry.GetOrCreate(I32),
		registry.GetOrCreate(IntegerType{Width: 32, Signedness: Signed}),
		registry.GetOrCreate(IntegerType{Width: 32, Signedness: Unsigned}),
		registry.GetOrCreate(F16),
		registry.GetOrCreate(Index),
	}

	for i := 0; i < len(handles); i++ {
		for j := i + 1; j < len(handles); j++ {
			if handles[i] == handles[j] {
				t.Errorf("Expected different handles for different types, got %d == %d", handles[i], handles[j])
			}
		}
	}

	if registry.Count() != len(handles) {
		t.Errorf("Expected %d types, got %d", len(handles), registry.Count())
	}
}

func TestTypeRegistry_AggregateDeduplication(t *testing.T) {
	registry := NewTypeRegistry()

	mk := func() Type {
		return PointerType{
			Pointee: StructType{
				Members: []Type{ArrayType{Elem: I32, Count: 4, Stride: 4}},
				Offsets: []uint32{0},
			},
			Space: StorageBuffer,
		}
	}

	a := registry.GetOrCreate(mk())
	b := registry.GetOrCreate(mk())
	if a != b {
		t.Errorf("Expected same handle for identical pointer types, got %d and %d", a, b)
	}

	c := registry.GetOrCreate(PointerType{Pointee: I32, Space: Uniform})
	if a == c {
		t.Errorf("Expected different handles for different pointer types")
	}
}

func TestTypeRegistry_Lookup(t *testing.T) {
	registry := NewTypeRegistry()
	h := registry.GetOrCreate(VectorType{Shape: []int64{4}, Elem: F32})

	typ, ok := registry.Lookup(h)
	if !ok {
		t.Fatalf("Lookup(%d) failed", h)
	}
	if got := typ.String(); got != "vector<4xf32>" {
		t.Errorf("Lookup(%d) = %s, want vector<4xf32>", h, got)
	}

	if _, ok := registry.Lookup(TypeHandle(42)); ok {
		t.Errorf("Lookup of unknown handle succeeded")
	}
}
