package ir

import (
	"strconv"
	"strings"
)

// Type is a value type in the IR. Source-level types (integers, floats,
// index, vectors, tensors, memrefs) and target-level aggregates (arrays,
// runtime arrays, structs, pointers) share this interface.
//
// Types contain slices and are therefore not comparable with ==.
// Use TypesEqual.
type Type interface {
	String() string
	isType()
}

// Signedness of an integer type.
type Signedness uint8

const (
	Signless Signedness = iota
	Signed
	Unsigned
)

// DynamicSize marks a dimension whose extent is not known statically.
const DynamicSize int64 = -1

// StorageClass is the memory space of a memref or pointer.
type StorageClass uint8

const (
	StorageBuffer StorageClass = iota
	Uniform
	Workgroup
	Private
	StorageClassFunction
	Input
)

var storageClassNames = [...]string{
	StorageBuffer:        "StorageBuffer",
	Uniform:              "Uniform",
	Workgroup:            "Workgroup",
	Private:              "Private",
	StorageClassFunction: "Function",
	Input:                "Input",
}

func (s StorageClass) String() string {
	if int(s) < len(storageClassNames) {
		return storageClassNames[s]
	}
	return "StorageClass(" + strconv.Itoa(int(s)) + ")"
}

// ParseStorageClass returns the storage class with the given name.
func ParseStorageClass(name string) (StorageClass, bool) {
	for i, n := range storageClassNames {
		if n == name {
			return StorageClass(i), true
		}
	}
	return 0, false
}

// IntegerType is an integer of a given bit width. Width 1 is the boolean type.
type IntegerType struct {
	Width      uint32
	Signedness Signedness
}

// IndexType is the platform-sized integer used for indexing.
type IndexType struct{}

// FloatType is an IEEE floating-point type of width 16, 32 or 64.
type FloatType struct {
	Width uint32
}

// VectorType is a fixed-shape vector.
type VectorType struct {
	Shape []int64
	Elem  Type
}

// TensorType is an immutable multi-dimensional value.
type TensorType struct {
	Shape []int64
	Elem  Type
}

// MemRefType is a reference to a region of memory holding elements laid out
// in row-major order.
type MemRefType struct {
	Shape []int64
	Elem  Type
	Space StorageClass
}

// ArrayType is a fixed-length array with an explicit byte stride.
type ArrayType struct {
	Elem   Type
	Count  uint32
	Stride uint32
}

// RuntimeArrayType is an array whose length is known only at run time.
type RuntimeArrayType struct {
	Elem   Type
	Stride uint32
}

// StructType is a structure with explicit member byte offsets.
type StructType struct {
	Members []Type
	Offsets []uint32
}

// PointerType is a pointer into a storage class.
type PointerType struct {
	Pointee Type
	Space   StorageClass
}

func (IntegerType) isType()      {}
func (IndexType) isType()        {}
func (FloatType) isType()        {}
func (VectorType) isType()       {}
func (TensorType) isType()       {}
func (MemRefType) isType()       {}
func (ArrayType) isType()        {}
func (RuntimeArrayType) isType() {}
func (StructType) isType()       {}
func (PointerType) isType()      {}

// Common scalar types.
var (
	I1    = IntegerType{Width: 1}
	I8    = IntegerType{Width: 8}
	I16   = IntegerType{Width: 16}
	I32   = IntegerType{Width: 32}
	I64   = IntegerType{Width: 64}
	F16   = FloatType{Width: 16}
	F32   = FloatType{Width: 32}
	F64   = FloatType{Width: 64}
	Index = IndexType{}
)

func (t IntegerType) String() string {
	w := strconv.FormatUint(uint64(t.Width), 10)
	switch t.Signedness {
	case Signed:
		return "si" + w
	case Unsigned:
		return "ui" + w
	default:
		return "i" + w
	}
}

func (IndexType) String() string { return "index" }

func (t FloatType) String() string { return "f" + strconv.FormatUint(uint64(t.Width), 10) }

func (t VectorType) String() string { return "vector<" + shapePrefix(t.Shape) + typeString(t.Elem) + ">" }

func (t TensorType) String() string { return "tensor<" + shapePrefix(t.Shape) + typeString(t.Elem) + ">" }

func (t MemRefType) String() string {
	s := "memref<" + shapePrefix(t.Shape) + typeString(t.Elem)
	if t.Space != StorageBuffer {
		s += ", " + t.Space.String()
	}
	return s + ">"
}

func (t ArrayType) String() string {
	return "!spv.array<" + strconv.FormatUint(uint64(t.Count), 10) + " x " + typeString(t.Elem) +
		", stride=" + strconv.FormatUint(uint64(t.Stride), 10) + ">"
}

func (t RuntimeArrayType) String() string {
	return "!spv.rtarray<" + typeString(t.Elem) + ", stride=" + strconv.FormatUint(uint64(t.Stride), 10) + ">"
}

func (t StructType) String() string {
	var sb strings.Builder
	sb.WriteString("!spv.struct<")
	for i, m := range t.Members {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(typeString(m))
		if i < len(t.Offsets) {
			sb.WriteString(" [")
			sb.WriteString(strconv.FormatUint(uint64(t.Offsets[i]), 10))
			sb.WriteString("]")
		}
	}
	sb.WriteString(">")
	return sb.String()
}

func (t PointerType) String() string {
	return "!spv.ptr<" + typeString(t.Pointee) + ", " + t.Space.String() + ">"
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func shapePrefix(shape []int64) string {
	var sb strings.Builder
	for _, d := range shape {
		if d == DynamicSize {
			sb.WriteString("?")
		} else {
			sb.WriteString(strconv.FormatInt(d, 10))
		}
		sb.WriteString("x")
	}
	return sb.String()
}

// TypesEqual reports whether two types are structurally identical.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// BitWidth returns the bit width of an integer or float type.
// Index has no fixed width and reports false.
func BitWidth(t Type) (uint32, bool) {
	switch t := t.(type) {
	case IntegerType:
		return t.Width, true
	case FloatType:
		return t.Width, true
	}
	return 0, false
}

// IsBool reports whether t is the 1-bit integer type.
func IsBool(t Type) bool {
	it, ok := t.(IntegerType)
	return ok && it.Width == 1
}

// IsBoolScalarOrVector reports whether t is i1 or a vector of i1.
func IsBoolScalarOrVector(t Type) bool {
	if IsBool(t) {
		return true
	}
	if vt, ok := t.(VectorType); ok {
		return IsBool(vt.Elem)
	}
	return false
}

// IsSignlessInteger reports whether t is an integer type without signedness.
func IsSignlessInteger(t Type) bool {
	it, ok := t.(IntegerType)
	return ok && it.Signedness == Signless
}

// IsIntOrIndex reports whether t is an integer or index type.
func IsIntOrIndex(t Type) bool {
	switch t.(type) {
	case IntegerType, IndexType:
		return true
	}
	return false
}

// ShapeOf returns the shape and element type of a shaped type.
func ShapeOf(t Type) (shape []int64, elem Type, ok bool) {
	switch t := t.(type) {
	case VectorType:
		return t.Shape, t.Elem, true
	case TensorType:
		return t.Shape, t.Elem, true
	case MemRefType:
		return t.Shape, t.Elem, true
	}
	return nil, nil, false
}

// HasStaticShape reports whether no dimension is dynamic.
func HasStaticShape(shape []int64) bool {
	for _, d := range shape {
		if d < 0 {
			return false
		}
	}
	return true
}

// NumElements returns the product of the dimensions of a static shape.
func NumElements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// ByteSize returns the storage size of a scalar, vector or array type.
// Booleans occupy one byte.
func ByteSize(t Type) (uint32, bool) {
	switch t := t.(type) {
	case IntegerType:
		if t.Width == 1 {
			return 1, true
		}
		return (t.Width + 7) / 8, true
	case FloatType:
		return t.Width / 8, true
	case VectorType:
		es, ok := ByteSize(t.Elem)
		if !ok {
			return 0, false
		}
		return es * uint32(NumElements(t.Shape)), true
	case ArrayType:
		return t.Count * t.Stride, true
	}
	return 0, false
}
