package ir

import (
	"math/big"
	"strconv"
	"strings"
)

// Attribute is a compile-time constant attached to an operation.
type Attribute interface {
	String() string
	isAttribute()
}

// BoolAttr is a boolean constant.
type BoolAttr struct {
	Value bool
}

// IntegerAttr is an arbitrary-precision integer constant of an integer or
// index type.
type IntegerAttr struct {
	Type  Type
	Value *big.Int
}

// FloatAttr is a floating-point constant. The value is held in double
// precision regardless of Type.
type FloatAttr struct {
	Type  FloatType
	Value float64
}

// DenseElementsAttr holds the elements of a vector or tensor constant in
// row-major order.
type DenseElementsAttr struct {
	Type   Type
	Values []Attribute
}

// StringAttr is an enum-valued or symbolic attribute.
type StringAttr string

func (BoolAttr) isAttribute()          {}
func (IntegerAttr) isAttribute()       {}
func (FloatAttr) isAttribute()         {}
func (DenseElementsAttr) isAttribute() {}
func (StringAttr) isAttribute()        {}

// NewIntegerAttr returns an integer attribute of type t holding v.
func NewIntegerAttr(t Type, v int64) IntegerAttr {
	return IntegerAttr{Type: t, Value: big.NewInt(v)}
}

// NewIntegerAttrBig returns an integer attribute of type t holding v reduced
// to the canonical range of t: signless and signed integers are stored as
// their two's complement value, unsigned integers as their non-negative bit
// pattern.
func NewIntegerAttrBig(t Type, v *big.Int) IntegerAttr {
	return IntegerAttr{Type: t, Value: canonicalInt(t, v)}
}

// NewFloatAttr returns a float attribute of type t holding v.
func NewFloatAttr(t FloatType, v float64) FloatAttr {
	return FloatAttr{Type: t, Value: v}
}

// IntegerWidth returns the storage width of an integer or index type.
// Index is treated as 64 bits wide.
func IntegerWidth(t Type) uint32 {
	switch t := t.(type) {
	case IntegerType:
		return t.Width
	case IndexType:
		return 64
	}
	return 0
}

// Bits returns the value's two's complement bit pattern truncated to the
// attribute's type width.
func (a IntegerAttr) Bits() *big.Int {
	return BitPattern(a.Value, IntegerWidth(a.Type))
}

// Int64 returns the value as a signed 64-bit integer. Values outside the
// int64 range are truncated.
func (a IntegerAttr) Int64() int64 {
	if a.Value == nil {
		return 0
	}
	return a.Value.Int64()
}

func (a IntegerAttr) String() string {
	return canonicalInt(a.Type, a.Value).String() + " : " + typeString(a.Type)
}

func (a BoolAttr) String() string { return strconv.FormatBool(a.Value) }

func (a FloatAttr) String() string {
	return formatFloat(a.Value) + " : " + a.Type.String()
}

func (a DenseElementsAttr) String() string {
	var sb strings.Builder
	sb.WriteString("dense<[")
	for i, v := range a.Values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(elementString(v))
	}
	sb.WriteString("]> : ")
	sb.WriteString(typeString(a.Type))
	return sb.String()
}

func (a StringAttr) String() string { return strconv.Quote(string(a)) }

// elementString prints an element of a dense attribute without its type.
func elementString(a Attribute) string {
	switch a := a.(type) {
	case IntegerAttr:
		return canonicalInt(a.Type, a.Value).String()
	case FloatAttr:
		return formatFloat(a.Value)
	case BoolAttr:
		return strconv.FormatBool(a.Value)
	case nil:
		return "<nil>"
	}
	return a.String()
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// BitPattern returns v modulo 2^width as a non-negative integer.
func BitPattern(v *big.Int, width uint32) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	r := new(big.Int).Mod(v, mod)
	return r
}

// SignedValue interprets the low width bits of v as two's complement.
func SignedValue(v *big.Int, width uint32) *big.Int {
	bits := BitPattern(v, width)
	if width > 0 && bits.Bit(int(width-1)) == 1 {
		bits.Sub(bits, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	return bits
}

func canonicalInt(t Type, v *big.Int) *big.Int {
	width := IntegerWidth(t)
	if width == 0 {
		if v == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(v)
	}
	if it, ok := t.(IntegerType); ok && it.Signedness == Unsigned {
		return BitPattern(v, width)
	}
	if width == 1 {
		return BitPattern(v, width)
	}
	return SignedValue(v, width)
}

// Reshape returns a copy of the attribute with a new type. The element
// count must be unchanged.
func (a DenseElementsAttr) Reshape(t Type) DenseElementsAttr {
	values := make([]Attribute, len(a.Values))
	copy(values, a.Values)
	return DenseElementsAttr{Type: t, Values: values}
}
