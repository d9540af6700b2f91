package lowering

import (
	"math"
	"math/big"

	"go.uber.org/zap"

	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
)

// TypeConverter maps source types and constants into the target type
// universe described by a spirv.Options.
type TypeConverter struct {
	options spirv.Options
	logger  *zap.Logger
}

// NewTypeConverter creates a converter for the given target environment.
// A nil logger discards diagnostics.
func NewTypeConverter(options spirv.Options, logger *zap.Logger) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeConverter{options: options, logger: logger}
}

// Options returns the target environment.
func (c *TypeConverter) Options() spirv.Options { return c.options }

// Logger returns the converter's logger.
func (c *TypeConverter) Logger() *zap.Logger { return c.logger }

// ConvertType returns the target type for t, or false if t has none.
//
//nolint:gocyclo,cyclop // one case per type
func (c *TypeConverter) ConvertType(t ir.Type) (ir.Type, bool) {
	switch t := t.(type) {
	case ir.IntegerType, ir.IndexType, ir.FloatType:
		return c.convertScalar(t)

	case ir.VectorType:
		if len(t.Shape) != 1 || t.Shape[0] < 2 || t.Shape[0] > 4 {
			return nil, false
		}
		elem, ok := c.convertScalar(t.Elem)
		if !ok {
			return nil, false
		}
		return ir.VectorType{Shape: []int64{t.Shape[0]}, Elem: elem}, true

	case ir.TensorType:
		if !ir.HasStaticShape(t.Shape) {
			return nil, false
		}
		elem, ok := c.convertScalar(t.Elem)
		if !ok {
			return nil, false
		}
		stride, ok := ir.ByteSize(elem)
		n := ir.NumElements(t.Shape)
		if !ok || n <= 0 || n > math.MaxUint32 {
			return nil, false
		}
		return ir.ArrayType{Elem: elem, Count: uint32(n), Stride: stride}, true

	case ir.MemRefType:
		return c.convertMemRef(t)

	case ir.ArrayType, ir.RuntimeArrayType, ir.StructType, ir.PointerType:
		// already in the target universe
		return t, true
	}
	return nil, false
}

func (c *TypeConverter) convertScalar(t ir.Type) (ir.Type, bool) {
	switch t := t.(type) {
	case ir.IntegerType:
		if t.Width == 1 {
			return ir.I1, true
		}
		if c.options.SupportsIntWidth(t.Width) {
			return t, true
		}
		c.logger.Debug("integer width not supported, using 32 bits", zap.Stringer("type", t))
		return ir.IntegerType{Width: 32, Signedness: t.Signedness}, true

	case ir.IndexType:
		return ir.I32, true

	case ir.FloatType:
		if c.options.SupportsFloatWidth(t.Width) {
			return t, true
		}
		c.logger.Debug("float width not supported, using 32 bits", zap.Stringer("type", t))
		return ir.F32, true
	}
	return nil, false
}

// convertMemRef wraps the element storage in a single-member struct behind
// a pointer. The array holds as many converted elements as needed to cover
// the source byte size, so narrow elements are packed into words.
func (c *TypeConverter) convertMemRef(t ir.MemRefType) (ir.Type, bool) {
	var elem ir.Type
	var ok bool
	if vt, isVec := t.Elem.(ir.VectorType); isVec {
		elem, ok = c.ConvertType(vt)
	} else {
		elem, ok = c.convertScalar(t.Elem)
	}
	if !ok {
		return nil, false
	}
	elemBytes, ok := ir.ByteSize(elem)
	if !ok || elemBytes == 0 {
		return nil, false
	}

	var storage ir.Type
	if ir.HasStaticShape(t.Shape) {
		srcBytes, ok := ir.ByteSize(t.Elem)
		if !ok {
			return nil, false
		}
		total := ir.NumElements(t.Shape) * int64(srcBytes)
		count := (total + int64(elemBytes) - 1) / int64(elemBytes)
		if count <= 0 || count > math.MaxUint32 {
			return nil, false
		}
		storage = ir.ArrayType{Elem: elem, Count: uint32(count), Stride: elemBytes}
	} else {
		if len(t.Shape) != 1 {
			return nil, false
		}
		storage = ir.RuntimeArrayType{Elem: elem, Stride: elemBytes}
	}

	return ir.PointerType{
		Pointee: ir.StructType{Members: []ir.Type{storage}, Offsets: []uint32{0}},
		Space:   t.Space,
	}, true
}

// storageElement returns the element type of a converted memref.
func storageElement(t ir.Type) (ir.Type, bool) {
	pt, ok := t.(ir.PointerType)
	if !ok {
		return nil, false
	}
	st, ok := pt.Pointee.(ir.StructType)
	if !ok || len(st.Members) != 1 {
		return nil, false
	}
	switch arr := st.Members[0].(type) {
	case ir.ArrayType:
		return arr.Elem, true
	case ir.RuntimeArrayType:
		return arr.Elem, true
	}
	return nil, false
}

// ConvertBoolAttr normalizes a boolean or 0/1 integer constant to a BoolAttr.
func ConvertBoolAttr(a ir.Attribute) (ir.BoolAttr, bool) {
	switch a := a.(type) {
	case ir.BoolAttr:
		return a, true
	case ir.IntegerAttr:
		return ir.BoolAttr{Value: a.Bits().Sign() != 0}, true
	}
	return ir.BoolAttr{}, false
}

// ConvertIntegerAttr re-encodes a as a constant of type dst. The value is
// kept when its bit pattern fits dst as an unsigned number. Otherwise, if
// it fits as a signed dst-wide number, it is reinterpreted as signed and a
// warning is logged; anything else fails.
func (c *TypeConverter) ConvertIntegerAttr(a ir.IntegerAttr, dst ir.IntegerType) (ir.IntegerAttr, error) {
	width := ir.IntegerWidth(a.Type)
	if width == 0 {
		return ir.IntegerAttr{}, &Error{Kind: ErrUnsupportedAttribute,
			Message: "attribute " + a.String() + " is not an integer"}
	}
	bits := ir.BitPattern(a.Value, width)
	value := ir.SignedValue(a.Value, width)
	if it, ok := a.Type.(ir.IntegerType); ok && it.Signedness == ir.Unsigned {
		value = bits
	}

	if bits.BitLen() <= int(dst.Width) {
		return ir.NewIntegerAttrBig(dst, value), nil
	}

	if fitsSigned(value, dst.Width) {
		out := ir.NewIntegerAttrBig(dst, value)
		c.logger.Warn("integer attribute reinterpreted as signed",
			zap.Stringer("attribute", a),
			zap.Stringer("converted", out),
			zap.Stringer("type", dst))
		return out, nil
	}

	return ir.IntegerAttr{}, &Error{Kind: ErrUnsupportedAttribute,
		Message: "attribute " + a.String() + " cannot fit into target type " + dst.String()}
}

// fitsSigned reports whether v is representable as a width-bit two's
// complement number.
func fitsSigned(v *big.Int, width uint32) bool {
	if width == 0 {
		return false
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
	lo := new(big.Int).Neg(limit)
	return v.Cmp(lo) >= 0 && v.Cmp(limit) < 0
}

// ConvertFloatAttr re-encodes a as a 32-bit float constant. Only f32
// destinations are supported and the conversion must be exact.
func (c *TypeConverter) ConvertFloatAttr(a ir.FloatAttr, dst ir.FloatType) (ir.FloatAttr, error) {
	if dst.Width != 32 {
		return ir.FloatAttr{}, &Error{Kind: ErrUnsupportedAttribute,
			Message: "float attributes can only be converted to f32, not " + dst.String()}
	}
	v := a.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ir.NewFloatAttr(ir.F32, float64(float32(v))), nil
	}
	f := float32(v)
	if float64(f) != v {
		return ir.FloatAttr{}, &Error{Kind: ErrUnsupportedAttribute,
			Message: "attribute " + a.String() + " cannot fit into converted type f32"}
	}
	return ir.NewFloatAttr(ir.F32, float64(f)), nil
}

// ConvertDenseAttr re-encodes the elements of a composite constant of
// source type src for the converted type dst. Rank-2 and higher tensors are
// linearized first.
func (c *TypeConverter) ConvertDenseAttr(a ir.DenseElementsAttr, src, dst ir.Type) (ir.DenseElementsAttr, error) {
	shape, srcElem, ok := ir.ShapeOf(src)
	if !ok {
		return ir.DenseElementsAttr{}, &Error{Kind: ErrUnsupportedType,
			Message: "composite constant of non-shaped type " + src.String()}
	}

	_, isTensor := src.(ir.TensorType)
	if len(shape) > 1 {
		if !isTensor {
			return ir.DenseElementsAttr{}, &Error{Kind: ErrUnsupportedType,
				Message: "multi-dimensional vector constant " + src.String()}
		}
		shape = []int64{ir.NumElements(shape)}
		a = a.Reshape(ir.TensorType{Shape: shape, Elem: srcElem})
	}

	var dstElem ir.Type
	switch dt := dst.(type) {
	case ir.ArrayType:
		dstElem = dt.Elem
	case ir.VectorType:
		dstElem = dt.Elem
	default:
		return ir.DenseElementsAttr{}, &Error{Kind: ErrUnsupportedType,
			Message: "composite constant converted to non-composite type " + dst.String()}
	}

	if ir.TypesEqual(srcElem, dstElem) {
		return a, nil
	}

	elements := make([]ir.Attribute, len(a.Values))
	switch {
	case isFloat(srcElem):
		ft, _ := dstElem.(ir.FloatType)
		for i, e := range a.Values {
			fa, ok := e.(ir.FloatAttr)
			if !ok {
				return ir.DenseElementsAttr{}, &Error{Kind: ErrUnsupportedAttribute,
					Message: "non-float element in float composite"}
			}
			out, err := c.ConvertFloatAttr(fa, ft)
			if err != nil {
				return ir.DenseElementsAttr{}, err
			}
			elements[i] = out
		}

	case ir.IsBool(srcElem):
		return ir.DenseElementsAttr{}, &Error{Kind: ErrUnsupportedAttribute,
			Message: "boolean composite element type cannot change"}

	default:
		it, ok := dstElem.(ir.IntegerType)
		if !ok {
			return ir.DenseElementsAttr{}, &Error{Kind: ErrUnsupportedType,
				Message: "integer composite converted to " + dst.String()}
		}
		for i, e := range a.Values {
			ia, ok := e.(ir.IntegerAttr)
			if !ok {
				return ir.DenseElementsAttr{}, &Error{Kind: ErrUnsupportedAttribute,
					Message: "non-integer element in integer composite"}
			}
			out, err := c.ConvertIntegerAttr(ia, it)
			if err != nil {
				return ir.DenseElementsAttr{}, err
			}
			elements[i] = out
		}
	}

	var attrType ir.Type = ir.VectorType{Shape: shape, Elem: dstElem}
	if isTensor {
		attrType = ir.TensorType{Shape: shape, Elem: dstElem}
	}
	return ir.DenseElementsAttr{Type: attrType, Values: elements}, nil
}

func isFloat(t ir.Type) bool {
	_, ok := t.(ir.FloatType)
	return ok
}
