package device

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/spvlower/spirv"
)

var errDivideByZero = errors.New("integer division by zero")

// signExtend interprets the low width bits of x as a signed integer.
func signExtend(x uint64, width uint32) int64 {
	if width >= 64 {
		return int64(x)
	}
	shift := 64 - width
	return int64(x<<shift) >> shift
}

// truncate keeps the low width bits of x.
func truncate(x uint64, width uint32) uint64 {
	if width >= 64 {
		return x
	}
	return x & (uint64(1)<<width - 1)
}

func toFloat(x uint64, width uint32) float64 {
	if width == 32 {
		return float64(math.Float32frombits(uint32(x)))
	}
	return math.Float64frombits(x)
}

func fromFloat(f float64, width uint32) uint64 {
	if width == 32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func intOp(fn func(a, b uint64) uint64) binaryFunc {
	return func(t *typeInfo, a, b uint64) (uint64, error) {
		return truncate(fn(a, b), t.width), nil
	}
}

func signedOp(fn func(a, b int64) (int64, error)) binaryFunc {
	return func(t *typeInfo, a, b uint64) (uint64, error) {
		r, err := fn(signExtend(a, t.width), signExtend(b, t.width))
		return truncate(uint64(r), t.width), err
	}
}

func unsignedOp(fn func(a, b uint64) (uint64, error)) binaryFunc {
	return func(t *typeInfo, a, b uint64) (uint64, error) {
		r, err := fn(truncate(a, t.width), truncate(b, t.width))
		return truncate(r, t.width), err
	}
}

func floatOp(fn func(a, b float64) float64) binaryFunc {
	return func(t *typeInfo, a, b uint64) (uint64, error) {
		return fromFloat(fn(toFloat(a, t.width), toFloat(b, t.width)), t.width), nil
	}
}

func signedCmp(fn func(a, b int64) bool) binaryFunc {
	return func(t *typeInfo, a, b uint64) (uint64, error) {
		return boolBits(fn(signExtend(a, t.width), signExtend(b, t.width))), nil
	}
}

func unsignedCmp(fn func(a, b uint64) bool) binaryFunc {
	return func(t *typeInfo, a, b uint64) (uint64, error) {
		return boolBits(fn(truncate(a, t.width), truncate(b, t.width))), nil
	}
}

// floatCmp evaluates an ordered comparison, or an unordered one when
// unordered is set: NaN operands make ordered comparisons false and
// unordered ones true.
func floatCmp(unordered bool, fn func(a, b float64) bool) binaryFunc {
	return func(t *typeInfo, a, b uint64) (uint64, error) {
		x, y := toFloat(a, t.width), toFloat(b, t.width)
		if math.IsNaN(x) || math.IsNaN(y) {
			return boolBits(unordered), nil
		}
		return boolBits(fn(x, y)), nil
	}
}

func shiftAmount(t *typeInfo, b uint64) (uint64, error) {
	if b >= uint64(t.width) {
		return 0, fmt.Errorf("shift amount %d exceeds width %d", b, t.width)
	}
	return b, nil
}

var binaryOps = map[spirv.OpCode]binaryFunc{
	spirv.OpIAdd: intOp(func(a, b uint64) uint64 { return a + b }),
	spirv.OpISub: intOp(func(a, b uint64) uint64 { return a - b }),
	spirv.OpIMul: intOp(func(a, b uint64) uint64 { return a * b }),
	spirv.OpSDiv: signedOp(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a / b, nil
	}),
	spirv.OpUDiv: unsignedOp(func(a, b uint64) (uint64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a / b, nil
	}),
	spirv.OpSRem: signedOp(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a % b, nil
	}),
	// SMod takes the sign of the divisor.
	spirv.OpSMod: signedOp(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return r, nil
	}),
	spirv.OpUMod: unsignedOp(func(a, b uint64) (uint64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a % b, nil
	}),

	spirv.OpFAdd: floatOp(func(a, b float64) float64 { return a + b }),
	spirv.OpFSub: floatOp(func(a, b float64) float64 { return a - b }),
	spirv.OpFMul: floatOp(func(a, b float64) float64 { return a * b }),
	spirv.OpFDiv: floatOp(func(a, b float64) float64 { return a / b }),
	spirv.OpFRem: floatOp(math.Mod),

	spirv.OpShiftLeftLogical: func(t *typeInfo, a, b uint64) (uint64, error) {
		n, err := shiftAmount(t, b)
		return truncate(a<<n, t.width), err
	},
	spirv.OpShiftRightLogical: func(t *typeInfo, a, b uint64) (uint64, error) {
		n, err := shiftAmount(t, b)
		return truncate(a, t.width) >> n, err
	},
	spirv.OpShiftRightArithmetic: func(t *typeInfo, a, b uint64) (uint64, error) {
		n, err := shiftAmount(t, b)
		return truncate(uint64(signExtend(a, t.width)>>n), t.width), err
	},
	spirv.OpBitwiseAnd: intOp(func(a, b uint64) uint64 { return a & b }),
	spirv.OpBitwiseOr:  intOp(func(a, b uint64) uint64 { return a | b }),
	spirv.OpBitwiseXor: intOp(func(a, b uint64) uint64 { return a ^ b }),

	spirv.OpLogicalAnd:      intOp(func(a, b uint64) uint64 { return boolBits(a != 0 && b != 0) }),
	spirv.OpLogicalOr:       intOp(func(a, b uint64) uint64 { return boolBits(a != 0 || b != 0) }),
	spirv.OpLogicalEqual:    intOp(func(a, b uint64) uint64 { return boolBits((a != 0) == (b != 0)) }),
	spirv.OpLogicalNotEqual: intOp(func(a, b uint64) uint64 { return boolBits((a != 0) != (b != 0)) }),

	spirv.OpIEqual:            unsignedCmp(func(a, b uint64) bool { return a == b }),
	spirv.OpINotEqual:         unsignedCmp(func(a, b uint64) bool { return a != b }),
	spirv.OpULessThan:         unsignedCmp(func(a, b uint64) bool { return a < b }),
	spirv.OpULessThanEqual:    unsignedCmp(func(a, b uint64) bool { return a <= b }),
	spirv.OpUGreaterThan:      unsignedCmp(func(a, b uint64) bool { return a > b }),
	spirv.OpUGreaterThanEqual: unsignedCmp(func(a, b uint64) bool { return a >= b }),
	spirv.OpSLessThan:         signedCmp(func(a, b int64) bool { return a < b }),
	spirv.OpSLessThanEqual:    signedCmp(func(a, b int64) bool { return a <= b }),
	spirv.OpSGreaterThan:      signedCmp(func(a, b int64) bool { return a > b }),
	spirv.OpSGreaterThanEqual: signedCmp(func(a, b int64) bool { return a >= b }),

	spirv.OpFOrdEqual:              floatCmp(false, func(a, b float64) bool { return a == b }),
	spirv.OpFOrdNotEqual:           floatCmp(false, func(a, b float64) bool { return a != b }),
	spirv.OpFOrdLessThan:           floatCmp(false, func(a, b float64) bool { return a < b }),
	spirv.OpFOrdLessThanEqual:      floatCmp(false, func(a, b float64) bool { return a <= b }),
	spirv.OpFOrdGreaterThan:        floatCmp(false, func(a, b float64) bool { return a > b }),
	spirv.OpFOrdGreaterThanEqual:   floatCmp(false, func(a, b float64) bool { return a >= b }),
	spirv.OpFUnordEqual:            floatCmp(true, func(a, b float64) bool { return a == b }),
	spirv.OpFUnordNotEqual:         floatCmp(true, func(a, b float64) bool { return a != b }),
	spirv.OpFUnordLessThan:         floatCmp(true, func(a, b float64) bool { return a < b }),
	spirv.OpFUnordLessThanEqual:    floatCmp(true, func(a, b float64) bool { return a <= b }),
	spirv.OpFUnordGreaterThan:      floatCmp(true, func(a, b float64) bool { return a > b }),
	spirv.OpFUnordGreaterThanEqual: floatCmp(true, func(a, b float64) bool { return a >= b }),
}

var unaryOps = map[spirv.OpCode]unaryFunc{
	spirv.OpSNegate: func(src, _ *typeInfo, x uint64) (uint64, error) {
		return truncate(-x, src.width), nil
	},
	spirv.OpFNegate: func(src, _ *typeInfo, x uint64) (uint64, error) {
		return fromFloat(-toFloat(x, src.width), src.width), nil
	},
	spirv.OpNot: func(src, _ *typeInfo, x uint64) (uint64, error) {
		return truncate(^x, src.width), nil
	},
	spirv.OpLogicalNot: func(_, _ *typeInfo, x uint64) (uint64, error) {
		return boolBits(x == 0), nil
	},
	spirv.OpSConvert: func(src, dst *typeInfo, x uint64) (uint64, error) {
		return truncate(uint64(signExtend(x, src.width)), dst.width), nil
	},
	spirv.OpUConvert: func(src, dst *typeInfo, x uint64) (uint64, error) {
		return truncate(truncate(x, src.width), dst.width), nil
	},
	spirv.OpFConvert: func(src, dst *typeInfo, x uint64) (uint64, error) {
		return fromFloat(toFloat(x, src.width), dst.width), nil
	},
	spirv.OpConvertSToF: func(src, dst *typeInfo, x uint64) (uint64, error) {
		return fromFloat(float64(signExtend(x, src.width)), dst.width), nil
	},
	spirv.OpConvertUToF: func(src, dst *typeInfo, x uint64) (uint64, error) {
		return fromFloat(float64(truncate(x, src.width)), dst.width), nil
	},
	spirv.OpConvertFToS: func(src, dst *typeInfo, x uint64) (uint64, error) {
		f := math.Trunc(toFloat(x, src.width))
		if math.IsNaN(f) || f < -(1<<63) || f >= 1<<63 {
			return 0, fmt.Errorf("%v does not fit a %d-bit integer", f, dst.width)
		}
		return truncate(uint64(int64(f)), dst.width), nil
	},
	spirv.OpConvertFToU: func(src, dst *typeInfo, x uint64) (uint64, error) {
		f := math.Trunc(toFloat(x, src.width))
		if math.IsNaN(f) || f < 0 || f >= 1<<64 {
			return 0, fmt.Errorf("%v does not fit a %d-bit unsigned integer", f, dst.width)
		}
		return truncate(uint64(f), dst.width), nil
	},
}

// glsl evaluates a GLSL.std.450 instruction on one float component.
func glsl(inst uint32, t *typeInfo, x uint64) (uint64, error) {
	if t.kind != kindFloat {
		return 0, fmt.Errorf("GLSL instruction %d on a non-float operand", inst)
	}
	var fn func(float64) float64
	switch inst {
	case spirv.GLSLInstFAbs:
		fn = math.Abs
	case spirv.GLSLInstCeil:
		fn = math.Ceil
	case spirv.GLSLInstSin:
		fn = math.Sin
	case spirv.GLSLInstCos:
		fn = math.Cos
	case spirv.GLSLInstTanh:
		fn = math.Tanh
	case spirv.GLSLInstExp:
		fn = math.Exp
	case spirv.GLSLInstLog:
		fn = math.Log
	case spirv.GLSLInstSqrt:
		fn = math.Sqrt
	case spirv.GLSLInstInverseSqrt:
		fn = func(v float64) float64 { return 1 / math.Sqrt(v) }
	default:
		return 0, fmt.Errorf("unsupported GLSL instruction %d", inst)
	}
	return fromFloat(fn(toFloat(x, t.width)), t.width), nil
}
