package spirv

import (
	"strconv"

	"github.com/gogpu/spvlower/ir"
)

// Dialect is the name of the target dialect.
const Dialect = "spv"

// Target dialect operation kinds. Each maps onto one SPIR-V instruction.
const (
	Constant           ir.OpKind = "spv.constant"
	Load               ir.OpKind = "spv.Load"
	Store              ir.OpKind = "spv.Store"
	AccessChain        ir.OpKind = "spv.AccessChain"
	Return             ir.OpKind = "spv.Return"
	Select             ir.OpKind = "spv.Select"
	AtomicAnd          ir.OpKind = "spv.AtomicAnd"
	AtomicOr           ir.OpKind = "spv.AtomicOr"
	GlobalInvocationID ir.OpKind = "spv.GlobalInvocationID"

	FAdd    ir.OpKind = "spv.FAdd"
	FSub    ir.OpKind = "spv.FSub"
	FMul    ir.OpKind = "spv.FMul"
	FDiv    ir.OpKind = "spv.FDiv"
	FRem    ir.OpKind = "spv.FRem"
	FNegate ir.OpKind = "spv.FNegate"
	IAdd    ir.OpKind = "spv.IAdd"
	ISub    ir.OpKind = "spv.ISub"
	IMul    ir.OpKind = "spv.IMul"
	SDiv    ir.OpKind = "spv.SDiv"
	UDiv    ir.OpKind = "spv.UDiv"
	SRem    ir.OpKind = "spv.SRem"
	SMod    ir.OpKind = "spv.SMod"
	UMod    ir.OpKind = "spv.UMod"

	ShiftLeftLogical     ir.OpKind = "spv.ShiftLeftLogical"
	ShiftRightLogical    ir.OpKind = "spv.ShiftRightLogical"
	ShiftRightArithmetic ir.OpKind = "spv.ShiftRightArithmetic"
	BitwiseAnd           ir.OpKind = "spv.BitwiseAnd"
	BitwiseOr            ir.OpKind = "spv.BitwiseOr"
	BitwiseXor           ir.OpKind = "spv.BitwiseXor"
	Not                  ir.OpKind = "spv.Not"
	LogicalAnd           ir.OpKind = "spv.LogicalAnd"
	LogicalOr            ir.OpKind = "spv.LogicalOr"
	LogicalEqual         ir.OpKind = "spv.LogicalEqual"
	LogicalNotEqual      ir.OpKind = "spv.LogicalNotEqual"

	IEqual                 ir.OpKind = "spv.IEqual"
	INotEqual              ir.OpKind = "spv.INotEqual"
	SLessThan              ir.OpKind = "spv.SLessThan"
	SLessThanEqual         ir.OpKind = "spv.SLessThanEqual"
	SGreaterThan           ir.OpKind = "spv.SGreaterThan"
	SGreaterThanEqual      ir.OpKind = "spv.SGreaterThanEqual"
	ULessThan              ir.OpKind = "spv.ULessThan"
	ULessThanEqual         ir.OpKind = "spv.ULessThanEqual"
	UGreaterThan           ir.OpKind = "spv.UGreaterThan"
	UGreaterThanEqual      ir.OpKind = "spv.UGreaterThanEqual"
	FOrdEqual              ir.OpKind = "spv.FOrdEqual"
	FOrdNotEqual           ir.OpKind = "spv.FOrdNotEqual"
	FOrdLessThan           ir.OpKind = "spv.FOrdLessThan"
	FOrdLessThanEqual      ir.OpKind = "spv.FOrdLessThanEqual"
	FOrdGreaterThan        ir.OpKind = "spv.FOrdGreaterThan"
	FOrdGreaterThanEqual   ir.OpKind = "spv.FOrdGreaterThanEqual"
	FUnordEqual            ir.OpKind = "spv.FUnordEqual"
	FUnordNotEqual         ir.OpKind = "spv.FUnordNotEqual"
	FUnordLessThan         ir.OpKind = "spv.FUnordLessThan"
	FUnordLessThanEqual    ir.OpKind = "spv.FUnordLessThanEqual"
	FUnordGreaterThan      ir.OpKind = "spv.FUnordGreaterThan"
	FUnordGreaterThanEqual ir.OpKind = "spv.FUnordGreaterThanEqual"

	SConvert    ir.OpKind = "spv.SConvert"
	UConvert    ir.OpKind = "spv.UConvert"
	FConvert    ir.OpKind = "spv.FConvert"
	ConvertSToF ir.OpKind = "spv.ConvertSToF"
	ConvertFToS ir.OpKind = "spv.ConvertFToS"

	GLSLFAbs        ir.OpKind = "spv.GLSL.FAbs"
	GLSLCeil        ir.OpKind = "spv.GLSL.Ceil"
	GLSLCos         ir.OpKind = "spv.GLSL.Cos"
	GLSLExp         ir.OpKind = "spv.GLSL.Exp"
	GLSLLog         ir.OpKind = "spv.GLSL.Log"
	GLSLInverseSqrt ir.OpKind = "spv.GLSL.InverseSqrt"
	GLSLSin         ir.OpKind = "spv.GLSL.Sin"
	GLSLSqrt        ir.OpKind = "spv.GLSL.Sqrt"
	GLSLTanh        ir.OpKind = "spv.GLSL.Tanh"
)

// Attribute names used by target operations.
const (
	AttrValue       = "value"
	AttrMemoryScope = "memory_scope"
	AttrSemantics   = "semantics"
	AttrDimension   = "dimension"
)

// opcodes maps one-to-one target kinds onto their instruction.
var opcodes = map[ir.OpKind]OpCode{
	Load:        OpLoad,
	Store:       OpStore,
	AccessChain: OpAccessChain,
	Return:      OpReturn,
	Select:      OpSelect,
	AtomicAnd:   OpAtomicAnd,
	AtomicOr:    OpAtomicOr,

	FAdd: OpFAdd, FSub: OpFSub, FMul: OpFMul, FDiv: OpFDiv, FRem: OpFRem, FNegate: OpFNegate,
	IAdd: OpIAdd, ISub: OpISub, IMul: OpIMul, SDiv: OpSDiv, UDiv: OpUDiv,
	SRem: OpSRem, SMod: OpSMod, UMod: OpUMod,

	ShiftLeftLogical:     OpShiftLeftLogical,
	ShiftRightLogical:    OpShiftRightLogical,
	ShiftRightArithmetic: OpShiftRightArithmetic,
	BitwiseAnd:           OpBitwiseAnd,
	BitwiseOr:            OpBitwiseOr,
	BitwiseXor:           OpBitwiseXor,
	Not:                  OpNot,
	LogicalAnd:           OpLogicalAnd,
	LogicalOr:            OpLogicalOr,
	LogicalEqual:         OpLogicalEqual,
	LogicalNotEqual:      OpLogicalNotEqual,

	IEqual: OpIEqual, INotEqual: OpINotEqual,
	SLessThan: OpSLessThan, SLessThanEqual: OpSLessThanEqual,
	SGreaterThan: OpSGreaterThan, SGreaterThanEqual: OpSGreaterThanEqual,
	ULessThan: OpULessThan, ULessThanEqual: OpULessThanEqual,
	UGreaterThan: OpUGreaterThan, UGreaterThanEqual: OpUGreaterThanEqual,

	FOrdEqual: OpFOrdEqual, FOrdNotEqual: OpFOrdNotEqual,
	FOrdLessThan: OpFOrdLessThan, FOrdLessThanEqual: OpFOrdLessThanEqual,
	FOrdGreaterThan: OpFOrdGreaterThan, FOrdGreaterThanEqual: OpFOrdGreaterThanEqual,
	FUnordEqual: OpFUnordEqual, FUnordNotEqual: OpFUnordNotEqual,
	FUnordLessThan: OpFUnordLessThan, FUnordLessThanEqual: OpFUnordLessThanEqual,
	FUnordGreaterThan: OpFUnordGreaterThan, FUnordGreaterThanEqual: OpFUnordGreaterThanEqual,

	SConvert: OpSConvert, UConvert: OpUConvert, FConvert: OpFConvert,
	ConvertSToF: OpConvertSToF, ConvertFToS: OpConvertFToS,
}

// GLSL.std.450 extended instruction numbers.
const (
	GLSLInstFAbs        uint32 = 4
	GLSLInstCeil        uint32 = 9
	GLSLInstSin         uint32 = 13
	GLSLInstCos         uint32 = 14
	GLSLInstTanh        uint32 = 21
	GLSLInstExp         uint32 = 27
	GLSLInstLog         uint32 = 28
	GLSLInstSqrt        uint32 = 31
	GLSLInstInverseSqrt uint32 = 32
)

var glslInstructions = map[ir.OpKind]uint32{
	GLSLFAbs:        GLSLInstFAbs,
	GLSLCeil:        GLSLInstCeil,
	GLSLSin:         GLSLInstSin,
	GLSLCos:         GLSLInstCos,
	GLSLTanh:        GLSLInstTanh,
	GLSLExp:         GLSLInstExp,
	GLSLLog:         GLSLInstLog,
	GLSLSqrt:        GLSLInstSqrt,
	GLSLInverseSqrt: GLSLInstInverseSqrt,
}

// OpcodeOf returns the instruction a one-to-one target kind maps to.
func OpcodeOf(kind ir.OpKind) (OpCode, bool) {
	op, ok := opcodes[kind]
	return op, ok
}

// GLSLInstructionOf returns the GLSL.std.450 instruction number of kind.
func GLSLInstructionOf(kind ir.OpKind) (uint32, bool) {
	inst, ok := glslInstructions[kind]
	return inst, ok
}

// IsTargetOp reports whether op belongs to the target dialect.
func IsTargetOp(op *ir.Operation) bool {
	return op.Kind.Dialect() == Dialect
}

// Scope is a SPIR-V execution or memory scope.
type Scope uint32

const (
	ScopeCrossDevice Scope = 0
	ScopeDevice      Scope = 1
	ScopeWorkgroup   Scope = 2
	ScopeSubgroup    Scope = 3
	ScopeInvocation  Scope = 4
)

var scopeNames = map[Scope]string{
	ScopeCrossDevice: "CrossDevice",
	ScopeDevice:      "Device",
	ScopeWorkgroup:   "Workgroup",
	ScopeSubgroup:    "Subgroup",
	ScopeInvocation:  "Invocation",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "Scope(" + strconv.FormatUint(uint64(s), 10) + ")"
}

// ParseScope returns the scope with the given name.
func ParseScope(name string) (Scope, bool) {
	for s, n := range scopeNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// MemorySemantics is a SPIR-V memory semantics mask.
type MemorySemantics uint32

const (
	MemorySemanticsNone           MemorySemantics = 0x0
	MemorySemanticsAcquire        MemorySemantics = 0x2
	MemorySemanticsRelease        MemorySemantics = 0x4
	MemorySemanticsAcquireRelease MemorySemantics = 0x8
)

var semanticsNames = map[MemorySemantics]string{
	MemorySemanticsNone:           "None",
	MemorySemanticsAcquire:        "Acquire",
	MemorySemanticsRelease:        "Release",
	MemorySemanticsAcquireRelease: "AcquireRelease",
}

func (m MemorySemantics) String() string {
	if name, ok := semanticsNames[m]; ok {
		return name
	}
	return "MemorySemantics(0x" + strconv.FormatUint(uint64(m), 16) + ")"
}

// ParseMemorySemantics returns the semantics with the given name.
func ParseMemorySemantics(name string) (MemorySemantics, bool) {
	for m, n := range semanticsNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// StorageClassOf maps an IR storage class onto its SPIR-V encoding.
func StorageClassOf(sc ir.StorageClass) StorageClass {
	switch sc {
	case ir.Uniform:
		return StorageClassUniform
	case ir.Workgroup:
		return StorageClassWorkgroup
	case ir.Private:
		return StorageClassPrivate
	case ir.StorageClassFunction:
		return StorageClassFunction
	case ir.Input:
		return StorageClassInput
	default:
		return StorageClassStorageBuffer
	}
}
