package spirv

import (
	"fmt"
	"io"
	"strings"
)

var opcodeNames = map[OpCode]string{
	OpNop: "OpNop", OpName: "OpName", OpExtension: "OpExtension", OpExtInstImport: "OpExtInstImport", OpExtInst: "OpExtInst",
	OpMemoryModel: "OpMemoryModel", OpEntryPoint: "OpEntryPoint", OpExecutionMode: "OpExecutionMode",
	OpCapability: "OpCapability", OpTypeVoid: "OpTypeVoid", OpTypeBool: "OpTypeBool",
	OpTypeInt: "OpTypeInt", OpTypeFloat: "OpTypeFloat", OpTypeVector: "OpTypeVector",
	OpTypeArray: "OpTypeArray", OpTypeRuntimeArray: "OpTypeRuntimeArray", OpTypeStruct: "OpTypeStruct",
	OpTypePointer: "OpTypePointer", OpTypeFunction: "OpTypeFunction",
	OpConstantTrue: "OpConstantTrue", OpConstantFalse: "OpConstantFalse", OpConstant: "OpConstant",
	OpConstantComposite: "OpConstantComposite", OpFunction: "OpFunction",
	OpFunctionParameter: "OpFunctionParameter", OpFunctionEnd: "OpFunctionEnd",
	OpVariable: "OpVariable", OpLoad: "OpLoad", OpStore: "OpStore", OpAccessChain: "OpAccessChain",
	OpDecorate: "OpDecorate", OpMemberDecorate: "OpMemberDecorate", OpCompositeExtract: "OpCompositeExtract",
	OpConvertFToU: "OpConvertFToU", OpConvertFToS: "OpConvertFToS", OpConvertSToF: "OpConvertSToF",
	OpConvertUToF: "OpConvertUToF", OpUConvert: "OpUConvert", OpSConvert: "OpSConvert",
	OpFConvert: "OpFConvert", OpSNegate: "OpSNegate", OpFNegate: "OpFNegate",
	OpIAdd: "OpIAdd", OpFAdd: "OpFAdd", OpISub: "OpISub", OpFSub: "OpFSub",
	OpIMul: "OpIMul", OpFMul: "OpFMul", OpUDiv: "OpUDiv", OpSDiv: "OpSDiv", OpFDiv: "OpFDiv",
	OpUMod: "OpUMod", OpSRem: "OpSRem", OpSMod: "OpSMod", OpFRem: "OpFRem",
	OpLogicalEqual: "OpLogicalEqual", OpLogicalNotEqual: "OpLogicalNotEqual",
	OpLogicalOr: "OpLogicalOr", OpLogicalAnd: "OpLogicalAnd", OpLogicalNot: "OpLogicalNot",
	OpSelect: "OpSelect", OpIEqual: "OpIEqual", OpINotEqual: "OpINotEqual",
	OpUGreaterThan: "OpUGreaterThan", OpSGreaterThan: "OpSGreaterThan",
	OpUGreaterThanEqual: "OpUGreaterThanEqual", OpSGreaterThanEqual: "OpSGreaterThanEqual",
	OpULessThan: "OpULessThan", OpSLessThan: "OpSLessThan",
	OpULessThanEqual: "OpULessThanEqual", OpSLessThanEqual: "OpSLessThanEqual",
	OpFOrdEqual: "OpFOrdEqual", OpFUnordEqual: "OpFUnordEqual",
	OpFOrdNotEqual: "OpFOrdNotEqual", OpFUnordNotEqual: "OpFUnordNotEqual",
	OpFOrdLessThan: "OpFOrdLessThan", OpFUnordLessThan: "OpFUnordLessThan",
	OpFOrdGreaterThan: "OpFOrdGreaterThan", OpFUnordGreaterThan: "OpFUnordGreaterThan",
	OpFOrdLessThanEqual: "OpFOrdLessThanEqual", OpFUnordLessThanEqual: "OpFUnordLessThanEqual",
	OpFOrdGreaterThanEqual: "OpFOrdGreaterThanEqual", OpFUnordGreaterThanEqual: "OpFUnordGreaterThanEqual",
	OpShiftRightLogical: "OpShiftRightLogical", OpShiftRightArithmetic: "OpShiftRightArithmetic",
	OpShiftLeftLogical: "OpShiftLeftLogical", OpBitwiseOr: "OpBitwiseOr", OpBitwiseXor: "OpBitwiseXor",
	OpBitwiseAnd: "OpBitwiseAnd", OpNot: "OpNot", OpAtomicAnd: "OpAtomicAnd", OpAtomicOr: "OpAtomicOr",
	OpLabel: "OpLabel", OpReturn: "OpReturn",
}

var storageClassNames = map[uint32]string{
	0: "UniformConstant", 1: "Input", 2: "Uniform", 3: "Output",
	4: "Workgroup", 5: "CrossWorkgroup", 6: "Private", 7: "Function",
	12: "StorageBuffer",
}

var decorationNames = map[uint32]string{
	2: "Block", 6: "ArrayStride", 11: "BuiltIn", 24: "NonWritable",
	33: "Binding", 34: "DescriptorSet", 35: "Offset",
}

var builtInNames = map[uint32]string{
	24: "NumWorkgroups", 26: "WorkgroupId", 27: "LocalInvocationId",
	28: "GlobalInvocationId", 29: "LocalInvocationIndex",
}

var executionModeNames = map[uint32]string{17: "LocalSize", 18: "LocalSizeHint"}

var executionModelNames = map[uint32]string{0: "Vertex", 4: "Fragment", 5: "GLCompute", 6: "Kernel"}

// OpcodeName returns the mnemonic of an opcode.
func OpcodeName(op OpCode) string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op%d", op)
}

// hasResultType reports whether the instruction's first two words are a
// result type and a result ID.
func hasResultType(op OpCode) bool {
	switch op {
	case OpExtInst, OpConstantTrue, OpConstantFalse, OpConstant, OpConstantComposite,
		OpFunction, OpFunctionParameter, OpVariable, OpLoad, OpAccessChain, OpCompositeExtract,
		OpSelect, OpAtomicAnd, OpAtomicOr:
		return true
	}
	return op >= OpConvertFToU && op <= OpNot
}

// Disassemble writes a textual listing of bin in spvasm style.
func Disassemble(w io.Writer, bin *Binary) error {
	d := &disassembler{}
	d.printf("; SPIR-V\n")
	d.printf("; Version: %s\n", bin.Header.Version)
	d.printf("; Generator: 0x%08X\n", bin.Header.Generator)
	d.printf("; Bound: %d\n", bin.Header.Bound)
	d.printf("; Schema: %d\n\n", bin.Header.Schema)
	for _, inst := range bin.Instructions {
		d.instruction(inst)
	}
	_, err := io.WriteString(w, d.sb.String())
	return err
}

type disassembler struct {
	sb strings.Builder
}

func (d *disassembler) printf(format string, args ...any) {
	fmt.Fprintf(&d.sb, format, args...)
}

func id(n uint32) string {
	return fmt.Sprintf("%%_%d", n)
}

func lookup(m map[uint32]string, v uint32) string {
	if s, ok := m[v]; ok {
		return s
	}
	return fmt.Sprintf("%d", v)
}

func (d *disassembler) ids(ops []uint32) {
	for _, op := range ops {
		d.printf(" %s", id(op))
	}
}

func (d *disassembler) literals(ops []uint32) {
	for _, op := range ops {
		d.printf(" %d", op)
	}
}

//nolint:gocyclo,cyclop,funlen // one case per instruction layout
func (d *disassembler) instruction(inst Instruction) {
	name := OpcodeName(inst.Opcode)
	ops := inst.Words

	if hasResultType(inst.Opcode) && len(ops) >= 2 {
		d.printf("         %s = %s %s", id(ops[1]), name, id(ops[0]))
		switch inst.Opcode {
		case OpConstant:
			d.literals(ops[2:])
		case OpVariable:
			d.printf(" %s", lookup(storageClassNames, ops[2]))
		case OpFunction:
			d.printf(" None %s", id(ops[3]))
		case OpCompositeExtract:
			d.printf(" %s", id(ops[2]))
			d.literals(ops[3:])
		case OpExtInst:
			d.printf(" %s %d", id(ops[2]), ops[3])
			d.ids(ops[4:])
		default:
			d.ids(ops[2:])
		}
		d.printf("\n")
		return
	}

	switch inst.Opcode {
	case OpCapability:
		d.printf("               %s %s\n", name, Capability(ops[0]))

	case OpExtension:
		str, _ := DecodeString(ops)
		d.printf("               %s %q\n", name, str)

	case OpExtInstImport:
		str, _ := DecodeString(ops[1:])
		d.printf("         %s = %s %q\n", id(ops[0]), name, str)

	case OpMemoryModel:
		addr := lookup(map[uint32]string{0: "Logical"}, ops[0])
		mem := lookup(map[uint32]string{0: "Simple", 1: "GLSL450", 3: "Vulkan"}, ops[1])
		d.printf("               %s %s %s\n", name, addr, mem)

	case OpEntryPoint:
		str, strWords := DecodeString(ops[2:])
		d.printf("               %s %s %s %q", name, lookup(executionModelNames, ops[0]), id(ops[1]), str)
		d.ids(ops[2+strWords:])
		d.printf("\n")

	case OpExecutionMode:
		d.printf("               %s %s %s", name, id(ops[0]), lookup(executionModeNames, ops[1]))
		d.literals(ops[2:])
		d.printf("\n")

	case OpName:
		str, _ := DecodeString(ops[1:])
		d.printf("               %s %s %q\n", name, id(ops[0]), str)

	case OpDecorate:
		d.printf("               %s %s %s", name, id(ops[0]), lookup(decorationNames, ops[1]))
		if Decoration(ops[1]) == DecorationBuiltIn && len(ops) > 2 {
			d.printf(" %s", lookup(builtInNames, ops[2]))
		} else {
			d.literals(ops[2:])
		}
		d.printf("\n")

	case OpMemberDecorate:
		d.printf("               %s %s %d %s", name, id(ops[0]), ops[1], lookup(decorationNames, ops[2]))
		d.literals(ops[3:])
		d.printf("\n")

	case OpTypeInt:
		d.printf("         %s = %s %d %d\n", id(ops[0]), name, ops[1], ops[2])

	case OpTypeFloat:
		d.printf("         %s = %s %d\n", id(ops[0]), name, ops[1])

	case OpTypeVector:
		d.printf("         %s = %s %s %d\n", id(ops[0]), name, id(ops[1]), ops[2])

	case OpTypePointer:
		d.printf("         %s = %s %s %s\n", id(ops[0]), name, lookup(storageClassNames, ops[1]), id(ops[2]))

	case OpTypeVoid, OpTypeBool, OpTypeArray, OpTypeRuntimeArray, OpTypeStruct, OpTypeFunction, OpLabel:
		d.printf("         %s = %s", id(ops[0]), name)
		d.ids(ops[1:])
		d.printf("\n")

	default:
		d.printf("               %s", name)
		d.ids(ops)
		d.printf("\n")
	}
}
