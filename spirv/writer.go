package spirv

import (
	"encoding/binary"
	"math"
)

// Instruction represents a SPIR-V instruction.
type Instruction struct {
	Opcode OpCode
	Words  []uint32 // result type ID, result ID, operands
}

// InstructionBuilder builds SPIR-V instructions.
type InstructionBuilder struct {
	words []uint32
}

// NewInstructionBuilder creates a new instruction builder.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{
		words: make([]uint32, 0, 8),
	}
}

// AddWord adds a word to the instruction.
func (b *InstructionBuilder) AddWord(word uint32) {
	b.words = append(b.words, word)
}

// AddWords adds several words to the instruction.
func (b *InstructionBuilder) AddWords(words ...uint32) {
	b.words = append(b.words, words...)
}

// AddString adds a null-terminated UTF-8 string padded to a word boundary.
func (b *InstructionBuilder) AddString(s string) {
	b.words = append(b.words, EncodeString(s)...)
}

// Build builds the instruction with the given opcode.
func (b *InstructionBuilder) Build(opcode OpCode) Instruction {
	return Instruction{
		Opcode: opcode,
		Words:  b.words,
	}
}

// Encode encodes the instruction to binary.
func (i Instruction) Encode() []uint32 {
	wordCount := uint32(len(i.Words) + 1) // +1 for opcode word
	result := make([]uint32, 0, wordCount)
	result = append(result, (wordCount<<16)|uint32(i.Opcode))
	result = append(result, i.Words...)
	return result
}

// EncodeString packs s into null-terminated little-endian words.
func EncodeString(s string) []uint32 {
	bytes := append([]byte(s), 0)
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	words := make([]uint32, 0, len(bytes)/4)
	for i := 0; i < len(bytes); i += 4 {
		words = append(words, binary.LittleEndian.Uint32(bytes[i:]))
	}
	return words
}

// ModuleBuilder builds complete SPIR-V modules. Each Add method appends to
// the logical section its instruction belongs to, so callers may interleave
// type, decoration and function emission freely.
type ModuleBuilder struct {
	// Header
	version   Version
	generator uint32
	bound     uint32 // max ID + 1
	schema    uint32

	// Sections, in logical layout order
	capabilities   []Instruction
	extensions     []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	entryPoints    []Instruction
	executionModes []Instruction
	debugNames     []Instruction // OpName
	annotations    []Instruction // OpDecorate, OpMemberDecorate
	types          []Instruction // OpType*, OpConstant*
	globalVars     []Instruction // OpVariable (global)
	functions      []Instruction // OpFunction...OpFunctionEnd

	// ID allocation
	nextID uint32
}

// NewModuleBuilder creates a new SPIR-V module builder.
func NewModuleBuilder(version Version) *ModuleBuilder {
	return &ModuleBuilder{
		version:   version,
		generator: GeneratorID,
		nextID:    1,
	}
}

// AllocID allocates a new SPIR-V ID.
func (b *ModuleBuilder) AllocID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

// emit appends an instruction to a section.
func emit(section *[]Instruction, opcode OpCode, words ...uint32) {
	*section = append(*section, Instruction{Opcode: opcode, Words: words})
}

// emitResult appends an instruction of the form <type> <result> operands...
// and returns the result ID.
func (b *ModuleBuilder) emitResult(section *[]Instruction, opcode OpCode, resultType uint32, operands ...uint32) uint32 {
	id := b.AllocID()
	emit(section, opcode, append([]uint32{resultType, id}, operands...)...)
	return id
}

// emitType appends a type declaration and returns its ID.
func (b *ModuleBuilder) emitType(opcode OpCode, operands ...uint32) uint32 {
	id := b.AllocID()
	emit(&b.types, opcode, append([]uint32{id}, operands...)...)
	return id
}

// AddCapability adds a capability.
func (b *ModuleBuilder) AddCapability(capability Capability) {
	emit(&b.capabilities, OpCapability, uint32(capability))
}

// AddExtension declares an extension.
func (b *ModuleBuilder) AddExtension(name string) {
	emit(&b.extensions, OpExtension, EncodeString(name)...)
}

// AddExtInstImport imports an extended instruction set.
func (b *ModuleBuilder) AddExtInstImport(name string) uint32 {
	id := b.AllocID()
	emit(&b.extInstImports, OpExtInstImport, append([]uint32{id}, EncodeString(name)...)...)
	return id
}

// SetMemoryModel sets the memory model.
func (b *ModuleBuilder) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	inst := Instruction{Opcode: OpMemoryModel, Words: []uint32{uint32(addressing), uint32(memory)}}
	b.memoryModel = &inst
}

// AddEntryPoint adds an entry point.
func (b *ModuleBuilder) AddEntryPoint(execModel ExecutionModel, funcID uint32, name string, interfaces []uint32) {
	builder := NewInstructionBuilder()
	builder.AddWords(uint32(execModel), funcID)
	builder.AddString(name)
	builder.AddWords(interfaces...)
	b.entryPoints = append(b.entryPoints, builder.Build(OpEntryPoint))
}

// AddExecutionMode adds an execution mode.
func (b *ModuleBuilder) AddExecutionMode(entryPoint uint32, mode ExecutionMode, params ...uint32) {
	emit(&b.executionModes, OpExecutionMode, append([]uint32{entryPoint, uint32(mode)}, params...)...)
}

// AddName adds a debug name.
func (b *ModuleBuilder) AddName(id uint32, name string) {
	emit(&b.debugNames, OpName, append([]uint32{id}, EncodeString(name)...)...)
}

// AddDecorate adds a decoration.
func (b *ModuleBuilder) AddDecorate(id uint32, decoration Decoration, params ...uint32) {
	emit(&b.annotations, OpDecorate, append([]uint32{id, uint32(decoration)}, params...)...)
}

// AddMemberDecorate adds a member decoration.
func (b *ModuleBuilder) AddMemberDecorate(structID, member uint32, decoration Decoration, params ...uint32) {
	emit(&b.annotations, OpMemberDecorate, append([]uint32{structID, member, uint32(decoration)}, params...)...)
}

// AddTypeVoid adds OpTypeVoid.
func (b *ModuleBuilder) AddTypeVoid() uint32 { return b.emitType(OpTypeVoid) }

// AddTypeBool adds OpTypeBool.
func (b *ModuleBuilder) AddTypeBool() uint32 { return b.emitType(OpTypeBool) }

// AddTypeFloat adds OpTypeFloat.
func (b *ModuleBuilder) AddTypeFloat(width uint32) uint32 { return b.emitType(OpTypeFloat, width) }

// AddTypeInt adds OpTypeInt.
func (b *ModuleBuilder) AddTypeInt(width uint32, signed bool) uint32 {
	var signedness uint32
	if signed {
		signedness = 1
	}
	return b.emitType(OpTypeInt, width, signedness)
}

// AddTypeVector adds OpTypeVector.
func (b *ModuleBuilder) AddTypeVector(componentType uint32, count uint32) uint32 {
	return b.emitType(OpTypeVector, componentType, count)
}

// AddTypeArray adds OpTypeArray. The length is the ID of an integer constant.
func (b *ModuleBuilder) AddTypeArray(elementType uint32, length uint32) uint32 {
	return b.emitType(OpTypeArray, elementType, length)
}

// AddTypeRuntimeArray adds OpTypeRuntimeArray.
func (b *ModuleBuilder) AddTypeRuntimeArray(elementType uint32) uint32 {
	return b.emitType(OpTypeRuntimeArray, elementType)
}

// AddTypePointer adds OpTypePointer.
func (b *ModuleBuilder) AddTypePointer(storageClass StorageClass, baseType uint32) uint32 {
	return b.emitType(OpTypePointer, uint32(storageClass), baseType)
}

// AddTypeFunction adds OpTypeFunction.
func (b *ModuleBuilder) AddTypeFunction(returnType uint32, paramTypes ...uint32) uint32 {
	return b.emitType(OpTypeFunction, append([]uint32{returnType}, paramTypes...)...)
}

// AddTypeStruct adds OpTypeStruct.
func (b *ModuleBuilder) AddTypeStruct(memberTypes ...uint32) uint32 {
	return b.emitType(OpTypeStruct, memberTypes...)
}

// AddConstant adds OpConstant.
func (b *ModuleBuilder) AddConstant(typeID uint32, values ...uint32) uint32 {
	return b.emitResult(&b.types, OpConstant, typeID, values...)
}

// AddConstantFloat32 adds a 32-bit float constant.
func (b *ModuleBuilder) AddConstantFloat32(typeID uint32, value float32) uint32 {
	return b.AddConstant(typeID, math.Float32bits(value))
}

// AddConstantFloat64 adds a 64-bit float constant.
func (b *ModuleBuilder) AddConstantFloat64(typeID uint32, value float64) uint32 {
	bits := math.Float64bits(value)
	return b.AddConstant(typeID, uint32(bits&0xFFFFFFFF), uint32(bits>>32))
}

// AddConstantBool adds OpConstantTrue or OpConstantFalse.
func (b *ModuleBuilder) AddConstantBool(typeID uint32, value bool) uint32 {
	if value {
		return b.emitResult(&b.types, OpConstantTrue, typeID)
	}
	return b.emitResult(&b.types, OpConstantFalse, typeID)
}

// AddConstantComposite adds OpConstantComposite.
func (b *ModuleBuilder) AddConstantComposite(typeID uint32, constituents ...uint32) uint32 {
	return b.emitResult(&b.types, OpConstantComposite, typeID, constituents...)
}

// AddVariable adds a module-scope OpVariable.
func (b *ModuleBuilder) AddVariable(pointerType uint32, storageClass StorageClass) uint32 {
	return b.emitResult(&b.globalVars, OpVariable, pointerType, uint32(storageClass))
}

// AddFunction adds a function definition.
func (b *ModuleBuilder) AddFunction(funcType uint32, returnType uint32, control FunctionControl) uint32 {
	return b.emitResult(&b.functions, OpFunction, returnType, uint32(control), funcType)
}

// AddFunctionParameter adds a function parameter.
func (b *ModuleBuilder) AddFunctionParameter(typeID uint32) uint32 {
	return b.emitResult(&b.functions, OpFunctionParameter, typeID)
}

// AddLabel adds a label.
func (b *ModuleBuilder) AddLabel() uint32 {
	id := b.AllocID()
	emit(&b.functions, OpLabel, id)
	return id
}

// AddReturn adds OpReturn.
func (b *ModuleBuilder) AddReturn() {
	emit(&b.functions, OpReturn)
}

// AddFunctionEnd adds OpFunctionEnd.
func (b *ModuleBuilder) AddFunctionEnd() {
	emit(&b.functions, OpFunctionEnd)
}

// AddBinaryOp adds a binary operation instruction.
func (b *ModuleBuilder) AddBinaryOp(opcode OpCode, resultType uint32, left uint32, right uint32) uint32 {
	return b.emitResult(&b.functions, opcode, resultType, left, right)
}

// AddUnaryOp adds a unary operation instruction.
func (b *ModuleBuilder) AddUnaryOp(opcode OpCode, resultType uint32, operand uint32) uint32 {
	return b.emitResult(&b.functions, opcode, resultType, operand)
}

// AddLoad adds OpLoad.
func (b *ModuleBuilder) AddLoad(resultType uint32, pointer uint32) uint32 {
	return b.emitResult(&b.functions, OpLoad, resultType, pointer)
}

// AddStore adds OpStore.
func (b *ModuleBuilder) AddStore(pointer uint32, value uint32) {
	emit(&b.functions, OpStore, pointer, value)
}

// AddAccessChain adds OpAccessChain.
func (b *ModuleBuilder) AddAccessChain(resultType uint32, base uint32, indices ...uint32) uint32 {
	return b.emitResult(&b.functions, OpAccessChain, resultType, append([]uint32{base}, indices...)...)
}

// AddCompositeExtract adds OpCompositeExtract. Indices are literals.
func (b *ModuleBuilder) AddCompositeExtract(resultType uint32, composite uint32, indices ...uint32) uint32 {
	return b.emitResult(&b.functions, OpCompositeExtract, resultType, append([]uint32{composite}, indices...)...)
}

// AddAtomicOp adds an atomic read-modify-write instruction such as
// OpAtomicAnd. Scope and semantics are IDs of 32-bit integer constants.
func (b *ModuleBuilder) AddAtomicOp(opcode OpCode, resultType, pointer, scope, semantics, value uint32) uint32 {
	return b.emitResult(&b.functions, opcode, resultType, pointer, scope, semantics, value)
}

// AddSelect adds OpSelect.
func (b *ModuleBuilder) AddSelect(resultType uint32, condition uint32, accept uint32, reject uint32) uint32 {
	return b.emitResult(&b.functions, OpSelect, resultType, condition, accept, reject)
}

// AddExtInst adds OpExtInst (extended instruction).
func (b *ModuleBuilder) AddExtInst(resultType uint32, extSet uint32, instruction uint32, operands ...uint32) uint32 {
	return b.emitResult(&b.functions, OpExtInst, resultType, append([]uint32{extSet, instruction}, operands...)...)
}

// Build generates the final SPIR-V binary.
func (b *ModuleBuilder) Build() []byte {
	b.bound = b.nextID

	sections := [][]Instruction{
		b.capabilities,
		b.extensions,
		b.extInstImports,
		nil, // memory model
		b.entryPoints,
		b.executionModes,
		b.debugNames,
		b.annotations,
		b.types,
		b.globalVars,
		b.functions,
	}
	if b.memoryModel != nil {
		sections[3] = []Instruction{*b.memoryModel}
	}

	totalWords := 5 // header
	for _, section := range sections {
		totalWords += countWords(section)
	}

	buffer := make([]byte, totalWords*4)
	header := [5]uint32{MagicNumber, versionToWord(b.version), b.generator, b.bound, b.schema}
	offset := 0
	for _, word := range header {
		binary.LittleEndian.PutUint32(buffer[offset:], word)
		offset += 4
	}
	for _, section := range sections {
		offset = writeInstructions(buffer, offset, section)
	}
	return buffer
}

// countWords counts total words in instructions.
func countWords(instructions []Instruction) int {
	count := 0
	for _, inst := range instructions {
		count += len(inst.Words) + 1
	}
	return count
}

// writeInstructions writes instructions to buffer.
func writeInstructions(buffer []byte, offset int, instructions []Instruction) int {
	for _, inst := range instructions {
		for _, word := range inst.Encode() {
			binary.LittleEndian.PutUint32(buffer[offset:], word)
			offset += 4
		}
	}
	return offset
}

// versionToWord converts Version to SPIR-V word format.
func versionToWord(v Version) uint32 {
	return (uint32(v.Major) << 16) | (uint32(v.Minor) << 8)
}

// wordToVersion is the inverse of versionToWord.
func wordToVersion(w uint32) Version {
	return Version{Major: uint8(w >> 16), Minor: uint8(w >> 8)}
}
