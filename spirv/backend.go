package spirv

import (
	"fmt"
	"math"

	"github.com/gogpu/spvlower/ir"
)

// Backend translates a lowered module, in which every operation belongs to
// the spv dialect, into a SPIR-V binary.
type Backend struct {
	module  *ir.Module
	builder *ModuleBuilder
	options Options

	// Type cache (IR TypeHandle → SPIR-V ID)
	types   *ir.TypeRegistry
	typeIDs map[ir.TypeHandle]uint32

	// Constant cache keyed by "type=value"
	constantIDs map[string]uint32

	// SSA value → SPIR-V ID, reset per function
	values map[*ir.Value]uint32

	capabilities   map[Capability]bool
	blockDecorated map[uint32]bool
	voidFuncType   uint32
	voidID         uint32

	// GLSL.std.450 import ID (for math functions)
	glslExtID uint32

	// GlobalInvocationId input variable, created on first use
	globalInvocationVar uint32
	usesInvocationID    bool

	storageBufferUsed bool
}

// NewBackend creates a new SPIR-V backend.
func NewBackend(options Options) *Backend {
	return &Backend{options: options}
}

// Compile translates a lowered module to a SPIR-V binary.
func (b *Backend) Compile(module *ir.Module) ([]byte, error) {
	if module == nil {
		return nil, fmt.Errorf("spirv: nil module")
	}
	if b.options.Validation {
		if err := checkLegal(module); err != nil {
			return nil, err
		}
	}

	b.module = module
	b.builder = NewModuleBuilder(b.options.Version)
	b.types = ir.NewTypeRegistry()
	b.typeIDs = make(map[ir.TypeHandle]uint32)
	b.constantIDs = make(map[string]uint32)
	b.capabilities = make(map[Capability]bool)
	b.blockDecorated = make(map[uint32]bool)
	b.globalInvocationVar = 0
	b.storageBufferUsed = false
	b.voidID, b.voidFuncType = 0, 0

	// 1. Capabilities
	b.requireCapability(CapabilityShader)
	for _, c := range b.options.Capabilities {
		b.requireCapability(c)
	}

	// 2. Extended instruction sets
	b.glslExtID = b.builder.AddExtInstImport(GLSLStd450)

	// 3. Memory model
	b.builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	// 4. Functions, with their entry points and execution modes
	for _, fn := range module.Functions {
		if err := b.emitFunction(fn); err != nil {
			return nil, fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}

	if b.storageBufferUsed && !b.options.Version.AtLeast(Version1_3) {
		b.builder.AddExtension("SPV_KHR_storage_buffer_storage_class")
	}

	return b.builder.Build(), nil
}

// checkLegal reports the first operation outside the spv dialect.
func checkLegal(module *ir.Module) error {
	for _, fn := range module.Functions {
		for i, op := range fn.Body.Ops() {
			if !IsTargetOp(op) {
				return fmt.Errorf("spirv: function %q op %d: %s is not in the %s dialect", fn.Name, i, op.Kind, Dialect)
			}
		}
	}
	return nil
}

func (b *Backend) requireCapability(c Capability) {
	if b.capabilities[c] {
		return
	}
	b.capabilities[c] = true
	b.builder.AddCapability(c)
}

// requireTypeCapabilities declares capabilities implied by a scalar width.
func (b *Backend) requireTypeCapabilities(t ir.Type) {
	switch t := t.(type) {
	case ir.IntegerType:
		switch t.Width {
		case 8:
			b.requireCapability(CapabilityInt8)
		case 16:
			b.requireCapability(CapabilityInt16)
		case 64:
			b.requireCapability(CapabilityInt64)
		}
	case ir.FloatType:
		switch t.Width {
		case 16:
			b.requireCapability(CapabilityFloat16)
		case 64:
			b.requireCapability(CapabilityFloat64)
		}
	}
}

// normalize drops unsigned signedness so that ui32 and i32 share one
// OpTypeInt declaration.
func normalize(t ir.Type) ir.Type {
	switch t := t.(type) {
	case ir.IntegerType:
		if t.Signedness == ir.Unsigned {
			return ir.IntegerType{Width: t.Width}
		}
		return t
	case ir.VectorType:
		return ir.VectorType{Shape: t.Shape, Elem: normalize(t.Elem)}
	case ir.ArrayType:
		return ir.ArrayType{Elem: normalize(t.Elem), Count: t.Count, Stride: t.Stride}
	case ir.RuntimeArrayType:
		return ir.RuntimeArrayType{Elem: normalize(t.Elem), Stride: t.Stride}
	case ir.StructType:
		members := make([]ir.Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = normalize(m)
		}
		return ir.StructType{Members: members, Offsets: t.Offsets}
	case ir.PointerType:
		return ir.PointerType{Pointee: normalize(t.Pointee), Space: t.Space}
	}
	return t
}

func (b *Backend) voidType() uint32 {
	if b.voidID == 0 {
		b.voidID = b.builder.AddTypeVoid()
	}
	return b.voidID
}

// typeID returns the SPIR-V ID of t, declaring it on first use.
//
//nolint:gocyclo,cyclop // one case per type
func (b *Backend) typeID(t ir.Type) (uint32, error) {
	t = normalize(t)
	handle := b.types.GetOrCreate(t)
	if id, ok := b.typeIDs[handle]; ok {
		return id, nil
	}

	var id uint32
	switch t := t.(type) {
	case ir.IntegerType:
		if t.Width == 1 {
			id = b.builder.AddTypeBool()
			break
		}
		b.requireTypeCapabilities(t)
		id = b.builder.AddTypeInt(t.Width, t.Signedness == ir.Signed)

	case ir.FloatType:
		b.requireTypeCapabilities(t)
		id = b.builder.AddTypeFloat(t.Width)

	case ir.VectorType:
		if len(t.Shape) != 1 {
			return 0, fmt.Errorf("spirv: vector type %s must have rank 1", t)
		}
		elem, err := b.typeID(t.Elem)
		if err != nil {
			return 0, err
		}
		id = b.builder.AddTypeVector(elem, uint32(t.Shape[0]))

	case ir.ArrayType:
		elem, err := b.typeID(t.Elem)
		if err != nil {
			return 0, err
		}
		length, err := b.constantID(ir.I32, ir.NewIntegerAttr(ir.I32, int64(t.Count)))
		if err != nil {
			return 0, err
		}
		id = b.builder.AddTypeArray(elem, length)
		if t.Stride != 0 {
			b.builder.AddDecorate(id, DecorationArrayStride, t.Stride)
		}

	case ir.RuntimeArrayType:
		elem, err := b.typeID(t.Elem)
		if err != nil {
			return 0, err
		}
		id = b.builder.AddTypeRuntimeArray(elem)
		if t.Stride != 0 {
			b.builder.AddDecorate(id, DecorationArrayStride, t.Stride)
		}

	case ir.StructType:
		members := make([]uint32, len(t.Members))
		for i, m := range t.Members {
			mid, err := b.typeID(m)
			if err != nil {
				return 0, err
			}
			members[i] = mid
		}
		id = b.builder.AddTypeStruct(members...)
		for i, off := range t.Offsets {
			b.builder.AddMemberDecorate(id, uint32(i), DecorationOffset, off)
		}

	case ir.PointerType:
		pointee, err := b.typeID(t.Pointee)
		if err != nil {
			return 0, err
		}
		if t.Space == ir.StorageBuffer {
			b.storageBufferUsed = true
		}
		id = b.builder.AddTypePointer(StorageClassOf(t.Space), pointee)

	default:
		return 0, fmt.Errorf("spirv: type %s has no SPIR-V equivalent", t)
	}

	b.typeIDs[handle] = id
	return id, nil
}

// constantID returns the ID of a constant of type t, declaring it on first use.
func (b *Backend) constantID(t ir.Type, value ir.Attribute) (uint32, error) {
	t = normalize(t)
	key := t.String() + "=" + constantKey(value)
	if id, ok := b.constantIDs[key]; ok {
		return id, nil
	}
	typeID, err := b.typeID(t)
	if err != nil {
		return 0, err
	}

	var id uint32
	switch v := value.(type) {
	case ir.BoolAttr:
		id = b.builder.AddConstantBool(typeID, v.Value)

	case ir.IntegerAttr:
		if ir.IsBool(t) {
			id = b.builder.AddConstantBool(typeID, v.Bits().Sign() != 0)
			break
		}
		width, ok := ir.BitWidth(t)
		if !ok {
			return 0, fmt.Errorf("spirv: integer constant of type %s", t)
		}
		bits := ir.BitPattern(v.Value, width).Uint64()
		switch {
		case width <= 32:
			id = b.builder.AddConstant(typeID, uint32(bits))
		case width == 64:
			id = b.builder.AddConstant(typeID, uint32(bits&0xFFFFFFFF), uint32(bits>>32))
		default:
			return 0, fmt.Errorf("spirv: unsupported integer constant width %d", width)
		}

	case ir.FloatAttr:
		ft, ok := t.(ir.FloatType)
		if !ok {
			return 0, fmt.Errorf("spirv: float constant of type %s", t)
		}
		switch ft.Width {
		case 32:
			id = b.builder.AddConstantFloat32(typeID, float32(v.Value))
		case 64:
			id = b.builder.AddConstantFloat64(typeID, v.Value)
		default:
			return 0, fmt.Errorf("spirv: unsupported float constant width %d", ft.Width)
		}

	case ir.DenseElementsAttr:
		elem, err := elementType(t)
		if err != nil {
			return 0, err
		}
		constituents := make([]uint32, len(v.Values))
		for i, e := range v.Values {
			cid, err := b.constantID(elem, e)
			if err != nil {
				return 0, err
			}
			constituents[i] = cid
		}
		id = b.builder.AddConstantComposite(typeID, constituents...)

	default:
		return 0, fmt.Errorf("spirv: unsupported constant attribute %v", value)
	}

	b.constantIDs[key] = id
	return id, nil
}

func constantKey(a ir.Attribute) string {
	switch a := a.(type) {
	case ir.IntegerAttr:
		return a.Value.String()
	case ir.FloatAttr:
		return fmt.Sprintf("%x", math.Float64bits(a.Value))
	case nil:
		return "<nil>"
	}
	return a.String()
}

func elementType(t ir.Type) (ir.Type, error) {
	switch t := t.(type) {
	case ir.VectorType:
		return t.Elem, nil
	case ir.ArrayType:
		return t.Elem, nil
	}
	return nil, fmt.Errorf("spirv: composite constant of non-composite type %s", t)
}

// invocationIDVar returns the GlobalInvocationId input variable whose
// components have type elem.
func (b *Backend) invocationIDVar(elem ir.Type) (uint32, ir.Type, error) {
	vec := ir.VectorType{Shape: []int64{3}, Elem: elem}
	if b.globalInvocationVar != 0 {
		return b.globalInvocationVar, vec, nil
	}
	ptr, err := b.typeID(ir.PointerType{Pointee: vec, Space: ir.Input})
	if err != nil {
		return 0, nil, err
	}
	b.globalInvocationVar = b.builder.AddVariable(ptr, StorageClassInput)
	b.builder.AddDecorate(b.globalInvocationVar, DecorationBuiltIn, uint32(BuiltInGlobalInvocationID))
	if b.options.Debug {
		b.builder.AddName(b.globalInvocationVar, "gl_GlobalInvocationID")
	}
	return b.globalInvocationVar, vec, nil
}

// emitFunction emits one function. Entry points take their pointer
// arguments as descriptor-bound global variables and have type void().
func (b *Backend) emitFunction(fn *ir.Function) error {
	b.values = make(map[*ir.Value]uint32)
	b.usesInvocationID = false

	if b.voidFuncType == 0 {
		b.voidFuncType = b.builder.AddTypeFunction(b.voidType())
	}

	var interfaces []uint32
	funcType := b.voidFuncType
	if fn.EntryPoint {
		for i, arg := range fn.Args {
			id, err := b.emitResourceVariable(i, arg)
			if err != nil {
				return err
			}
			b.values[arg] = id
			if b.options.Version.AtLeast(Version1_4) {
				interfaces = append(interfaces, id)
			}
		}
	} else if len(fn.Args) > 0 {
		params := make([]uint32, len(fn.Args))
		for i, arg := range fn.Args {
			id, err := b.typeID(arg.Type())
			if err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			params[i] = id
		}
		funcType = b.builder.AddTypeFunction(b.voidType(), params...)
	}

	funcID := b.builder.AddFunction(funcType, b.voidType(), FunctionControlNone)
	if b.options.Debug {
		b.builder.AddName(funcID, fn.Name)
	}
	if !fn.EntryPoint {
		for _, arg := range fn.Args {
			tid, _ := b.typeID(arg.Type())
			b.values[arg] = b.builder.AddFunctionParameter(tid)
		}
	}
	b.builder.AddLabel()

	for i, op := range fn.Body.Ops() {
		if err := b.emitOperation(op); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}
	if last := fn.Body.Last(); last == nil || last.Kind != Return {
		return fmt.Errorf("body does not end with %s", Return)
	}
	b.builder.AddFunctionEnd()

	if !fn.EntryPoint {
		return nil
	}
	if b.usesInvocationID {
		interfaces = append([]uint32{b.globalInvocationVar}, interfaces...)
	}
	b.builder.AddEntryPoint(ExecutionModelGLCompute, funcID, fn.Name, interfaces)
	size := fn.WorkgroupSize
	for i := range size {
		if size[i] == 0 {
			size[i] = 1
		}
	}
	b.builder.AddExecutionMode(funcID, ExecutionModeLocalSize, size[0], size[1], size[2])
	return nil
}

// emitResourceVariable declares the global variable backing entry point
// argument i.
func (b *Backend) emitResourceVariable(i int, arg *ir.Value) (uint32, error) {
	pt, ok := arg.Type().(ir.PointerType)
	if !ok {
		return 0, fmt.Errorf("entry point argument %d has non-pointer type %s", i, arg.Type())
	}
	ptrID, err := b.typeID(pt)
	if err != nil {
		return 0, err
	}
	if pt.Space == ir.StorageBuffer || pt.Space == ir.Uniform {
		structID, err := b.typeID(pt.Pointee)
		if err != nil {
			return 0, err
		}
		if _, isStruct := pt.Pointee.(ir.StructType); isStruct && !b.blockDecorated[structID] {
			b.builder.AddDecorate(structID, DecorationBlock)
			b.blockDecorated[structID] = true
		}
	}
	id := b.builder.AddVariable(ptrID, StorageClassOf(pt.Space))
	b.builder.AddDecorate(id, DecorationDescriptorSet, 0)
	b.builder.AddDecorate(id, DecorationBinding, uint32(i))
	if b.options.Debug {
		b.builder.AddName(id, fmt.Sprintf("arg%d", i))
	}
	return id, nil
}

func (b *Backend) operandIDs(op *ir.Operation) ([]uint32, error) {
	ids := make([]uint32, op.NumOperands())
	for i, v := range op.Operands() {
		id, ok := b.values[v]
		if !ok {
			return nil, fmt.Errorf("operand %d is not defined", i)
		}
		ids[i] = id
	}
	return ids, nil
}

// emitOperation emits the instruction(s) for one spv operation.
//
//nolint:gocyclo,cyclop,funlen // one case per instruction family
func (b *Backend) emitOperation(op *ir.Operation) error {
	if op.Kind == Constant {
		id, err := b.constantID(op.Result().Type(), op.Attr(AttrValue))
		if err != nil {
			return err
		}
		b.values[op.Result()] = id
		return nil
	}

	operands, err := b.operandIDs(op)
	if err != nil {
		return err
	}
	var resultType uint32
	if op.Result() != nil {
		if resultType, err = b.typeID(op.Result().Type()); err != nil {
			return err
		}
	}

	var id uint32
	switch op.Kind {
	case Return:
		if len(operands) != 0 {
			return fmt.Errorf("return with operands is not supported")
		}
		b.builder.AddReturn()
		return nil

	case GlobalInvocationID:
		dim, ok := op.Attr(AttrDimension).(ir.IntegerAttr)
		if !ok || dim.Int64() < 0 || dim.Int64() > 2 {
			return fmt.Errorf("invalid dimension attribute")
		}
		v, vec, err := b.invocationIDVar(op.Result().Type())
		if err != nil {
			return err
		}
		vecID, err := b.typeID(vec)
		if err != nil {
			return err
		}
		b.usesInvocationID = true
		loaded := b.builder.AddLoad(vecID, v)
		id = b.builder.AddCompositeExtract(resultType, loaded, uint32(dim.Int64()))

	case Load:
		id = b.builder.AddLoad(resultType, operands[0])

	case Store:
		b.builder.AddStore(operands[0], operands[1])
		return nil

	case AccessChain:
		id = b.builder.AddAccessChain(resultType, operands[0], operands[1:]...)

	case Select:
		id = b.builder.AddSelect(resultType, operands[0], operands[1], operands[2])

	case AtomicAnd, AtomicOr:
		scope, sem, err := b.atomicOperands(op)
		if err != nil {
			return err
		}
		opcode, _ := OpcodeOf(op.Kind)
		id = b.builder.AddAtomicOp(opcode, resultType, operands[0], scope, sem, operands[1])

	default:
		if inst, ok := GLSLInstructionOf(op.Kind); ok {
			id = b.builder.AddExtInst(resultType, b.glslExtID, inst, operands...)
			break
		}
		opcode, ok := OpcodeOf(op.Kind)
		if !ok {
			return fmt.Errorf("no SPIR-V instruction for %s", op.Kind)
		}
		switch len(operands) {
		case 1:
			id = b.builder.AddUnaryOp(opcode, resultType, operands[0])
		case 2:
			id = b.builder.AddBinaryOp(opcode, resultType, operands[0], operands[1])
		default:
			return fmt.Errorf("%s expects 1 or 2 operands, got %d", op.Kind, len(operands))
		}
	}

	if op.Result() != nil {
		b.values[op.Result()] = id
	}
	return nil
}

// atomicOperands returns the IDs of the scope and semantics constants.
func (b *Backend) atomicOperands(op *ir.Operation) (uint32, uint32, error) {
	scopeName, _ := op.Attr(AttrMemoryScope).(ir.StringAttr)
	scope, ok := ParseScope(string(scopeName))
	if !ok {
		return 0, 0, fmt.Errorf("invalid memory scope %q", string(scopeName))
	}
	semName, _ := op.Attr(AttrSemantics).(ir.StringAttr)
	sem, ok := ParseMemorySemantics(string(semName))
	if !ok {
		return 0, 0, fmt.Errorf("invalid memory semantics %q", string(semName))
	}
	scopeID, err := b.constantID(ir.I32, ir.NewIntegerAttr(ir.I32, int64(scope)))
	if err != nil {
		return 0, 0, err
	}
	semID, err := b.constantID(ir.I32, ir.NewIntegerAttr(ir.I32, int64(sem)))
	if err != nil {
		return 0, 0, err
	}
	return scopeID, semID, nil
}
