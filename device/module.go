package device

import (
	"fmt"

	"github.com/gogpu/spvlower/spirv"
)

type typeKind uint8

const (
	kindVoid typeKind = iota
	kindBool
	kindInt
	kindFloat
	kindVector
	kindArray
	kindRuntimeArray
	kindStruct
	kindPointer
	kindFunction
)

// typeInfo describes a declared SPIR-V type.
type typeInfo struct {
	kind    typeKind
	width   uint32 // scalar bits
	signed  bool
	elem    uint32 // component, element or pointee type
	count   uint32
	stride  uint32
	members []uint32
	offsets []uint32
	storage spirv.StorageClass
}

// variable is a module-scope OpVariable.
type variable struct {
	id      uint32
	typ     uint32
	storage spirv.StorageClass
	binding BindingKey
	bound   bool
	builtin bool
}

type entryPoint struct {
	name      string
	function  uint32
	localSize [3]uint32
}

// module is a decoded SPIR-V binary ready for execution.
type module struct {
	bound     uint32
	types     map[uint32]*typeInfo
	idTypes   []uint32 // result type of every ID, 0 if none
	constants map[uint32]value
	variables map[uint32]*variable
	entries   map[string]*entryPoint
	functions map[uint32][]spirv.Instruction
	glslSet   uint32
}

type decorations struct {
	byID     map[uint32]map[spirv.Decoration][]uint32
	byMember map[uint32]map[uint32]uint32 // struct → member → offset
}

func (d *decorations) get(id uint32, dec spirv.Decoration) ([]uint32, bool) {
	params, ok := d.byID[id][dec]
	return params, ok
}

// decodeModule builds the executable form of bin.
//
//nolint:gocyclo,cyclop,funlen // one case per instruction
func decodeModule(bin *spirv.Binary) (*module, error) {
	m := &module{
		bound:     bin.Header.Bound,
		types:     make(map[uint32]*typeInfo),
		idTypes:   make([]uint32, bin.Header.Bound),
		constants: make(map[uint32]value),
		variables: make(map[uint32]*variable),
		entries:   make(map[string]*entryPoint),
		functions: make(map[uint32][]spirv.Instruction),
	}
	decs := &decorations{
		byID:     make(map[uint32]map[spirv.Decoration][]uint32),
		byMember: make(map[uint32]map[uint32]uint32),
	}

	var current uint32
	inFunction := false
	for i, inst := range bin.Instructions {
		w := inst.Words
		need := func(n int) error {
			if len(w) < n {
				return fmt.Errorf("instruction %d (%s): expected %d operands, got %d",
					i, spirv.OpcodeName(inst.Opcode), n, len(w))
			}
			return nil
		}
		if err := need(minOperands(inst.Opcode)); err != nil {
			return nil, err
		}
		if id, t, ok := resultOf(inst); ok {
			if id >= m.bound {
				return nil, fmt.Errorf("instruction %d: ID %d out of bound %d", i, id, m.bound)
			}
			m.idTypes[id] = t
		}

		if inFunction {
			switch inst.Opcode {
			case spirv.OpFunctionEnd:
				inFunction = false
			case spirv.OpLabel, spirv.OpFunctionParameter:
			default:
				m.functions[current] = append(m.functions[current], inst)
			}
			continue
		}

		switch inst.Opcode {
		case spirv.OpExtInstImport:
			if name, _ := spirv.DecodeString(w[1:]); name == spirv.GLSLStd450 {
				m.glslSet = w[0]
			}

		case spirv.OpEntryPoint:
			if spirv.ExecutionModel(w[0]) != spirv.ExecutionModelGLCompute {
				continue
			}
			name, _ := spirv.DecodeString(w[2:])
			m.entries[name] = &entryPoint{name: name, function: w[1], localSize: [3]uint32{1, 1, 1}}

		case spirv.OpExecutionMode:
			if spirv.ExecutionMode(w[1]) != spirv.ExecutionModeLocalSize || len(w) < 5 {
				continue
			}
			for _, ep := range m.entries {
				if ep.function == w[0] {
					ep.localSize = [3]uint32{w[2], w[3], w[4]}
				}
			}

		case spirv.OpDecorate:
			if decs.byID[w[0]] == nil {
				decs.byID[w[0]] = make(map[spirv.Decoration][]uint32)
			}
			decs.byID[w[0]][spirv.Decoration(w[1])] = w[2:]

		case spirv.OpMemberDecorate:
			if spirv.Decoration(w[2]) == spirv.DecorationOffset && len(w) > 3 {
				if decs.byMember[w[0]] == nil {
					decs.byMember[w[0]] = make(map[uint32]uint32)
				}
				decs.byMember[w[0]][w[1]] = w[3]
			}

		case spirv.OpTypeVoid:
			m.types[w[0]] = &typeInfo{kind: kindVoid}
		case spirv.OpTypeBool:
			m.types[w[0]] = &typeInfo{kind: kindBool, width: 1}
		case spirv.OpTypeInt:
			if w[1] != 8 && w[1] != 16 && w[1] != 32 && w[1] != 64 {
				return nil, fmt.Errorf("unsupported integer width %d", w[1])
			}
			m.types[w[0]] = &typeInfo{kind: kindInt, width: w[1], signed: w[2] == 1}
		case spirv.OpTypeFloat:
			if w[1] != 32 && w[1] != 64 {
				return nil, fmt.Errorf("unsupported float width %d", w[1])
			}
			m.types[w[0]] = &typeInfo{kind: kindFloat, width: w[1]}
		case spirv.OpTypeVector:
			m.types[w[0]] = &typeInfo{kind: kindVector, elem: w[1], count: w[2]}
		case spirv.OpTypeArray:
			length, ok := m.constants[w[2]]
			if !ok {
				return nil, fmt.Errorf("array length %%%d is not a constant", w[2])
			}
			t := &typeInfo{kind: kindArray, elem: w[1], count: uint32(length.bits)}
			if p, ok := decs.get(w[0], spirv.DecorationArrayStride); ok && len(p) > 0 {
				t.stride = p[0]
			}
			m.types[w[0]] = t
		case spirv.OpTypeRuntimeArray:
			t := &typeInfo{kind: kindRuntimeArray, elem: w[1]}
			if p, ok := decs.get(w[0], spirv.DecorationArrayStride); ok && len(p) > 0 {
				t.stride = p[0]
			}
			m.types[w[0]] = t
		case spirv.OpTypeStruct:
			t := &typeInfo{kind: kindStruct, members: w[1:], offsets: make([]uint32, len(w)-1)}
			for member, off := range decs.byMember[w[0]] {
				if int(member) < len(t.offsets) {
					t.offsets[member] = off
				}
			}
			m.types[w[0]] = t
		case spirv.OpTypePointer:
			m.types[w[0]] = &typeInfo{kind: kindPointer, storage: spirv.StorageClass(w[1]), elem: w[2]}
		case spirv.OpTypeFunction:
			m.types[w[0]] = &typeInfo{kind: kindFunction}

		case spirv.OpConstant:
			v := value{bits: uint64(w[2])}
			if len(w) > 3 {
				v.bits |= uint64(w[3]) << 32
			}
			m.constants[w[1]] = v
		case spirv.OpConstantTrue:
			m.constants[w[1]] = value{bits: 1}
		case spirv.OpConstantFalse:
			m.constants[w[1]] = value{}
		case spirv.OpConstantComposite:
			elems := make([]uint64, len(w)-2)
			for k, id := range w[2:] {
				c, ok := m.constants[id]
				if !ok || c.elems != nil {
					return nil, fmt.Errorf("composite constant %%%d has a non-scalar constituent", w[1])
				}
				elems[k] = c.bits
			}
			m.constants[w[1]] = value{elems: elems}

		case spirv.OpVariable:
			v := &variable{id: w[1], typ: w[0], storage: spirv.StorageClass(w[2])}
			if p, ok := decs.get(v.id, spirv.DecorationBuiltIn); ok && len(p) > 0 {
				if spirv.BuiltIn(p[0]) != spirv.BuiltInGlobalInvocationID {
					return nil, fmt.Errorf("unsupported builtin %d", p[0])
				}
				v.builtin = true
			}
			set, hasSet := decs.get(v.id, spirv.DecorationDescriptorSet)
			binding, hasBinding := decs.get(v.id, spirv.DecorationBinding)
			if hasSet && hasBinding && len(set) > 0 && len(binding) > 0 {
				v.binding = BindingKey{Set: set[0], Binding: binding[0]}
				v.bound = true
			}
			m.variables[v.id] = v

		case spirv.OpFunction:
			current = w[1]
			inFunction = true
			m.functions[current] = nil
		}
	}
	if inFunction {
		return nil, fmt.Errorf("function %%%d has no end", current)
	}
	return m, nil
}

// resultOf returns the result ID and result type of inst, if it has one.
func resultOf(inst spirv.Instruction) (id, typ uint32, ok bool) {
	w := inst.Words
	switch inst.Opcode {
	case spirv.OpExtInstImport, spirv.OpLabel,
		spirv.OpTypeVoid, spirv.OpTypeBool, spirv.OpTypeInt, spirv.OpTypeFloat, spirv.OpTypeVector,
		spirv.OpTypeArray, spirv.OpTypeRuntimeArray, spirv.OpTypeStruct, spirv.OpTypePointer,
		spirv.OpTypeFunction:
		return w[0], 0, true
	case spirv.OpName, spirv.OpExtension, spirv.OpMemoryModel, spirv.OpEntryPoint,
		spirv.OpExecutionMode, spirv.OpCapability, spirv.OpDecorate, spirv.OpMemberDecorate,
		spirv.OpStore, spirv.OpReturn, spirv.OpFunctionEnd, spirv.OpNop:
		return 0, 0, false
	}
	if len(w) < 2 {
		return 0, 0, false
	}
	return w[1], w[0], true
}

func minOperands(op spirv.OpCode) int {
	switch op {
	case spirv.OpTypeVoid, spirv.OpTypeBool, spirv.OpTypeFunction, spirv.OpTypeStruct, spirv.OpLabel:
		return 1
	case spirv.OpTypeFloat, spirv.OpTypeRuntimeArray, spirv.OpConstantTrue, spirv.OpConstantFalse,
		spirv.OpStore, spirv.OpConstantComposite, spirv.OpExtInstImport:
		return 2
	case spirv.OpTypeInt, spirv.OpTypeVector, spirv.OpTypeArray, spirv.OpTypePointer, spirv.OpConstant,
		spirv.OpVariable, spirv.OpLoad, spirv.OpMemberDecorate, spirv.OpEntryPoint:
		return 3
	case spirv.OpAccessChain, spirv.OpCompositeExtract, spirv.OpFunction:
		return 4
	case spirv.OpDecorate, spirv.OpExecutionMode:
		return 2
	}
	return 0
}

// typeOf returns the declared type of id.
func (m *module) typeOf(id uint32) (*typeInfo, error) {
	t, ok := m.types[id]
	if !ok {
		return nil, fmt.Errorf("%%%d is not a type", id)
	}
	return t, nil
}

// scalarOf returns the scalar type of t, or of its components for vectors.
func (m *module) scalarOf(t *typeInfo) (*typeInfo, error) {
	if t.kind == kindVector {
		return m.typeOf(t.elem)
	}
	return t, nil
}

// sizeOf returns the storage size of a type in bytes.
func (m *module) sizeOf(t *typeInfo) (uint32, error) {
	switch t.kind {
	case kindBool:
		return 1, nil
	case kindInt, kindFloat:
		return t.width / 8, nil
	case kindVector:
		elem, err := m.typeOf(t.elem)
		if err != nil {
			return 0, err
		}
		es, err := m.sizeOf(elem)
		return es * t.count, err
	case kindArray:
		return t.stride * t.count, nil
	}
	return 0, fmt.Errorf("type has no fixed size")
}
