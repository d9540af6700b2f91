package device

import (
	"fmt"

	"github.com/gogpu/spvlower/spirv"
)

// value is the runtime form of an SSA result: a scalar bit pattern, the
// components of a vector, or a pointer.
type value struct {
	bits  uint64
	elems []uint64
	ptr   *pointer
}

type pointer struct {
	mem    *memory // nil for the invocation ID input
	offset uint32
	typ    uint32 // pointee type
}

// invocation is one lane executing the entry function.
type invocation struct {
	m        *module
	vals     []value
	globalID [3]uint32
}

func (inv *invocation) operand(id uint32) (value, error) {
	if id >= uint32(len(inv.vals)) {
		return value{}, fmt.Errorf("%%%d is out of bound", id)
	}
	return inv.vals[id], nil
}

func (inv *invocation) pointerOf(id uint32) (*pointer, error) {
	v, err := inv.operand(id)
	if err != nil {
		return nil, err
	}
	if v.ptr == nil {
		return nil, fmt.Errorf("%%%d is not a pointer", id)
	}
	return v.ptr, nil
}

// scalarTypeOf returns the scalar type of the value id, looking through
// vectors.
func (inv *invocation) scalarTypeOf(id uint32) (*typeInfo, error) {
	t, err := inv.m.typeOf(inv.m.idTypes[id])
	if err != nil {
		return nil, err
	}
	return inv.m.scalarOf(t)
}

// run executes body until OpReturn.
func (inv *invocation) run(body []spirv.Instruction) error {
	for _, inst := range body {
		if inst.Opcode == spirv.OpReturn {
			return nil
		}
		if err := inv.step(inst); err != nil {
			return fmt.Errorf("%s: %w", spirv.OpcodeName(inst.Opcode), err)
		}
	}
	return fmt.Errorf("function body does not return")
}

//nolint:gocyclo,cyclop // one case per instruction family
func (inv *invocation) step(inst spirv.Instruction) error {
	w := inst.Words
	switch inst.Opcode {
	case spirv.OpNop:
		return nil
	case spirv.OpLoad:
		return inv.load(w[0], w[1], w[2])
	case spirv.OpStore:
		return inv.store(w[0], w[1])
	case spirv.OpAccessChain:
		return inv.accessChain(w[0], w[1], w[2], w[3:])
	case spirv.OpCompositeExtract:
		return inv.compositeExtract(w[1], w[2], w[3:])
	case spirv.OpSelect:
		if len(w) < 5 {
			return fmt.Errorf("expected 5 operands")
		}
		return inv.selectValue(w[1], w[2], w[3], w[4])
	case spirv.OpAtomicAnd, spirv.OpAtomicOr:
		if len(w) < 6 {
			return fmt.Errorf("expected 6 operands")
		}
		return inv.atomic(inst.Opcode, w[1], w[2], w[5])
	case spirv.OpExtInst:
		if len(w) < 5 {
			return fmt.Errorf("expected an operand")
		}
		if w[2] != inv.m.glslSet {
			return fmt.Errorf("unknown extended instruction set %%%d", w[2])
		}
		return inv.unary(w[0], w[1], w[4], func(src, dst *typeInfo, x uint64) (uint64, error) {
			return glsl(w[3], src, x)
		})
	}

	switch len(w) {
	case 3:
		fn, ok := unaryOps[inst.Opcode]
		if !ok {
			return fmt.Errorf("unsupported instruction")
		}
		return inv.unary(w[0], w[1], w[2], fn)
	case 4:
		fn, ok := binaryOps[inst.Opcode]
		if !ok {
			return fmt.Errorf("unsupported instruction")
		}
		return inv.binary(w[1], w[2], w[3], fn)
	}
	return fmt.Errorf("unsupported instruction")
}

func (inv *invocation) load(typ, result, ptrID uint32) error {
	p, err := inv.pointerOf(ptrID)
	if err != nil {
		return err
	}
	if p.mem == nil {
		id := inv.globalID
		inv.vals[result] = value{elems: []uint64{uint64(id[0]), uint64(id[1]), uint64(id[2])}}
		return nil
	}
	t, err := inv.m.typeOf(typ)
	if err != nil {
		return err
	}
	v, err := inv.loadTyped(p.mem, p.offset, t)
	if err != nil {
		return err
	}
	inv.vals[result] = v
	return nil
}

func (inv *invocation) loadTyped(mem *memory, offset uint32, t *typeInfo) (value, error) {
	switch t.kind {
	case kindBool, kindInt, kindFloat:
		size, _ := inv.m.sizeOf(t)
		bits, err := mem.load(offset, size)
		return value{bits: bits}, err
	case kindVector:
		elem, err := inv.m.typeOf(t.elem)
		if err != nil {
			return value{}, err
		}
		size, err := inv.m.sizeOf(elem)
		if err != nil {
			return value{}, err
		}
		elems := make([]uint64, t.count)
		for i := range elems {
			if elems[i], err = mem.load(offset+uint32(i)*size, size); err != nil {
				return value{}, err
			}
		}
		return value{elems: elems}, nil
	}
	return value{}, fmt.Errorf("cannot load a value of this type")
}

func (inv *invocation) store(ptrID, valueID uint32) error {
	p, err := inv.pointerOf(ptrID)
	if err != nil {
		return err
	}
	if p.mem == nil {
		return fmt.Errorf("store to an input variable")
	}
	t, err := inv.m.typeOf(p.typ)
	if err != nil {
		return err
	}
	v, err := inv.operand(valueID)
	if err != nil {
		return err
	}
	switch t.kind {
	case kindBool, kindInt, kindFloat:
		size, _ := inv.m.sizeOf(t)
		return p.mem.store(p.offset, size, v.bits)
	case kindVector:
		elem, err := inv.m.typeOf(t.elem)
		if err != nil {
			return err
		}
		size, err := inv.m.sizeOf(elem)
		if err != nil {
			return err
		}
		for i, bits := range v.elems {
			if err := p.mem.store(p.offset+uint32(i)*size, size, bits); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot store a value of this type")
}

func (inv *invocation) accessChain(typ, result, baseID uint32, indices []uint32) error {
	base, err := inv.pointerOf(baseID)
	if err != nil {
		return err
	}
	if base.mem == nil {
		return fmt.Errorf("access chain into an input variable")
	}
	offset := base.offset
	cur := base.typ
	for i, id := range indices {
		idx, err := inv.index(id)
		if err != nil {
			return err
		}
		t, err := inv.m.typeOf(cur)
		if err != nil {
			return err
		}
		switch t.kind {
		case kindStruct:
			if idx >= uint64(len(t.members)) {
				return fmt.Errorf("index %d: member %d out of range", i, idx)
			}
			offset += t.offsets[idx]
			cur = t.members[idx]
		case kindArray, kindRuntimeArray:
			if t.kind == kindArray && idx >= uint64(t.count) {
				return fmt.Errorf("index %d: element %d out of range [0, %d)", i, idx, t.count)
			}
			offset += uint32(idx) * t.stride
			cur = t.elem
		case kindVector:
			if idx >= uint64(t.count) {
				return fmt.Errorf("index %d: component %d out of range", i, idx)
			}
			elem, err := inv.m.typeOf(t.elem)
			if err != nil {
				return err
			}
			size, err := inv.m.sizeOf(elem)
			if err != nil {
				return err
			}
			offset += uint32(idx) * size
			cur = t.elem
		default:
			return fmt.Errorf("index %d into a non-composite type", i)
		}
	}
	if pt, err := inv.m.typeOf(typ); err != nil || pt.kind != kindPointer || pt.elem != cur {
		return fmt.Errorf("result type does not point to the indexed type")
	}
	inv.vals[result] = value{ptr: &pointer{mem: base.mem, offset: offset, typ: cur}}
	return nil
}

// index reads an integer access chain index as a non-negative offset.
func (inv *invocation) index(id uint32) (uint64, error) {
	v, err := inv.operand(id)
	if err != nil {
		return 0, err
	}
	t, err := inv.scalarTypeOf(id)
	if err != nil {
		return 0, err
	}
	if t.kind != kindInt || v.elems != nil {
		return 0, fmt.Errorf("index %%%d is not a scalar integer", id)
	}
	n := signExtend(v.bits, t.width)
	if n < 0 {
		return 0, fmt.Errorf("negative index %d", n)
	}
	return uint64(n), nil
}

func (inv *invocation) compositeExtract(result, compositeID uint32, literals []uint32) error {
	v, err := inv.operand(compositeID)
	if err != nil {
		return err
	}
	if len(literals) != 1 || v.elems == nil {
		return fmt.Errorf("only single-level vector extraction is supported")
	}
	if int(literals[0]) >= len(v.elems) {
		return fmt.Errorf("component %d out of range", literals[0])
	}
	inv.vals[result] = value{bits: v.elems[literals[0]]}
	return nil
}

func (inv *invocation) selectValue(result, condID, aID, bID uint32) error {
	cond, err := inv.operand(condID)
	if err != nil {
		return err
	}
	a, err := inv.operand(aID)
	if err != nil {
		return err
	}
	b, err := inv.operand(bID)
	if err != nil {
		return err
	}
	if cond.elems == nil {
		if cond.bits != 0 {
			inv.vals[result] = a
		} else {
			inv.vals[result] = b
		}
		return nil
	}
	if len(cond.elems) != len(a.elems) || len(a.elems) != len(b.elems) {
		return fmt.Errorf("component count mismatch")
	}
	out := make([]uint64, len(a.elems))
	for i, c := range cond.elems {
		if c != 0 {
			out[i] = a.elems[i]
		} else {
			out[i] = b.elems[i]
		}
	}
	inv.vals[result] = value{elems: out}
	return nil
}

func (inv *invocation) atomic(op spirv.OpCode, result, ptrID, valueID uint32) error {
	p, err := inv.pointerOf(ptrID)
	if err != nil {
		return err
	}
	if p.mem == nil {
		return fmt.Errorf("atomic on an input variable")
	}
	v, err := inv.operand(valueID)
	if err != nil {
		return err
	}
	var old uint32
	if op == spirv.OpAtomicAnd {
		old, err = p.mem.atomicAnd(p.offset, uint32(v.bits))
	} else {
		old, err = p.mem.atomicOr(p.offset, uint32(v.bits))
	}
	if err != nil {
		return err
	}
	inv.vals[result] = value{bits: uint64(old)}
	return nil
}

type unaryFunc func(src, dst *typeInfo, x uint64) (uint64, error)

type binaryFunc func(t *typeInfo, a, b uint64) (uint64, error)

func (inv *invocation) unary(typ, result, operandID uint32, fn unaryFunc) error {
	x, err := inv.operand(operandID)
	if err != nil {
		return err
	}
	src, err := inv.scalarTypeOf(operandID)
	if err != nil {
		return err
	}
	rt, err := inv.m.typeOf(typ)
	if err != nil {
		return err
	}
	dst, err := inv.m.scalarOf(rt)
	if err != nil {
		return err
	}
	if x.elems == nil {
		bits, err := fn(src, dst, x.bits)
		inv.vals[result] = value{bits: bits}
		return err
	}
	out := make([]uint64, len(x.elems))
	for i, e := range x.elems {
		if out[i], err = fn(src, dst, e); err != nil {
			return err
		}
	}
	inv.vals[result] = value{elems: out}
	return nil
}

func (inv *invocation) binary(result, aID, bID uint32, fn binaryFunc) error {
	a, err := inv.operand(aID)
	if err != nil {
		return err
	}
	b, err := inv.operand(bID)
	if err != nil {
		return err
	}
	t, err := inv.scalarTypeOf(aID)
	if err != nil {
		return err
	}
	if a.elems == nil && b.elems == nil {
		bits, err := fn(t, a.bits, b.bits)
		inv.vals[result] = value{bits: bits}
		return err
	}
	if len(a.elems) != len(b.elems) {
		return fmt.Errorf("component count mismatch")
	}
	out := make([]uint64, len(a.elems))
	for i := range a.elems {
		if out[i], err = fn(t, a.elems[i], b.elems[i]); err != nil {
			return err
		}
	}
	inv.vals[result] = value{elems: out}
	return nil
}
