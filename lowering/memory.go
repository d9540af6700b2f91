package lowering

import (
	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
)

// memrefAccess gathers what every load/store pattern needs about its memref
// operand.
type memrefAccess struct {
	source  ir.MemRefType
	pointer ir.PointerType
	elem    ir.Type // converted storage element
}

func accessOf(op *ir.Operation, memref, converted *ir.Value) (memrefAccess, error) {
	mt, ok := memref.Type().(ir.MemRefType)
	if !ok {
		return memrefAccess{}, newError(ErrUnsupportedType, op, "%s is not a memref", memref.Type())
	}
	pt, ok := converted.Type().(ir.PointerType)
	if !ok {
		return memrefAccess{}, newError(ErrUnsupportedType, op, "memref converted to %s", converted.Type())
	}
	elem, ok := storageElement(pt)
	if !ok {
		return memrefAccess{}, newError(ErrUnsupportedType, op, "memref converted to %s", pt)
	}
	return memrefAccess{source: mt, pointer: pt, elem: elem}, nil
}

// elementPointer emits an access chain to the element at indices. Static
// multi-dimensional memrefs are addressed through their row-major linear
// index.
func elementPointer(rw *Rewriter, op *ir.Operation, access memrefAccess, base *ir.Value, indices []*ir.Value) (*ir.Value, error) {
	shape := access.source.Shape
	if len(indices) != len(shape) {
		return nil, newError(ErrUnsupportedAccess, op, "%d indices for a rank %d memref", len(indices), len(shape))
	}

	var linear *ir.Value
	switch len(indices) {
	case 0:
		linear = rw.ConstantInt(ir.I32, 0)
	case 1:
		linear = indices[0]
	default:
		if !ir.HasStaticShape(shape) {
			return nil, newError(ErrUnsupportedAccess, op, "dynamic multi-dimensional memref")
		}
		it, ok := indices[0].Type().(ir.IntegerType)
		if !ok {
			return nil, newError(ErrUnsupportedAccess, op, "index of type %s", indices[0].Type())
		}
		linear = indices[0]
		for k := 1; k < len(indices); k++ {
			dim := rw.ConstantInt(it, shape[k])
			linear = rw.Create(spirv.IMul, it, []*ir.Value{linear, dim}, nil).Result()
			linear = rw.Create(spirv.IAdd, it, []*ir.Value{linear, indices[k]}, nil).Result()
		}
	}
	if _, ok := linear.Type().(ir.IntegerType); !ok {
		return nil, newError(ErrUnsupportedAccess, op, "index of type %s", linear.Type())
	}

	zero := rw.ConstantInt(ir.I32, 0)
	ptrType := ir.PointerType{Pointee: access.elem, Space: access.pointer.Space}
	chain := rw.Create(spirv.AccessChain, ptrType, []*ir.Value{base, zero, linear}, nil)
	return chain.Result(), nil
}

// adjustAccess re-addresses an element pointer of a narrow element to the
// word that contains it. It returns the word pointer and the bit offset of
// the element inside the word.
func adjustAccess(rw *Rewriter, op *ir.Operation, ptr *ir.Value, sourceBits, targetBits uint32) (*ir.Value, *ir.Value, error) {
	chain := ptr.DefiningOp()
	if chain == nil || chain.Kind != spirv.AccessChain || chain.NumOperands() != 3 || !isZeroConstant(chain.Operand(1)) {
		return nil, nil, newError(ErrUnsupportedAccess, op, "expected an access chain with indices [0, index]")
	}
	index := chain.Operand(2)
	it, ok := index.Type().(ir.IntegerType)
	if !ok {
		return nil, nil, newError(ErrUnsupportedAccess, op, "index of type %s", index.Type())
	}

	ratio := rw.ConstantInt(it, int64(targetBits/sourceBits))
	word := rw.Create(spirv.SDiv, it, []*ir.Value{index, ratio}, nil).Result()
	wordPtr := rw.Create(spirv.AccessChain, ptr.Type(),
		[]*ir.Value{chain.Operand(0), chain.Operand(1), word}, nil).Result()

	bits := rw.ConstantInt(it, int64(sourceBits))
	lane := rw.Create(spirv.SMod, it, []*ir.Value{index, ratio}, nil).Result()
	offset := rw.Create(spirv.IMul, it, []*ir.Value{lane, bits}, nil).Result()

	rw.EraseOp(chain)
	return wordPtr, offset, nil
}

// packable reports an error unless source elements tile target words
// exactly.
func packable(op *ir.Operation, src, dst ir.IntegerType) error {
	if dst.Width < src.Width || dst.Width%src.Width != 0 {
		return newError(ErrUnsupportedType, op, "%d-bit elements cannot be packed into %d-bit words", src.Width, dst.Width)
	}
	return nil
}

func isZeroConstant(v *ir.Value) bool {
	def := v.DefiningOp()
	if def == nil || def.Kind != spirv.Constant {
		return false
	}
	a, ok := def.Attr(spirv.AttrValue).(ir.IntegerAttr)
	return ok && a.Bits().Sign() == 0
}

func lowBitsMask(t ir.IntegerType, bits uint32, rw *Rewriter) *ir.Value {
	return rw.ConstantInt(t, int64(1)<<bits-1)
}

// intLoadPattern loads signless integers, extracting narrow elements from
// the word that holds them.
type intLoadPattern struct {
	basePattern
}

func (p *intLoadPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) < 1 {
		return newError(ErrUnsupportedOperand, op, "missing memref operand")
	}
	access, err := accessOf(op, op.Operand(0), operands[0])
	if err != nil {
		return err
	}
	src, ok := access.source.Elem.(ir.IntegerType)
	if !ok || src.Signedness != ir.Signless {
		return newError(ErrUnsupportedType, op, "element %s is not a signless integer", access.source.Elem)
	}
	dst, ok := access.elem.(ir.IntegerType)
	if !ok {
		return newError(ErrUnsupportedType, op, "integer element stored as %s", access.elem)
	}
	if err := packable(op, src, dst); err != nil {
		return err
	}

	ptr, err := elementPointer(rw, op, access, operands[0], operands[1:])
	if err != nil {
		return err
	}
	if src.Width == dst.Width {
		rw.ReplaceOpWithNewOp(op, spirv.Load, dst, []*ir.Value{ptr}, nil)
		return nil
	}

	result, err := p.convertResult(op)
	if err != nil {
		return err
	}
	wordPtr, offset, err := adjustAccess(rw, op, ptr, src.Width, dst.Width)
	if err != nil {
		return err
	}
	word := rw.Create(spirv.Load, dst, []*ir.Value{wordPtr}, nil).Result()
	shifted := rw.Create(spirv.ShiftRightArithmetic, dst, []*ir.Value{word, offset}, nil).Result()
	mask := lowBitsMask(dst, src.Width, rw)
	rw.ReplaceOpWithNewOp(op, spirv.BitwiseAnd, result, []*ir.Value{shifted, mask}, nil)
	return nil
}

// intStorePattern stores signless integers. Narrow elements are written
// with two atomic read-modify-write operations on the containing word: the
// first clears the element's bits, the second sets the new ones. Other
// bits of the word are never touched, so lanes writing neighboring
// elements do not interfere.
type intStorePattern struct {
	basePattern
}

func (p *intStorePattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) < 2 {
		return newError(ErrUnsupportedOperand, op, "expected a value and a memref operand")
	}
	access, err := accessOf(op, op.Operand(1), operands[1])
	if err != nil {
		return err
	}
	src, ok := access.source.Elem.(ir.IntegerType)
	if !ok || src.Signedness != ir.Signless {
		return newError(ErrUnsupportedType, op, "element %s is not a signless integer", access.source.Elem)
	}
	dst, ok := access.elem.(ir.IntegerType)
	if !ok {
		return newError(ErrUnsupportedType, op, "integer element stored as %s", access.elem)
	}
	if err := packable(op, src, dst); err != nil {
		return err
	}

	ptr, err := elementPointer(rw, op, access, operands[1], operands[2:])
	if err != nil {
		return err
	}
	value := operands[0]
	if src.Width == dst.Width {
		rw.ReplaceOpWithNewOp(op, spirv.Store, nil, []*ir.Value{ptr, value}, nil)
		return nil
	}

	wordPtr, offset, err := adjustAccess(rw, op, ptr, src.Width, dst.Width)
	if err != nil {
		return err
	}
	mask := lowBitsMask(dst, src.Width, rw)
	field := rw.Create(spirv.ShiftLeftLogical, dst, []*ir.Value{mask, offset}, nil).Result()
	clear := rw.Create(spirv.Not, dst, []*ir.Value{field}, nil).Result()
	masked := rw.Create(spirv.BitwiseAnd, dst, []*ir.Value{value, mask}, nil).Result()
	insert := rw.Create(spirv.ShiftLeftLogical, dst, []*ir.Value{masked, offset}, nil).Result()

	attrs := func() map[string]ir.Attribute {
		return map[string]ir.Attribute{
			spirv.AttrMemoryScope: ir.StringAttr(spirv.ScopeDevice.String()),
			spirv.AttrSemantics:   ir.StringAttr(spirv.MemorySemanticsAcquireRelease.String()),
		}
	}
	rw.Create(spirv.AtomicAnd, dst, []*ir.Value{wordPtr, clear}, attrs())
	rw.Create(spirv.AtomicOr, dst, []*ir.Value{wordPtr, insert}, attrs())
	rw.EraseOp(op)
	return nil
}

// loadPattern loads any element that is not a signless integer. The
// element must keep its size through conversion.
type loadPattern struct {
	basePattern
}

func (p *loadPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) < 1 {
		return newError(ErrUnsupportedOperand, op, "missing memref operand")
	}
	access, err := accessOf(op, op.Operand(0), operands[0])
	if err != nil {
		return err
	}
	if ir.IsSignlessInteger(access.source.Elem) {
		return newError(ErrUnsupportedType, op, "signless integer elements use the packed access path")
	}
	if err := sameSize(op, access); err != nil {
		return err
	}
	ptr, err := elementPointer(rw, op, access, operands[0], operands[1:])
	if err != nil {
		return err
	}
	rw.ReplaceOpWithNewOp(op, spirv.Load, access.elem, []*ir.Value{ptr}, nil)
	return nil
}

type storePattern struct {
	basePattern
}

func (p *storePattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) < 2 {
		return newError(ErrUnsupportedOperand, op, "expected a value and a memref operand")
	}
	access, err := accessOf(op, op.Operand(1), operands[1])
	if err != nil {
		return err
	}
	if ir.IsSignlessInteger(access.source.Elem) {
		return newError(ErrUnsupportedType, op, "signless integer elements use the packed access path")
	}
	if err := sameSize(op, access); err != nil {
		return err
	}
	ptr, err := elementPointer(rw, op, access, operands[1], operands[2:])
	if err != nil {
		return err
	}
	rw.ReplaceOpWithNewOp(op, spirv.Store, nil, []*ir.Value{ptr, operands[0]}, nil)
	return nil
}

func sameSize(op *ir.Operation, access memrefAccess) error {
	srcSize, ok1 := ir.ByteSize(access.source.Elem)
	dstSize, ok2 := ir.ByteSize(access.elem)
	if !ok1 || !ok2 || srcSize != dstSize {
		return newError(ErrUnsupportedType, op, "element %s stored as %s", access.source.Elem, access.elem)
	}
	return nil
}
