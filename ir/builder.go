package ir

// Builder creates operations at an insertion point.
type Builder struct {
	block  *Block
	before *Operation
}

// NewBuilder returns a builder appending to the end of b.
func NewBuilder(b *Block) *Builder {
	return &Builder{block: b}
}

// SetInsertionPointToEnd makes subsequent operations append to b.
func (b *Builder) SetInsertionPointToEnd(block *Block) {
	b.block = block
	b.before = nil
}

// SetInsertionPointBefore makes subsequent operations insert before op.
func (b *Builder) SetInsertionPointBefore(op *Operation) {
	b.block = op.block
	b.before = op
}

// InsertionBlock returns the block operations are inserted into.
func (b *Builder) InsertionBlock() *Block { return b.block }

// Insert places a detached operation at the insertion point.
func (b *Builder) Insert(op *Operation) *Operation {
	b.block.InsertBefore(op, b.before)
	return op
}

// Create builds and inserts an operation.
func (b *Builder) Create(kind OpKind, resultType Type, operands []*Value, attrs map[string]Attribute) *Operation {
	return b.Insert(NewOperation(kind, resultType, operands, attrs))
}

// Constant creates a std.constant of type t.
func (b *Builder) Constant(t Type, value Attribute) *Value {
	return b.Create(OpConstant, t, nil, map[string]Attribute{AttrValue: value}).Result()
}

// ConstantInt creates an integer or index constant.
func (b *Builder) ConstantInt(t Type, v int64) *Value {
	return b.Constant(t, NewIntegerAttr(t, v))
}

// ConstantFloat creates a float constant.
func (b *Builder) ConstantFloat(t FloatType, v float64) *Value {
	return b.Constant(t, NewFloatAttr(t, v))
}

// ConstantBool creates an i1 constant.
func (b *Builder) ConstantBool(v bool) *Value {
	return b.Constant(I1, BoolAttr{Value: v})
}

// Binary creates a two-operand operation whose result has the type of lhs.
func (b *Builder) Binary(kind OpKind, lhs, rhs *Value) *Value {
	return b.Create(kind, lhs.Type(), []*Value{lhs, rhs}, nil).Result()
}

// Unary creates a one-operand operation whose result has the type of v.
func (b *Builder) Unary(kind OpKind, v *Value) *Value {
	return b.Create(kind, v.Type(), []*Value{v}, nil).Result()
}

// Cast creates a conversion of v to t.
func (b *Builder) Cast(kind OpKind, v *Value, t Type) *Value {
	return b.Create(kind, t, []*Value{v}, nil).Result()
}

// CmpI creates an integer comparison.
func (b *Builder) CmpI(pred CmpIPredicate, lhs, rhs *Value) *Value {
	return b.Create(OpCmpI, compareResultType(lhs.Type()), []*Value{lhs, rhs},
		map[string]Attribute{AttrPredicate: StringAttr(pred)}).Result()
}

// CmpF creates a float comparison.
func (b *Builder) CmpF(pred CmpFPredicate, lhs, rhs *Value) *Value {
	return b.Create(OpCmpF, compareResultType(lhs.Type()), []*Value{lhs, rhs},
		map[string]Attribute{AttrPredicate: StringAttr(pred)}).Result()
}

// Select creates a std.select.
func (b *Builder) Select(cond, trueValue, falseValue *Value) *Value {
	return b.Create(OpSelect, trueValue.Type(), []*Value{cond, trueValue, falseValue}, nil).Result()
}

// Load creates a std.load of memref at indices.
func (b *Builder) Load(memref *Value, indices ...*Value) *Value {
	mt := memref.Type().(MemRefType)
	operands := append([]*Value{memref}, indices...)
	return b.Create(OpLoad, mt.Elem, operands, nil).Result()
}

// Store creates a std.store of value into memref at indices.
func (b *Builder) Store(value, memref *Value, indices ...*Value) *Operation {
	operands := append([]*Value{value, memref}, indices...)
	return b.Create(OpStore, nil, operands, nil)
}

// Return creates a std.return.
func (b *Builder) Return(values ...*Value) *Operation {
	return b.Create(OpReturn, nil, values, nil)
}

// GlobalID creates a gpu.global_id for dimension dim (0, 1 or 2).
func (b *Builder) GlobalID(dim int64) *Value {
	return b.Create(OpGlobalID, Index, nil,
		map[string]Attribute{AttrDimension: NewIntegerAttr(I32, dim)}).Result()
}

func compareResultType(operand Type) Type {
	if vt, ok := operand.(VectorType); ok {
		return VectorType{Shape: vt.Shape, Elem: I1}
	}
	return I1
}
