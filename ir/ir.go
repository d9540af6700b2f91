package ir

import "strings"

// Module is an ordered collection of functions.
type Module struct {
	Functions []*Function
}

// Function returns the function with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// AddFunction appends fn to the module.
func (m *Module) AddFunction(fn *Function) *Function {
	m.Functions = append(m.Functions, fn)
	return fn
}

// Function is a function with a single body block.
type Function struct {
	Name    string
	Args    []*Value
	Results []Type
	Body    *Block

	// EntryPoint marks the function as a compute kernel.
	EntryPoint    bool
	WorkgroupSize [3]uint32
}

// NewFunction creates a function with one argument per type and an empty body.
func NewFunction(name string, argTypes ...Type) *Function {
	fn := &Function{Name: name}
	for i, t := range argTypes {
		fn.Args = append(fn.Args, &Value{typ: t, argIndex: i, fn: fn})
	}
	fn.Body = &Block{fn: fn}
	return fn
}

// ReplaceArgument makes v the i-th argument of fn, rewiring every use of the
// previous argument to v.
func (fn *Function) ReplaceArgument(i int, v *Value) {
	old := fn.Args[i]
	if old == v {
		return
	}
	old.ReplaceAllUsesWith(v)
	v.def = nil
	v.fn = fn
	v.argIndex = i
	fn.Args[i] = v
}

// OpKind identifies an operation. Kinds are dialect-prefixed, e.g. "std.addi".
type OpKind string

// Dialect returns the dialect prefix of the kind.
func (k OpKind) Dialect() string {
	if i := strings.IndexByte(string(k), '.'); i >= 0 {
		return string(k[:i])
	}
	return string(k)
}

func (k OpKind) String() string { return string(k) }

// Value is an SSA value.
type Value struct {
	typ Type
	def *Operation

	// set for function arguments
	fn       *Function
	argIndex int

	uses []*Operation
}

// NewArgument returns a detached argument value of type t. It becomes a real
// argument once passed to Function.ReplaceArgument.
func NewArgument(t Type) *Value {
	return &Value{typ: t, argIndex: -1}
}

// Type returns the value's type.
func (v *Value) Type() Type { return v.typ }

// DefiningOp returns the operation producing v, or nil for arguments.
func (v *Value) DefiningOp() *Operation { return v.def }

// IsArgument reports whether v is a function argument.
func (v *Value) IsArgument() bool { return v.def == nil }

// ArgIndex returns the argument position, or -1.
func (v *Value) ArgIndex() int {
	if v.def != nil {
		return -1
	}
	return v.argIndex
}

// Users returns the operations using v, once per use.
func (v *Value) Users() []*Operation {
	out := make([]*Operation, len(v.uses))
	copy(out, v.uses)
	return out
}

// HasUses reports whether any operation uses v.
func (v *Value) HasUses() bool { return len(v.uses) > 0 }

// ReplaceAllUsesWith rewires every use of v to nv.
func (v *Value) ReplaceAllUsesWith(nv *Value) {
	if v == nv {
		return
	}
	for _, user := range v.Users() {
		for i, operand := range user.operands {
			if operand == v {
				user.SetOperand(i, nv)
			}
		}
	}
}

func (v *Value) addUse(op *Operation) { v.uses = append(v.uses, op) }

func (v *Value) removeUse(op *Operation) {
	for i, u := range v.uses {
		if u == op {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// Operation is a single IR instruction.
type Operation struct {
	Kind  OpKind
	Attrs map[string]Attribute

	operands []*Value
	result   *Value

	block      *Block
	prev, next *Operation
}

// NewOperation creates a detached operation. A nil resultType creates an
// operation without a result.
func NewOperation(kind OpKind, resultType Type, operands []*Value, attrs map[string]Attribute) *Operation {
	op := &Operation{Kind: kind, Attrs: attrs}
	if op.Attrs == nil {
		op.Attrs = make(map[string]Attribute)
	}
	op.operands = make([]*Value, len(operands))
	copy(op.operands, operands)
	for _, v := range op.operands {
		if v != nil {
			v.addUse(op)
		}
	}
	if resultType != nil {
		op.result = &Value{typ: resultType, def: op, argIndex: -1}
	}
	return op
}

// Operands returns the operation's operands.
func (op *Operation) Operands() []*Value {
	out := make([]*Value, len(op.operands))
	copy(out, op.operands)
	return out
}

// Operand returns the i-th operand.
func (op *Operation) Operand(i int) *Value { return op.operands[i] }

// NumOperands returns the number of operands.
func (op *Operation) NumOperands() int { return len(op.operands) }

// SetOperand replaces the i-th operand.
func (op *Operation) SetOperand(i int, v *Value) {
	if old := op.operands[i]; old != nil {
		old.removeUse(op)
	}
	op.operands[i] = v
	if v != nil {
		v.addUse(op)
	}
}

// Result returns the operation's result, or nil.
func (op *Operation) Result() *Value { return op.result }

// Attr returns the named attribute, or nil.
func (op *Operation) Attr(name string) Attribute { return op.Attrs[name] }

// Block returns the block containing the operation, or nil if detached.
func (op *Operation) Block() *Block { return op.block }

// Next returns the following operation in the block.
func (op *Operation) Next() *Operation { return op.next }

// Prev returns the preceding operation in the block.
func (op *Operation) Prev() *Operation { return op.prev }

// Erase unlinks the operation from its block and drops its operand uses.
// The result must be unused.
func (op *Operation) Erase() {
	if op.result != nil && op.result.HasUses() {
		panic("ir: erasing " + string(op.Kind) + " whose result still has uses")
	}
	if op.block != nil {
		op.block.unlink(op)
	}
	for i, v := range op.operands {
		if v != nil {
			v.removeUse(op)
		}
		op.operands[i] = nil
	}
}

// Block is an ordered list of operations.
type Block struct {
	first, last *Operation
	size        int
	fn          *Function
}

// Function returns the function owning the block.
func (b *Block) Function() *Function { return b.fn }

// First returns the first operation, or nil.
func (b *Block) First() *Operation { return b.first }

// Last returns the last operation, or nil.
func (b *Block) Last() *Operation { return b.last }

// Len returns the number of operations.
func (b *Block) Len() int { return b.size }

// Ops returns a snapshot of the block's operations in order.
func (b *Block) Ops() []*Operation {
	ops := make([]*Operation, 0, b.size)
	for op := b.first; op != nil; op = op.next {
		ops = append(ops, op)
	}
	return ops
}

// Append adds a detached operation at the end of the block.
func (b *Block) Append(op *Operation) {
	b.InsertBefore(op, nil)
}

// InsertBefore inserts a detached operation before mark, or at the end when
// mark is nil.
func (b *Block) InsertBefore(op, mark *Operation) {
	if op.block != nil {
		panic("ir: inserting an operation that is already in a block")
	}
	op.block = b
	b.size++
	if mark == nil {
		op.prev = b.last
		op.next = nil
		if b.last != nil {
			b.last.next = op
		} else {
			b.first = op
		}
		b.last = op
		return
	}
	op.next = mark
	op.prev = mark.prev
	if mark.prev != nil {
		mark.prev.next = op
	} else {
		b.first = op
	}
	mark.prev = op
}

func (b *Block) unlink(op *Operation) {
	if op.prev != nil {
		op.prev.next = op.next
	} else {
		b.first = op.next
	}
	if op.next != nil {
		op.next.prev = op.prev
	} else {
		b.last = op.prev
	}
	op.prev, op.next, op.block = nil, nil, nil
	b.size--
}
