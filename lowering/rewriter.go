package lowering

import (
	"go.uber.org/zap"

	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
)

// Rewriter is the rewrite session handed to patterns. It is the only way a
// pattern edits the module.
//
// Edits are deferred: new operations are inserted before the operation
// being converted, but original operations stay in place, keeping their
// results, until Commit. Each edit is journaled so that a failed pattern,
// or a failed conversion as a whole, can be undone.
type Rewriter struct {
	converter *TypeConverter
	logger    *zap.Logger
	builder   *ir.Builder

	// original value → converted value
	mapping map[*ir.Value]*ir.Value

	created   map[*ir.Operation]bool
	createdIn []*ir.Operation
	dead      map[*ir.Operation]bool

	// originals scheduled for removal, in rewrite order
	removed    []*ir.Operation
	removedSet map[*ir.Operation]bool

	args []argChange

	journal []func()
}

type argChange struct {
	fn    *ir.Function
	index int
	value *ir.Value
}

func newRewriter(converter *TypeConverter) *Rewriter {
	return &Rewriter{
		converter:  converter,
		logger:     converter.Logger(),
		builder:    ir.NewBuilder(nil),
		mapping:    make(map[*ir.Value]*ir.Value),
		created:    make(map[*ir.Operation]bool),
		dead:       make(map[*ir.Operation]bool),
		removedSet: make(map[*ir.Operation]bool),
	}
}

// TypeConverter returns the session's type converter.
func (rw *Rewriter) TypeConverter() *TypeConverter { return rw.converter }

// setRoot makes op the operation being converted; new operations are
// inserted before it.
func (rw *Rewriter) setRoot(op *ir.Operation) {
	rw.builder.SetInsertionPointBefore(op)
}

// lookup returns the converted value of v, or v itself.
func (rw *Rewriter) lookup(v *ir.Value) *ir.Value {
	if nv, ok := rw.mapping[v]; ok {
		return nv
	}
	return v
}

func (rw *Rewriter) remap(values []*ir.Value) []*ir.Value {
	out := make([]*ir.Value, len(values))
	for i, v := range values {
		out[i] = rw.lookup(v)
	}
	return out
}

func (rw *Rewriter) mapValue(from, to *ir.Value) {
	rw.mapping[from] = to
	rw.journal = append(rw.journal, func() { delete(rw.mapping, from) })
}

// retypeArgument schedules argument i of fn to be replaced by a fresh
// argument of type t.
func (rw *Rewriter) retypeArgument(fn *ir.Function, i int, t ir.Type) {
	nv := ir.NewArgument(t)
	rw.mapValue(fn.Args[i], nv)
	rw.args = append(rw.args, argChange{fn: fn, index: i, value: nv})
	rw.journal = append(rw.journal, func() { rw.args = rw.args[:len(rw.args)-1] })
}

// Create builds a new operation before the operation being converted.
func (rw *Rewriter) Create(kind ir.OpKind, resultType ir.Type, operands []*ir.Value, attrs map[string]ir.Attribute) *ir.Operation {
	op := rw.builder.Create(kind, resultType, operands, attrs)
	rw.created[op] = true
	rw.createdIn = append(rw.createdIn, op)
	rw.journal = append(rw.journal, func() {
		delete(rw.created, op)
		rw.createdIn = rw.createdIn[:len(rw.createdIn)-1]
		delete(rw.dead, op)
		op.Erase()
	})
	return op
}

// Constant creates a target constant.
func (rw *Rewriter) Constant(t ir.Type, value ir.Attribute) *ir.Value {
	return rw.Create(spirv.Constant, t, nil, map[string]ir.Attribute{spirv.AttrValue: value}).Result()
}

// ConstantInt creates a target integer constant.
func (rw *Rewriter) ConstantInt(t ir.IntegerType, v int64) *ir.Value {
	return rw.Constant(t, ir.NewIntegerAttr(t, v))
}

// ReplaceOp replaces the result of op with v. A nil v is allowed for
// operations without a result.
func (rw *Rewriter) ReplaceOp(op *ir.Operation, v *ir.Value) {
	if res := op.Result(); res != nil && v != nil {
		rw.mapValue(res, v)
	}
	rw.remove(op)
}

// ReplaceOpWithNewOp creates a new operation and replaces op with it.
func (rw *Rewriter) ReplaceOpWithNewOp(op *ir.Operation, kind ir.OpKind, resultType ir.Type, operands []*ir.Value, attrs map[string]ir.Attribute) *ir.Operation {
	nop := rw.Create(kind, resultType, operands, attrs)
	rw.ReplaceOp(op, nop.Result())
	return nop
}

// EraseOp removes op. Operations created in this session are dropped at
// commit; original operations must not have a result that is still used
// once every replacement is applied.
func (rw *Rewriter) EraseOp(op *ir.Operation) {
	rw.remove(op)
}

func (rw *Rewriter) remove(op *ir.Operation) {
	if rw.created[op] {
		if !rw.dead[op] {
			rw.dead[op] = true
			rw.journal = append(rw.journal, func() { delete(rw.dead, op) })
		}
		return
	}
	if rw.removedSet[op] {
		return
	}
	rw.removed = append(rw.removed, op)
	rw.removedSet[op] = true
	rw.journal = append(rw.journal, func() {
		rw.removed = rw.removed[:len(rw.removed)-1]
		delete(rw.removedSet, op)
	})
}

// isRemoved reports whether op has been replaced or erased.
func (rw *Rewriter) isRemoved(op *ir.Operation) bool { return rw.removedSet[op] }

func (rw *Rewriter) checkpoint() int { return len(rw.journal) }

// rollbackTo undoes every edit made after checkpoint cp.
func (rw *Rewriter) rollbackTo(cp int) {
	for i := len(rw.journal) - 1; i >= cp; i-- {
		rw.journal[i]()
	}
	rw.journal = rw.journal[:cp]
}

// commit applies the deferred edits: replaced results are rewired,
// originals and dead new operations are erased and arguments retyped.
func (rw *Rewriter) commit() error {
	if err := rw.checkErasable(); err != nil {
		return err
	}

	doomed := append([]*ir.Operation(nil), rw.removed...)
	for _, op := range rw.createdIn {
		if rw.dead[op] {
			doomed = append(doomed, op)
		}
	}

	for _, op := range doomed {
		res := op.Result()
		if res == nil {
			continue
		}
		if nv, ok := rw.mapping[res]; ok {
			res.ReplaceAllUsesWith(rw.resolve(nv))
		}
	}
	for _, ac := range rw.args {
		ac.fn.ReplaceArgument(ac.index, ac.value)
	}
	// drop operands first so that erasure order does not matter
	for _, op := range doomed {
		for i := 0; i < op.NumOperands(); i++ {
			op.SetOperand(i, nil)
		}
	}
	for _, op := range doomed {
		op.Erase()
	}

	rw.journal = nil
	rw.removed = nil
	rw.removedSet = make(map[*ir.Operation]bool)
	rw.createdIn = nil
	rw.created = make(map[*ir.Operation]bool)
	rw.dead = make(map[*ir.Operation]bool)
	rw.mapping = make(map[*ir.Value]*ir.Value)
	rw.args = nil
	return nil
}

// resolve follows replacement chains, e.g. a forwarded cast of a value
// that was itself replaced.
func (rw *Rewriter) resolve(v *ir.Value) *ir.Value {
	for i := 0; i < len(rw.mapping); i++ {
		nv, ok := rw.mapping[v]
		if !ok {
			break
		}
		v = nv
	}
	return v
}

// checkErasable verifies that every erased original without a replacement
// is only used by operations that are removed too.
func (rw *Rewriter) checkErasable() error {
	for _, op := range rw.removed {
		res := op.Result()
		if res == nil {
			continue
		}
		if _, ok := rw.mapping[res]; ok {
			continue
		}
		for _, user := range res.Users() {
			if !rw.removedSet[user] && !rw.dead[user] {
				return newError(ErrInvalidModule, op, "erased operation still used by %s", user.Kind)
			}
		}
	}
	for _, op := range rw.createdIn {
		if !rw.dead[op] || op.Result() == nil {
			continue
		}
		if _, ok := rw.mapping[op.Result()]; ok {
			continue
		}
		for _, user := range op.Result().Users() {
			if !rw.dead[user] {
				return newError(ErrInvalidModule, op, "erased operation still used by %s", user.Kind)
			}
		}
	}
	return nil
}
