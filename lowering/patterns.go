package lowering

import (
	"errors"

	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
)

// opcodeTable lists the operations that map one-to-one onto a target
// operation with the same operands.
var opcodeTable = []struct {
	source ir.OpKind
	target ir.OpKind
}{
	{ir.OpAbsF, spirv.GLSLFAbs},
	{ir.OpAddF, spirv.FAdd},
	{ir.OpAddI, spirv.IAdd},
	{ir.OpCeilF, spirv.GLSLCeil},
	{ir.OpCos, spirv.GLSLCos},
	{ir.OpDivF, spirv.FDiv},
	{ir.OpExp, spirv.GLSLExp},
	{ir.OpLog, spirv.GLSLLog},
	{ir.OpMulF, spirv.FMul},
	{ir.OpMulI, spirv.IMul},
	{ir.OpNegF, spirv.FNegate},
	{ir.OpRemF, spirv.FRem},
	{ir.OpRsqrt, spirv.GLSLInverseSqrt},
	{ir.OpShiftLeft, spirv.ShiftLeftLogical},
	{ir.OpDivISigned, spirv.SDiv},
	{ir.OpRemISigned, spirv.SRem},
	{ir.OpShiftRightSigned, spirv.ShiftRightArithmetic},
	{ir.OpSin, spirv.GLSLSin},
	{ir.OpSqrt, spirv.GLSLSqrt},
	{ir.OpSubF, spirv.FSub},
	{ir.OpSubI, spirv.ISub},
	{ir.OpTanh, spirv.GLSLTanh},
	{ir.OpDivIUnsigned, spirv.UDiv},
	{ir.OpRemIUnsigned, spirv.UMod},
	{ir.OpShiftRightUnsigned, spirv.ShiftRightLogical},
}

// unaryAndBinaryPattern rewrites an operation with at most two operands
// into its target counterpart.
type unaryAndBinaryPattern struct {
	basePattern
	target ir.OpKind
}

func (p *unaryAndBinaryPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) > 2 {
		return newError(ErrUnsupportedOperand, op, "expected at most two operands, got %d", len(operands))
	}
	t, err := p.convertResult(op)
	if err != nil {
		return err
	}
	rw.ReplaceOpWithNewOp(op, p.target, t, operands, nil)
	return nil
}

// bitwisePattern lowers and/or/xor. Boolean operands select the logical
// form; an empty logical kind means the boolean form is not supported.
type bitwisePattern struct {
	basePattern
	logical ir.OpKind
	bitwise ir.OpKind
}

func (p *bitwisePattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) != 2 {
		return newError(ErrUnsupportedOperand, op, "expected two operands, got %d", len(operands))
	}
	t, err := p.convertResult(op)
	if err != nil {
		return err
	}
	kind := p.bitwise
	if ir.IsBoolScalarOrVector(op.Operand(0).Type()) {
		if p.logical == "" {
			return newError(ErrUnsupportedOperand, op, "boolean operands are not supported")
		}
		kind = p.logical
	}
	rw.ReplaceOpWithNewOp(op, kind, t, operands, nil)
	return nil
}

// constantScalarPattern lowers constants of scalar type.
type constantScalarPattern struct {
	basePattern
}

func (p *constantScalarPattern) MatchAndRewrite(op *ir.Operation, _ []*ir.Value, rw *Rewriter) error {
	src := op.Result().Type()
	if _, _, shaped := ir.ShapeOf(src); shaped {
		return newError(ErrUnsupportedType, op, "%s is not a scalar type", src)
	}
	dst, err := p.convertResult(op)
	if err != nil {
		return err
	}

	value := op.Attr(ir.AttrValue)
	var attr ir.Attribute
	switch {
	case isFloat(src):
		fa, ok := value.(ir.FloatAttr)
		if !ok {
			return newError(ErrUnsupportedAttribute, op, "expected a float value")
		}
		attr = fa
		if !ir.TypesEqual(src, dst) {
			if attr, err = p.converter.ConvertFloatAttr(fa, dst.(ir.FloatType)); err != nil {
				return withOp(err, op)
			}
		}

	case ir.IsBool(src):
		ba, ok := ConvertBoolAttr(value)
		if !ok {
			return newError(ErrUnsupportedAttribute, op, "expected a boolean value")
		}
		attr = ba

	default:
		ia, ok := value.(ir.IntegerAttr)
		if !ok {
			return newError(ErrUnsupportedAttribute, op, "expected an integer value")
		}
		it, ok := dst.(ir.IntegerType)
		if !ok {
			return newError(ErrUnsupportedType, op, "integer constant converted to %s", dst)
		}
		attr = ia
		if !ir.TypesEqual(src, dst) {
			if attr, err = p.converter.ConvertIntegerAttr(ia, it); err != nil {
				return withOp(err, op)
			}
		}
	}

	rw.ReplaceOpWithNewOp(op, spirv.Constant, dst, nil, map[string]ir.Attribute{spirv.AttrValue: attr})
	return nil
}

// constantCompositePattern lowers vector and tensor constants.
type constantCompositePattern struct {
	basePattern
}

func (p *constantCompositePattern) MatchAndRewrite(op *ir.Operation, _ []*ir.Value, rw *Rewriter) error {
	src := op.Result().Type()
	switch src.(type) {
	case ir.VectorType, ir.TensorType:
	default:
		return newError(ErrUnsupportedType, op, "%s is not a composite type", src)
	}
	dense, ok := op.Attr(ir.AttrValue).(ir.DenseElementsAttr)
	if !ok {
		return newError(ErrUnsupportedAttribute, op, "expected dense elements")
	}
	dst, err := p.convertResult(op)
	if err != nil {
		return err
	}
	attr, err := p.converter.ConvertDenseAttr(dense, src, dst)
	if err != nil {
		return withOp(err, op)
	}
	rw.ReplaceOpWithNewOp(op, spirv.Constant, dst, nil, map[string]ir.Attribute{spirv.AttrValue: attr})
	return nil
}

var cmpFTable = map[ir.CmpFPredicate]ir.OpKind{
	ir.CmpFOEQ: spirv.FOrdEqual,
	ir.CmpFOGT: spirv.FOrdGreaterThan,
	ir.CmpFOGE: spirv.FOrdGreaterThanEqual,
	ir.CmpFOLT: spirv.FOrdLessThan,
	ir.CmpFOLE: spirv.FOrdLessThanEqual,
	ir.CmpFONE: spirv.FOrdNotEqual,
	ir.CmpFUEQ: spirv.FUnordEqual,
	ir.CmpFUGT: spirv.FUnordGreaterThan,
	ir.CmpFUGE: spirv.FUnordGreaterThanEqual,
	ir.CmpFULT: spirv.FUnordLessThan,
	ir.CmpFULE: spirv.FUnordLessThanEqual,
	ir.CmpFUNE: spirv.FUnordNotEqual,
}

var cmpITable = map[ir.CmpIPredicate]ir.OpKind{
	ir.CmpIEQ:  spirv.IEqual,
	ir.CmpINE:  spirv.INotEqual,
	ir.CmpISLT: spirv.SLessThan,
	ir.CmpISLE: spirv.SLessThanEqual,
	ir.CmpISGT: spirv.SGreaterThan,
	ir.CmpISGE: spirv.SGreaterThanEqual,
	ir.CmpIULT: spirv.ULessThan,
	ir.CmpIULE: spirv.ULessThanEqual,
	ir.CmpIUGT: spirv.UGreaterThan,
	ir.CmpIUGE: spirv.UGreaterThanEqual,
}

var boolCmpITable = map[ir.CmpIPredicate]ir.OpKind{
	ir.CmpIEQ: spirv.LogicalEqual,
	ir.CmpINE: spirv.LogicalNotEqual,
}

type cmpFPattern struct {
	basePattern
}

func (p *cmpFPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if err := compareOperands(op, operands); err != nil {
		return err
	}
	pred, _ := ir.Predicate(op)
	kind, ok := cmpFTable[ir.CmpFPredicate(pred)]
	if !ok {
		return newError(ErrUnsupportedPredicate, op, "predicate %q", pred)
	}
	return replaceCompare(&p.basePattern, op, kind, operands, rw)
}

// boolCmpIPattern handles integer comparisons of booleans.
type boolCmpIPattern struct {
	basePattern
}

func (p *boolCmpIPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if err := compareOperands(op, operands); err != nil {
		return err
	}
	if !ir.IsBoolScalarOrVector(op.Operand(0).Type()) {
		return newError(ErrUnsupportedOperand, op, "operands are not boolean")
	}
	pred, _ := ir.Predicate(op)
	kind, ok := boolCmpITable[ir.CmpIPredicate(pred)]
	if !ok {
		return newError(ErrUnsupportedPredicate, op, "predicate %q on boolean operands", pred)
	}
	return replaceCompare(&p.basePattern, op, kind, operands, rw)
}

type cmpIPattern struct {
	basePattern
}

func (p *cmpIPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if err := compareOperands(op, operands); err != nil {
		return err
	}
	if ir.IsBoolScalarOrVector(op.Operand(0).Type()) {
		return newError(ErrUnsupportedOperand, op, "boolean operands")
	}
	pred, _ := ir.Predicate(op)
	kind, ok := cmpITable[ir.CmpIPredicate(pred)]
	if !ok {
		return newError(ErrUnsupportedPredicate, op, "predicate %q", pred)
	}
	return replaceCompare(&p.basePattern, op, kind, operands, rw)
}

func compareOperands(op *ir.Operation, operands []*ir.Value) error {
	if len(operands) != 2 {
		return newError(ErrUnsupportedOperand, op, "expected two operands, got %d", len(operands))
	}
	return nil
}

func replaceCompare(p *basePattern, op *ir.Operation, kind ir.OpKind, operands []*ir.Value, rw *Rewriter) error {
	t, err := p.convertResult(op)
	if err != nil {
		return err
	}
	rw.ReplaceOpWithNewOp(op, kind, t, operands, nil)
	return nil
}

// castPattern lowers a conversion. When source and destination convert to
// the same type the cast is dropped and its operand forwarded.
type castPattern struct {
	basePattern
	target ir.OpKind
}

func (p *castPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) != 1 {
		return newError(ErrUnsupportedOperand, op, "expected one operand, got %d", len(operands))
	}
	src, ok := p.converter.ConvertType(op.Operand(0).Type())
	if !ok {
		return newError(ErrUnsupportedType, op, "operand type %s has no target equivalent", op.Operand(0).Type())
	}
	dst, err := p.convertResult(op)
	if err != nil {
		return err
	}
	if ir.TypesEqual(src, dst) {
		rw.ReplaceOp(op, operands[0])
		return nil
	}
	rw.ReplaceOpWithNewOp(op, p.target, dst, operands, nil)
	return nil
}

type returnPattern struct {
	basePattern
}

func (p *returnPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) != 0 {
		return newError(ErrUnsupportedOperand, op, "returning values is not supported")
	}
	rw.ReplaceOpWithNewOp(op, spirv.Return, nil, nil, nil)
	return nil
}

type selectPattern struct {
	basePattern
}

func (p *selectPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	if len(operands) != 3 {
		return newError(ErrUnsupportedOperand, op, "expected three operands, got %d", len(operands))
	}
	t, err := p.convertResult(op)
	if err != nil {
		return err
	}
	rw.ReplaceOpWithNewOp(op, spirv.Select, t, operands, nil)
	return nil
}

// globalIDPattern lowers gpu.global_id to the invocation ID builtin.
type globalIDPattern struct {
	basePattern
}

func (p *globalIDPattern) MatchAndRewrite(op *ir.Operation, _ []*ir.Value, rw *Rewriter) error {
	dim, ok := op.Attr(ir.AttrDimension).(ir.IntegerAttr)
	if !ok || dim.Int64() < 0 || dim.Int64() > 2 {
		return newError(ErrUnsupportedAttribute, op, "dimension must be 0, 1 or 2")
	}
	t, err := p.convertResult(op)
	if err != nil {
		return err
	}
	if _, ok := t.(ir.IntegerType); !ok {
		return newError(ErrUnsupportedType, op, "invocation ID of type %s", t)
	}
	rw.ReplaceOpWithNewOp(op, spirv.GlobalInvocationID, t, nil, map[string]ir.Attribute{
		spirv.AttrDimension: ir.NewIntegerAttr(ir.I32, dim.Int64()),
	})
	return nil
}

// withOp attaches op to a lowering error raised without one.
func withOp(err error, op *ir.Operation) error {
	var le *Error
	if errors.As(err, &le) && le.Op == "" {
		le.Op = op.Kind
	}
	return err
}
