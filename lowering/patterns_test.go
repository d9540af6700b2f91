package lowering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
)

func TestOneToOnePatterns(t *testing.T) {
	for _, e := range opcodeTable {
		t.Run(string(e.source), func(t *testing.T) {
			fn := ir.NewFunction("f", ir.F32, ir.F32)
			b := ir.NewBuilder(fn.Body)
			b.Binary(e.source, fn.Args[0], fn.Args[1])
			b.Return()

			_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
			require.NoError(t, err)
			assert.Equal(t, []ir.OpKind{e.target, spirv.Return}, kinds(fn))
		})
	}
}

func TestOneToOneRejectsThreeOperands(t *testing.T) {
	fn := ir.NewFunction("f", ir.F32)
	b := ir.NewBuilder(fn.Body)
	b.Create(ir.OpAddF, ir.F32, []*ir.Value{fn.Args[0], fn.Args[0], fn.Args[0]}, nil)
	b.Return()

	_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
	assert.True(t, IsKind(err, ErrUnsupportedOperand))
}

func TestLogicalVersusBitwise(t *testing.T) {
	boolVec := ir.VectorType{Shape: []int64{2}, Elem: ir.I1}
	tests := []struct {
		kind    ir.OpKind
		operand ir.Type
		want    ir.OpKind
	}{
		{ir.OpAnd, ir.I1, spirv.LogicalAnd},
		{ir.OpAnd, ir.I32, spirv.BitwiseAnd},
		{ir.OpOr, boolVec, spirv.LogicalOr},
		{ir.OpOr, ir.I8, spirv.BitwiseOr},
		{ir.OpXOr, ir.I32, spirv.BitwiseXor},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+" "+tt.operand.String(), func(t *testing.T) {
			fn := ir.NewFunction("f", tt.operand, tt.operand)
			b := ir.NewBuilder(fn.Body)
			b.Binary(tt.kind, fn.Args[0], fn.Args[1])
			b.Return()

			_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, fn.Body.First().Kind)
		})
	}

	fn := ir.NewFunction("f", ir.I1, ir.I1)
	b := ir.NewBuilder(fn.Body)
	b.Binary(ir.OpXOr, fn.Args[0], fn.Args[1])
	b.Return()
	_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
	assert.True(t, IsKind(err, ErrUnsupportedOperand))
}

func TestCompareInteger(t *testing.T) {
	tests := []struct {
		pred    ir.CmpIPredicate
		operand ir.Type
		want    ir.OpKind // empty means the comparison fails
	}{
		{ir.CmpIEQ, ir.I1, spirv.LogicalEqual},
		{ir.CmpINE, ir.I1, spirv.LogicalNotEqual},
		{ir.CmpISLT, ir.I1, ""},
		{ir.CmpIUGE, ir.I1, ""},
		{ir.CmpIEQ, ir.I32, spirv.IEqual},
		{ir.CmpINE, ir.I32, spirv.INotEqual},
		{ir.CmpISLT, ir.I32, spirv.SLessThan},
		{ir.CmpISLE, ir.I32, spirv.SLessThanEqual},
		{ir.CmpISGT, ir.I32, spirv.SGreaterThan},
		{ir.CmpISGE, ir.I32, spirv.SGreaterThanEqual},
		{ir.CmpIULT, ir.I32, spirv.ULessThan},
		{ir.CmpIULE, ir.I32, spirv.ULessThanEqual},
		{ir.CmpIUGT, ir.I32, spirv.UGreaterThan},
		{ir.CmpIUGE, ir.Index, spirv.UGreaterThanEqual},
	}
	for _, tt := range tests {
		t.Run(string(tt.pred)+" "+tt.operand.String(), func(t *testing.T) {
			fn := ir.NewFunction("f", tt.operand, tt.operand)
			b := ir.NewBuilder(fn.Body)
			b.CmpI(tt.pred, fn.Args[0], fn.Args[1])
			b.Return()

			_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
			if tt.want == "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, ErrUnsupportedPredicate))
				return
			}
			require.NoError(t, err)
			cmp := fn.Body.First()
			assert.Equal(t, tt.want, cmp.Kind)
			assert.Equal(t, ir.I1, cmp.Result().Type())
		})
	}
}

func TestCompareOperandCount(t *testing.T) {
	for _, kind := range []ir.OpKind{ir.OpCmpI, ir.OpCmpF} {
		t.Run(string(kind), func(t *testing.T) {
			fn := ir.NewFunction("f", ir.I32)
			b := ir.NewBuilder(fn.Body)
			attrs := map[string]ir.Attribute{ir.AttrPredicate: ir.StringAttr(ir.CmpIEQ)}
			if kind == ir.OpCmpF {
				attrs[ir.AttrPredicate] = ir.StringAttr(ir.CmpFOEQ)
			}
			b.Create(kind, ir.I1, nil, attrs)
			b.Create(kind, ir.I1, []*ir.Value{fn.Args[0]}, attrs)
			b.Return()

			var err error
			require.NotPanics(t, func() {
				_, err = lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
			})
			require.Error(t, err)
			assert.True(t, IsKind(err, ErrUnsupportedOperand))
			assert.Contains(t, err.Error(), "expected two operands, got 0")
			assert.Contains(t, err.Error(), "expected two operands, got 1")
		})
	}
}

func TestCompareFloat(t *testing.T) {
	want := map[ir.CmpFPredicate]ir.OpKind{
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
	preds := []ir.CmpFPredicate{
		ir.CmpFAlwaysFalse, ir.CmpFOEQ, ir.CmpFOGT, ir.CmpFOGE, ir.CmpFOLT, ir.CmpFOLE, ir.CmpFONE,
		ir.CmpFORD, ir.CmpFUEQ, ir.CmpFUGT, ir.CmpFUGE, ir.CmpFULT, ir.CmpFULE, ir.CmpFUNE,
		ir.CmpFUNO, ir.CmpFAlwaysTrue,
	}
	for _, pred := range preds {
		t.Run(string(pred), func(t *testing.T) {
			vec := ir.VectorType{Shape: []int64{4}, Elem: ir.F32}
			fn := ir.NewFunction("f", vec, vec)
			b := ir.NewBuilder(fn.Body)
			b.CmpF(pred, fn.Args[0], fn.Args[1])
			b.Return()

			_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
			kind, ok := want[pred]
			if !ok {
				assert.True(t, IsKind(err, ErrUnsupportedPredicate))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, kind, fn.Body.First().Kind)
			assert.Equal(t, "vector<4xi1>", fn.Body.First().Result().Type().String())
		})
	}
}

func TestCastElimination(t *testing.T) {
	fn := ir.NewFunction("f", ir.Index)
	b := ir.NewBuilder(fn.Body)
	i := b.Cast(ir.OpIndexCast, fn.Args[0], ir.I32)
	b.Binary(ir.OpAddI, i, i)
	b.Return()

	_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
	require.NoError(t, err)
	assert.Equal(t, []ir.OpKind{spirv.IAdd, spirv.Return}, kinds(fn))
	add := fn.Body.First()
	assert.Same(t, fn.Args[0], add.Operand(0))
	assert.Same(t, fn.Args[0], add.Operand(1))
}

func TestCastKinds(t *testing.T) {
	native := withCapabilities(spirv.CapabilityInt8, spirv.CapabilityInt64, spirv.CapabilityFloat64)
	tests := []struct {
		name string
		kind ir.OpKind
		from ir.Type
		to   ir.Type
		want ir.OpKind // empty means the cast is forwarded
	}{
		{"sexti", ir.OpSignExtendI, ir.I8, ir.I32, spirv.SConvert},
		{"zexti", ir.OpZeroExtendI, ir.I8, ir.I64, spirv.UConvert},
		{"trunci", ir.OpTruncateI, ir.I64, ir.I8, spirv.SConvert},
		{"index_cast", ir.OpIndexCast, ir.I64, ir.Index, spirv.SConvert},
		{"sitofp", ir.OpSIToFP, ir.I32, ir.F32, spirv.ConvertSToF},
		{"fptosi", ir.OpFPToSI, ir.F64, ir.I32, spirv.ConvertFToS},
		{"fpext", ir.OpFPExt, ir.F32, ir.F64, spirv.FConvert},
		{"fptrunc", ir.OpFPTrunc, ir.F64, ir.F32, spirv.FConvert},
		{"index_cast same width", ir.OpIndexCast, ir.I32, ir.Index, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := ir.NewFunction("f", tt.from)
			b := ir.NewBuilder(fn.Body)
			b.Cast(tt.kind, fn.Args[0], tt.to)
			b.Return()

			_, err := lower(t, native, &ir.Module{Functions: []*ir.Function{fn}})
			require.NoError(t, err)
			if tt.want == "" {
				assert.Equal(t, []ir.OpKind{spirv.Return}, kinds(fn))
				return
			}
			assert.Equal(t, []ir.OpKind{tt.want, spirv.Return}, kinds(fn))
		})
	}

	// without Int8 both sides widen to i32 and the extension disappears
	fn := ir.NewFunction("f", ir.I8)
	b := ir.NewBuilder(fn.Body)
	b.Cast(ir.OpSignExtendI, fn.Args[0], ir.I32)
	b.Return()
	_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
	require.NoError(t, err)
	assert.Equal(t, []ir.OpKind{spirv.Return}, kinds(fn))
}

func TestConstants(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	converter := NewTypeConverter(spirv.DefaultOptions(), zap.New(core))
	patterns := PopulateStandardToSPIRVPatterns(converter, NewPatternSet())

	fn := ir.NewFunction("f")
	b := ir.NewBuilder(fn.Body)
	b.ConstantInt(ir.Index, 7)
	b.ConstantInt(ir.I64, -1)
	b.ConstantBool(true)
	b.Constant(ir.I1, ir.NewIntegerAttr(ir.I1, 1))
	b.ConstantFloat(ir.F64, 0.25)
	b.Constant(ir.TensorType{Shape: []int64{2, 2}, Elem: ir.I8}, ir.DenseElementsAttr{
		Type: ir.TensorType{Shape: []int64{2, 2}, Elem: ir.I8},
		Values: []ir.Attribute{
			ir.NewIntegerAttr(ir.I8, 1), ir.NewIntegerAttr(ir.I8, 2),
			ir.NewIntegerAttr(ir.I8, 3), ir.NewIntegerAttr(ir.I8, -4),
		},
	})
	b.Return()

	_, err := ApplyFullConversion(&ir.Module{Functions: []*ir.Function{fn}}, SPIRVTarget(), patterns, converter)
	require.NoError(t, err)

	ops := fn.Body.Ops()
	require.Len(t, ops, 7)
	values := make([]string, 0, 6)
	for _, op := range ops[:6] {
		require.Equal(t, spirv.Constant, op.Kind)
		values = append(values, op.Attr(spirv.AttrValue).String()+" @ "+op.Result().Type().String())
	}
	assert.Equal(t, []string{
		"7 : i32 @ i32",
		"-1 : i32 @ i32",
		"true @ i1",
		"true @ i1",
		"0.25 : f32 @ f32",
		"dense<[1, 2, 3, -4]> : tensor<4xi32> @ !spv.array<4 x i32, stride=4>",
	}, values)
	assert.Equal(t, 1, logs.FilterMessage("integer attribute reinterpreted as signed").Len())
}

func TestConstantNotRepresentable(t *testing.T) {
	fn := ir.NewFunction("f")
	b := ir.NewBuilder(fn.Body)
	b.ConstantFloat(ir.F64, 0.1)
	b.Return()

	_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnsupportedAttribute))
	assert.Contains(t, err.Error(), "std.constant")
}

func TestReturnSelectAndGlobalID(t *testing.T) {
	fn := ir.NewFunction("f", ir.I1, ir.F32, ir.F32)
	b := ir.NewBuilder(fn.Body)
	b.Select(fn.Args[0], fn.Args[1], fn.Args[2])
	b.GlobalID(1)
	b.Return()

	_, err := lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{fn}})
	require.NoError(t, err)
	assert.Equal(t, []ir.OpKind{spirv.Select, spirv.GlobalInvocationID, spirv.Return}, kinds(fn))
	gid := findOp(fn, spirv.GlobalInvocationID)
	assert.Equal(t, ir.I32, gid.Result().Type())
	assert.Equal(t, int64(1), gid.Attr(spirv.AttrDimension).(ir.IntegerAttr).Int64())

	withValue := ir.NewFunction("g", ir.I32)
	ir.NewBuilder(withValue.Body).Return(withValue.Args[0])
	_, err = lower(t, spirv.DefaultOptions(), &ir.Module{Functions: []*ir.Function{withValue}})
	assert.True(t, IsKind(err, ErrUnsupportedOperand))
}
