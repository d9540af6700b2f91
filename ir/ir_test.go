package ir

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseLists(t *testing.T) {
	fn := NewFunction("f", I32, I32)
	b := NewBuilder(fn.Body)
	sum := b.Binary(OpAddI, fn.Args[0], fn.Args[0])
	prod := b.Binary(OpMulI, sum, fn.Args[1])
	b.Return()

	assert.Len(t, fn.Args[0].Users(), 2)
	assert.Equal(t, []*Operation{prod.DefiningOp()}, sum.Users())

	sum.ReplaceAllUsesWith(fn.Args[1])
	assert.False(t, sum.HasUses())
	assert.Equal(t, fn.Args[1], prod.DefiningOp().Operand(0))
	assert.Len(t, fn.Args[1].Users(), 2)

	sum.DefiningOp().Erase()
	assert.Empty(t, fn.Args[0].Users())
	assert.Equal(t, 2, fn.Body.Len())
}

func TestEraseWithUsesPanics(t *testing.T) {
	fn := NewFunction("f", I32)
	b := NewBuilder(fn.Body)
	sum := b.Binary(OpAddI, fn.Args[0], fn.Args[0])
	b.Binary(OpAddI, sum, sum)

	assert.Panics(t, func() { sum.DefiningOp().Erase() })
}

func TestBuilderInsertionPoint(t *testing.T) {
	fn := NewFunction("f", I32)
	b := NewBuilder(fn.Body)
	ret := b.Return()

	b.SetInsertionPointBefore(ret)
	c := b.ConstantInt(I32, 7)
	b.Binary(OpAddI, c, fn.Args[0])

	ops := fn.Body.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, OpConstant, ops[0].Kind)
	assert.Equal(t, OpAddI, ops[1].Kind)
	assert.Equal(t, OpReturn, ops[2].Kind)
	assert.Equal(t, ops[1], ops[2].Prev())
	assert.Equal(t, fn.Body, ops[0].Block())
}

func TestReplaceArgument(t *testing.T) {
	fn := NewFunction("f", Index)
	b := NewBuilder(fn.Body)
	b.Binary(OpAddI, fn.Args[0], fn.Args[0])

	old := fn.Args[0]
	nv := NewArgument(I32)
	assert.Equal(t, -1, nv.ArgIndex())

	fn.ReplaceArgument(0, nv)
	assert.Equal(t, nv, fn.Args[0])
	assert.Equal(t, 0, nv.ArgIndex())
	assert.True(t, nv.IsArgument())
	assert.False(t, old.HasUses())
	assert.Len(t, nv.Users(), 2)
}

func TestOpKindDialect(t *testing.T) {
	assert.Equal(t, "std", OpAddI.Dialect())
	assert.Equal(t, "gpu", OpGlobalID.Dialect())
	assert.Equal(t, "spv", OpKind("spv.GLSL.FAbs").Dialect())
}

func TestPrintModule(t *testing.T) {
	scale := NewFunction("scale", MemRefType{Shape: []int64{16}, Elem: F32})
	scale.EntryPoint = true
	scale.WorkgroupSize = [3]uint32{16, 1, 1}
	b := NewBuilder(scale.Body)
	id := b.GlobalID(0)
	v := b.Load(scale.Args[0], id)
	two := b.ConstantFloat(F32, 2)
	bias := b.ConstantFloat(F32, 1)
	prod := b.Binary(OpMulF, v, two)
	sum := b.Binary(OpAddF, prod, bias)
	b.Store(sum, scale.Args[0], id)
	b.Return()

	pick := NewFunction("pick", I32, I32)
	pick.Results = []Type{I32}
	b = NewBuilder(pick.Body)
	lt := b.CmpI(CmpISLT, pick.Args[0], pick.Args[1])
	sel := b.Select(lt, pick.Args[0], pick.Args[1])
	vec := VectorType{Shape: []int64{3}, Elem: I32}
	b.Constant(vec, DenseElementsAttr{
		Type:   vec,
		Values: []Attribute{NewIntegerAttr(I32, 1), NewIntegerAttr(I32, -2), NewIntegerAttr(I32, 3)},
	})
	b.Return(sel)

	m := &Module{Functions: []*Function{scale, pick}}
	errs, err := Validate(m)
	require.NoError(t, err)
	assert.Empty(t, errs)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "print_module", []byte(m.String()))
}
