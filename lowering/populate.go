package lowering

import (
	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
)

// PopulateStandardToSPIRVPatterns adds the std to spv patterns to set.
func PopulateStandardToSPIRVPatterns(converter *TypeConverter, set *PatternSet) *PatternSet {
	base := func(kind ir.OpKind) basePattern {
		return basePattern{kind: kind, benefit: 1, converter: converter}
	}

	for _, e := range opcodeTable {
		set.Add(&unaryAndBinaryPattern{basePattern: base(e.source), target: e.target})
	}

	set.Add(
		&bitwisePattern{basePattern: base(ir.OpAnd), logical: spirv.LogicalAnd, bitwise: spirv.BitwiseAnd},
		&bitwisePattern{basePattern: base(ir.OpOr), logical: spirv.LogicalOr, bitwise: spirv.BitwiseOr},
		&bitwisePattern{basePattern: base(ir.OpXOr), bitwise: spirv.BitwiseXor},

		&constantCompositePattern{basePattern: base(ir.OpConstant)},
		&constantScalarPattern{basePattern: base(ir.OpConstant)},

		&cmpFPattern{basePattern: base(ir.OpCmpF)},
		&boolCmpIPattern{basePattern: base(ir.OpCmpI)},
		&cmpIPattern{basePattern: base(ir.OpCmpI)},

		&castPattern{basePattern: base(ir.OpIndexCast), target: spirv.SConvert},
		&castPattern{basePattern: base(ir.OpSignExtendI), target: spirv.SConvert},
		&castPattern{basePattern: base(ir.OpZeroExtendI), target: spirv.UConvert},
		&castPattern{basePattern: base(ir.OpTruncateI), target: spirv.SConvert},
		&castPattern{basePattern: base(ir.OpSIToFP), target: spirv.ConvertSToF},
		&castPattern{basePattern: base(ir.OpFPToSI), target: spirv.ConvertFToS},
		&castPattern{basePattern: base(ir.OpFPExt), target: spirv.FConvert},
		&castPattern{basePattern: base(ir.OpFPTrunc), target: spirv.FConvert},

		&intLoadPattern{basePattern: base(ir.OpLoad)},
		&loadPattern{basePattern: base(ir.OpLoad)},
		&intStorePattern{basePattern: base(ir.OpStore)},
		&storePattern{basePattern: base(ir.OpStore)},

		&returnPattern{basePattern: base(ir.OpReturn)},
		&selectPattern{basePattern: base(ir.OpSelect)},
		&globalIDPattern{basePattern: base(ir.OpGlobalID)},
	)
	return set
}

// NewPattern wraps fn as a pattern for kind. It lets callers extend a
// PatternSet without defining a type.
func NewPattern(kind ir.OpKind, benefit int, fn func(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error) Pattern {
	return &funcPattern{basePattern: basePattern{kind: kind, benefit: benefit}, fn: fn}
}

type funcPattern struct {
	basePattern
	fn func(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error
}

func (p *funcPattern) MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error {
	return p.fn(op, operands, rw)
}
