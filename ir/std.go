package ir

// Source dialect operation kinds.
const (
	OpAbsF               OpKind = "std.absf"
	OpAddF               OpKind = "std.addf"
	OpAddI               OpKind = "std.addi"
	OpAnd                OpKind = "std.and"
	OpCeilF              OpKind = "std.ceilf"
	OpCmpF               OpKind = "std.cmpf"
	OpCmpI               OpKind = "std.cmpi"
	OpConstant           OpKind = "std.constant"
	OpCos                OpKind = "std.cos"
	OpDivF               OpKind = "std.divf"
	OpDivISigned         OpKind = "std.divi_signed"
	OpDivIUnsigned       OpKind = "std.divi_unsigned"
	OpExp                OpKind = "std.exp"
	OpFPExt              OpKind = "std.fpext"
	OpFPToSI             OpKind = "std.fptosi"
	OpFPTrunc            OpKind = "std.fptrunc"
	OpIndexCast          OpKind = "std.index_cast"
	OpLoad               OpKind = "std.load"
	OpLog                OpKind = "std.log"
	OpMulF               OpKind = "std.mulf"
	OpMulI               OpKind = "std.muli"
	OpNegF               OpKind = "std.negf"
	OpOr                 OpKind = "std.or"
	OpRemF               OpKind = "std.remf"
	OpRemISigned         OpKind = "std.remi_signed"
	OpRemIUnsigned       OpKind = "std.remi_unsigned"
	OpReturn             OpKind = "std.return"
	OpRsqrt              OpKind = "std.rsqrt"
	OpSelect             OpKind = "std.select"
	OpShiftLeft          OpKind = "std.shift_left"
	OpShiftRightSigned   OpKind = "std.shift_right_signed"
	OpShiftRightUnsigned OpKind = "std.shift_right_unsigned"
	OpSignExtendI        OpKind = "std.sexti"
	OpSIToFP             OpKind = "std.sitofp"
	OpSin                OpKind = "std.sin"
	OpSqrt               OpKind = "std.sqrt"
	OpStore              OpKind = "std.store"
	OpSubF               OpKind = "std.subf"
	OpSubI               OpKind = "std.subi"
	OpTanh               OpKind = "std.tanh"
	OpTruncateI          OpKind = "std.trunci"
	OpXOr                OpKind = "std.xor"
	OpZeroExtendI        OpKind = "std.zexti"

	OpGlobalID OpKind = "gpu.global_id"
)

// Attribute names.
const (
	AttrValue     = "value"
	AttrPredicate = "predicate"
	AttrDimension = "dimension"
)

// CmpFPredicate is the predicate of a std.cmpf.
type CmpFPredicate string

const (
	CmpFAlwaysFalse CmpFPredicate = "false"
	CmpFOEQ         CmpFPredicate = "oeq"
	CmpFOGT         CmpFPredicate = "ogt"
	CmpFOGE         CmpFPredicate = "oge"
	CmpFOLT         CmpFPredicate = "olt"
	CmpFOLE         CmpFPredicate = "ole"
	CmpFONE         CmpFPredicate = "one"
	CmpFORD         CmpFPredicate = "ord"
	CmpFUEQ         CmpFPredicate = "ueq"
	CmpFUGT         CmpFPredicate = "ugt"
	CmpFUGE         CmpFPredicate = "uge"
	CmpFULT         CmpFPredicate = "ult"
	CmpFULE         CmpFPredicate = "ule"
	CmpFUNE         CmpFPredicate = "une"
	CmpFUNO         CmpFPredicate = "uno"
	CmpFAlwaysTrue  CmpFPredicate = "true"
)

// CmpIPredicate is the predicate of a std.cmpi.
type CmpIPredicate string

const (
	CmpIEQ  CmpIPredicate = "eq"
	CmpINE  CmpIPredicate = "ne"
	CmpISLT CmpIPredicate = "slt"
	CmpISLE CmpIPredicate = "sle"
	CmpISGT CmpIPredicate = "sgt"
	CmpISGE CmpIPredicate = "sge"
	CmpIULT CmpIPredicate = "ult"
	CmpIULE CmpIPredicate = "ule"
	CmpIUGT CmpIPredicate = "ugt"
	CmpIUGE CmpIPredicate = "uge"
)

// Predicate returns the string value of the op's predicate attribute.
func Predicate(op *Operation) (string, bool) {
	s, ok := op.Attrs[AttrPredicate].(StringAttr)
	return string(s), ok
}
