// Package ir defines the intermediate representation lowered by spvlower.
//
// # Structure
//
// A Module holds Functions. Each Function has arguments and a single body
// Block, an intrusive list of Operations. An Operation has a dialect-prefixed
// kind ("std.addi", "spv.IAdd"), ordered operands, named attributes and at
// most one result Value. Values track their users so that replacements can
// rewire every use.
//
// Types cover both sides of the lowering:
//   - Source: IntegerType (signless, signed, unsigned), IndexType, FloatType,
//     VectorType, TensorType, MemRefType
//   - Target: ArrayType, RuntimeArrayType, StructType, PointerType
//
// Attributes carry constants: BoolAttr, IntegerAttr (arbitrary precision),
// FloatAttr, DenseElementsAttr and StringAttr for enum values.
//
// # Text form
//
// Types print and parse in an MLIR-like syntax (ParseType). Modules print in
// a generic operation syntax used by golden tests and the command line tools:
//
//	func @scale(%arg0: memref<16xf32>) {
//	  %0 = std.constant {value = 2.0 : f32} : f32
//	  ...
//	}
package ir
