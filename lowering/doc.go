// Package lowering rewrites std dialect operations into the spv dialect.
//
// A conversion combines three pieces: a TypeConverter describing the target
// environment, a PatternSet holding the rewrite rules, and a
// ConversionTarget saying which operations may remain. ApplyFullConversion
// drives them over a module:
//
//	converter := lowering.NewTypeConverter(spirv.DefaultOptions(), logger)
//	patterns := lowering.PopulateStandardToSPIRVPatterns(converter, lowering.NewPatternSet())
//	report, err := lowering.ApplyFullConversion(module, lowering.SPIRVTarget(), patterns, converter)
//
// The conversion is all or nothing. If any operation cannot be converted the
// module is left as it was and the error lists every failing operation.
//
// Integer loads and stores of elements narrower than the storage word are
// emulated: loads shift and mask the containing word, stores clear and set
// the element's bits with two atomic operations.
package lowering
