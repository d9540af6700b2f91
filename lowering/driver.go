package lowering

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
)

// ConversionTarget describes which operations are legal after conversion.
// It must not be modified once a conversion has started.
type ConversionTarget struct {
	dialects map[string]bool
	ops      map[ir.OpKind]bool
}

// NewConversionTarget creates a target with nothing legal.
func NewConversionTarget() *ConversionTarget {
	return &ConversionTarget{
		dialects: make(map[string]bool),
		ops:      make(map[ir.OpKind]bool),
	}
}

// AddLegalDialect marks every operation of the named dialects legal.
func (t *ConversionTarget) AddLegalDialect(names ...string) *ConversionTarget {
	for _, name := range names {
		t.dialects[name] = true
	}
	return t
}

// AddLegalOp marks individual operation kinds legal.
func (t *ConversionTarget) AddLegalOp(kinds ...ir.OpKind) *ConversionTarget {
	for _, k := range kinds {
		t.ops[k] = true
	}
	return t
}

// IsLegal reports whether op may remain after conversion.
func (t *ConversionTarget) IsLegal(op *ir.Operation) bool {
	return t.ops[op.Kind] || t.dialects[op.Kind.Dialect()]
}

// SPIRVTarget returns the target where only the spv dialect is legal.
func SPIRVTarget() *ConversionTarget {
	return NewConversionTarget().AddLegalDialect(spirv.Dialect)
}

// Report summarizes a successful conversion.
type Report struct {
	Functions int `json:"functions"`
	Converted int `json:"converted"`
	Created   int `json:"created"`
	Erased    int `json:"erased"`
}

// ApplyFullConversion converts every illegal operation of module using
// patterns. Either every operation converts and the edits are committed, or
// the module is left unchanged and the returned error aggregates one
// ErrUnconvertibleOp per failing operation.
func ApplyFullConversion(module *ir.Module, target *ConversionTarget, patterns *PatternSet, converter *TypeConverter) (*Report, error) {
	rw := newRewriter(converter)
	log := rw.logger
	report := &Report{Functions: len(module.Functions)}

	var errs error
	results := make(map[*ir.Function][]ir.Type)

	for _, fn := range module.Functions {
		sig, err := convertSignature(fn, rw)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		results[fn] = sig

		// snapshot: operations created below are never revisited
		for _, op := range fn.Body.Ops() {
			if target.IsLegal(op) || rw.isRemoved(op) {
				continue
			}
			if err := rw.convertOp(op, patterns); err != nil {
				log.Debug("failed to legalize operation",
					zap.String("function", fn.Name),
					zap.Stringer("op", op.Kind),
					zap.Error(err))
				errs = multierr.Append(errs, err)
				continue
			}
			report.Converted++
		}
	}

	if errs == nil {
		// what survives the commit must be legal
		for _, fn := range module.Functions {
			for _, op := range fn.Body.Ops() {
				if rw.isRemoved(op) || rw.dead[op] || target.IsLegal(op) {
					continue
				}
				errs = multierr.Append(errs, newError(ErrIllegalResult, op,
					"operation in %s is still illegal after conversion", fn.Name))
			}
		}
	}
	if errs != nil {
		rw.rollbackTo(0)
		return nil, errs
	}

	report.Created = len(rw.createdIn) - len(rw.dead)
	report.Erased = len(rw.removed)
	if err := rw.commit(); err != nil {
		rw.rollbackTo(0)
		return nil, err
	}
	for fn, sig := range results {
		fn.Results = sig
	}

	log.Debug("conversion committed",
		zap.Int("converted", report.Converted),
		zap.Int("created", report.Created),
		zap.Int("erased", report.Erased))
	return report, nil
}

// convertSignature schedules argument retyping and returns the converted
// result types of fn.
func convertSignature(fn *ir.Function, rw *Rewriter) ([]ir.Type, error) {
	for i, arg := range fn.Args {
		t, ok := rw.converter.ConvertType(arg.Type())
		if !ok {
			return nil, newError(ErrUnsupportedType, nil, "argument %d of %s has unsupported type %s", i, fn.Name, arg.Type())
		}
		if !ir.TypesEqual(t, arg.Type()) {
			rw.retypeArgument(fn, i, t)
		}
	}

	results := make([]ir.Type, len(fn.Results))
	for i, rt := range fn.Results {
		t, ok := rw.converter.ConvertType(rt)
		if !ok {
			return nil, newError(ErrUnsupportedType, nil, "result %d of %s has unsupported type %s", i, fn.Name, rt)
		}
		results[i] = t
	}
	return results, nil
}

// convertOp tries the candidates for op in order until one succeeds.
func (rw *Rewriter) convertOp(op *ir.Operation, patterns *PatternSet) error {
	candidates := patterns.Lookup(op.Kind)
	if len(candidates) == 0 {
		return &Error{Kind: ErrUnconvertibleOp, Op: op.Kind, Message: "failed to legalize operation",
			Err: newError(ErrNoMatch, op, "no pattern registered")}
	}

	operands := rw.remap(op.Operands())
	rw.setRoot(op)

	var failures error
	for _, p := range candidates {
		cp := rw.checkpoint()
		err := p.MatchAndRewrite(op, operands, rw)
		if err == nil && !rw.isRemoved(op) {
			err = newError(ErrInvalidModule, op, "pattern succeeded without replacing the operation")
		}
		if err == nil {
			rw.logger.Debug("pattern applied",
				zap.Stringer("op", op.Kind),
				zap.Int("benefit", p.Benefit()))
			return nil
		}
		rw.rollbackTo(cp)
		rw.logger.Debug("pattern failed",
			zap.Stringer("op", op.Kind),
			zap.Int("benefit", p.Benefit()),
			zap.Error(err))
		failures = multierr.Append(failures, err)
	}
	return &Error{Kind: ErrUnconvertibleOp, Op: op.Kind, Message: "failed to legalize operation", Err: failures}
}
