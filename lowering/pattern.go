package lowering

import (
	"sort"

	"github.com/gogpu/spvlower/ir"
)

// Pattern converts operations of one source kind.
//
// MatchAndRewrite receives the operation, its operands already mapped to
// their converted values, and the rewrite session. It returns nil after it
// has replaced or erased op through the Rewriter, or an error explaining
// why it does not apply. Any edits made by a failing pattern are rolled
// back before the next candidate runs.
type Pattern interface {
	Kind() ir.OpKind
	Benefit() int
	MatchAndRewrite(op *ir.Operation, operands []*ir.Value, rw *Rewriter) error
}

// basePattern carries the fields every pattern shares.
type basePattern struct {
	kind      ir.OpKind
	benefit   int
	converter *TypeConverter
}

func (p *basePattern) Kind() ir.OpKind { return p.kind }
func (p *basePattern) Benefit() int    { return p.benefit }

// convertResult returns the converted result type of op.
func (p *basePattern) convertResult(op *ir.Operation) (ir.Type, error) {
	res := op.Result()
	if res == nil {
		return nil, newError(ErrInvalidModule, op, "operation has no result")
	}
	t, ok := p.converter.ConvertType(res.Type())
	if !ok {
		return nil, newError(ErrUnsupportedType, op, "result type %s has no target equivalent", res.Type())
	}
	return t, nil
}

// PatternSet is an ordered registry of patterns.
type PatternSet struct {
	patterns []Pattern
	byKind   map[ir.OpKind][]Pattern
}

// NewPatternSet creates an empty set.
func NewPatternSet() *PatternSet {
	return &PatternSet{byKind: make(map[ir.OpKind][]Pattern)}
}

// Add registers patterns in order. Earlier registrations win ties in
// benefit.
func (s *PatternSet) Add(patterns ...Pattern) *PatternSet {
	for _, p := range patterns {
		s.patterns = append(s.patterns, p)
		s.byKind[p.Kind()] = append(s.byKind[p.Kind()], p)
	}
	return s
}

// Lookup returns the candidates for kind, highest benefit first.
func (s *PatternSet) Lookup(kind ir.OpKind) []Pattern {
	candidates := make([]Pattern, len(s.byKind[kind]))
	copy(candidates, s.byKind[kind])
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Benefit() > candidates[j].Benefit()
	})
	return candidates
}

// Len returns the number of registered patterns.
func (s *PatternSet) Len() int { return len(s.patterns) }

// Kinds returns the source kinds with at least one pattern, in first
// registration order.
func (s *PatternSet) Kinds() []ir.OpKind {
	seen := make(map[ir.OpKind]bool)
	var kinds []ir.OpKind
	for _, p := range s.patterns {
		if !seen[p.Kind()] {
			seen[p.Kind()] = true
			kinds = append(kinds, p.Kind())
		}
	}
	return kinds
}
