package ir

import (
	"fmt"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Function  string
	Operation int
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Function != "" {
		if e.Operation >= 0 {
			return fmt.Sprintf("in function %s, operation %d: %s", e.Function, e.Operation, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// Validator validates IR modules.
type Validator struct {
	module  *Module
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	function *Function
	opIndex  int
	defined  map[*Value]bool
}

// Validate checks the referential integrity of a module: every operand is
// defined before use in the same function, use lists agree with operand
// lists, and operations of known kinds carry the operands and attributes
// they need. Returns validation errors if any, or nil if module is valid.
func Validate(module *Module) ([]ValidationError, error) {
	if module == nil {
		return nil, fmt.Errorf("module is nil")
	}

	v := &Validator{
		module: module,
		errors: make([]ValidationError, 0),
	}

	v.ValidateModule()

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateModule validates the complete module.
func (v *Validator) ValidateModule() {
	names := make(map[string]bool)
	for i, fn := range v.module.Functions {
		if fn == nil {
			v.addError(fmt.Sprintf("function %d is nil", i))
			continue
		}
		if fn.Name == "" {
			v.addError(fmt.Sprintf("function %d has no name", i))
		} else if names[fn.Name] {
			v.addError(fmt.Sprintf("duplicate function name %q", fn.Name))
		}
		names[fn.Name] = true

		v.context = validationContext{
			function: fn,
			opIndex:  -1,
			defined:  make(map[*Value]bool),
		}
		v.validateFunction(fn)
	}
}

// validateFunction validates a single function.
func (v *Validator) validateFunction(fn *Function) {
	for i, arg := range fn.Args {
		if arg == nil || arg.Type() == nil {
			v.addErrorInFunction(fmt.Sprintf("argument %d has no type", i))
			continue
		}
		v.context.defined[arg] = true
	}
	if fn.Body == nil {
		v.addErrorInFunction("function has no body")
		return
	}
	if fn.EntryPoint {
		for i, arg := range fn.Args {
			if arg == nil {
				continue
			}
			switch arg.Type().(type) {
			case MemRefType, PointerType:
			default:
				v.addErrorInFunction(fmt.Sprintf("entry point argument %d must be a memref, got %s", i, typeString(arg.Type())))
			}
		}
	}

	for i, op := range fn.Body.Ops() {
		v.context.opIndex = i
		v.validateOperation(op)
		if r := op.Result(); r != nil {
			v.context.defined[r] = true
		}
	}
	v.context.opIndex = -1
}

// validateOperation checks one operation.
//
//nolint:gocyclo,cyclop // one case per operation family
func (v *Validator) validateOperation(op *Operation) {
	for i, operand := range op.operands {
		if operand == nil {
			v.addErrorInOperation(fmt.Sprintf("%s: operand %d is nil", op.Kind, i))
			continue
		}
		if !v.context.defined[operand] {
			v.addErrorInOperation(fmt.Sprintf("%s: operand %d is not defined before use", op.Kind, i))
		}
		if !usesContain(operand, op) {
			v.addErrorInOperation(fmt.Sprintf("%s: operand %d does not list the operation as a user", op.Kind, i))
		}
	}
	if r := op.Result(); r != nil && r.Type() == nil {
		v.addErrorInOperation(fmt.Sprintf("%s: result has no type", op.Kind))
	}

	switch op.Kind {
	case OpConstant:
		if op.Attr(AttrValue) == nil {
			v.addErrorInOperation("std.constant: missing value attribute")
		}
		v.expectResult(op)

	case OpCmpF, OpCmpI:
		if _, ok := Predicate(op); !ok {
			v.addErrorInOperation(fmt.Sprintf("%s: missing predicate attribute", op.Kind))
		}
		v.expectOperands(op, 2)
		v.expectResult(op)

	case OpSelect:
		v.expectOperands(op, 3)
		v.expectResult(op)

	case OpLoad:
		if v.expectMemRef(op, 0) {
			rank := len(op.operands[0].Type().(MemRefType).Shape)
			v.expectOperands(op, 1+rank)
		}
		v.expectResult(op)

	case OpStore:
		if v.expectMemRef(op, 1) {
			rank := len(op.operands[1].Type().(MemRefType).Shape)
			v.expectOperands(op, 2+rank)
		}

	case OpGlobalID:
		attr, ok := op.Attr(AttrDimension).(IntegerAttr)
		if !ok || attr.Int64() < 0 || attr.Int64() > 2 {
			v.addErrorInOperation("gpu.global_id: dimension must be 0, 1 or 2")
		}
		v.expectResult(op)

	case OpReturn:
		if op.next != nil {
			v.addErrorInOperation("std.return must terminate the block")
		}
	}
}

func (v *Validator) expectOperands(op *Operation, n int) {
	if len(op.operands) != n {
		v.addErrorInOperation(fmt.Sprintf("%s: expected %d operands, got %d", op.Kind, n, len(op.operands)))
	}
}

func (v *Validator) expectResult(op *Operation) {
	if op.Result() == nil {
		v.addErrorInOperation(fmt.Sprintf("%s: expected a result", op.Kind))
	}
}

func (v *Validator) expectMemRef(op *Operation, i int) bool {
	if i >= len(op.operands) || op.operands[i] == nil {
		v.addErrorInOperation(fmt.Sprintf("%s: missing memref operand", op.Kind))
		return false
	}
	if _, ok := op.operands[i].Type().(MemRefType); !ok {
		v.addErrorInOperation(fmt.Sprintf("%s: operand %d must be a memref, got %s", op.Kind, i, typeString(op.operands[i].Type())))
		return false
	}
	return true
}

func usesContain(v *Value, op *Operation) bool {
	for _, u := range v.uses {
		if u == op {
			return true
		}
	}
	return false
}

// addError adds a module-level error.
func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Operation: -1,
	})
}

// addErrorInFunction adds an error with function context.
func (v *Validator) addErrorInFunction(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Function:  v.context.function.Name,
		Operation: -1,
	})
}

// addErrorInOperation adds an error with operation context.
func (v *Validator) addErrorInOperation(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Function:  v.context.function.Name,
		Operation: v.context.opIndex,
	})
}
