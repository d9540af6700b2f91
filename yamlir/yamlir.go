// Package yamlir reads modules written as YAML documents.
//
// A document lists functions. Each function names its arguments, and each
// operation in its body may bind a result name that later operands refer to:
//
//	functions:
//	  - name: store_byte
//	    entry_point: true
//	    workgroup_size: [1, 1, 1]
//	    args:
//	      - {name: buf, type: "memref<8xi8>"}
//	    body:
//	      - {result: idx, op: std.constant, type: index, attrs: {value: 5}}
//	      - {result: v, op: std.constant, type: i8, attrs: {value: -85}}
//	      - {op: std.store, operands: [v, buf, idx]}
//	      - {op: std.return}
//
// Attribute values are typed from context: the "value" attribute takes the
// operation's result type (its element type for sequences), other integers
// are i32. A mapping {type: ..., value: ...} gives the type explicitly.
package yamlir

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/spvlower/ir"
)

// Document is the top-level YAML form of a module.
type Document struct {
	Functions []Function `yaml:"functions"`
}

// Function is the YAML form of a function.
type Function struct {
	Name          string      `yaml:"name"`
	EntryPoint    bool        `yaml:"entry_point,omitempty"`
	WorkgroupSize []uint32    `yaml:"workgroup_size,omitempty"`
	Args          []Argument  `yaml:"args,omitempty"`
	Results       []string    `yaml:"results,omitempty"`
	Body          []Operation `yaml:"body"`
}

// Argument is a named function argument.
type Argument struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Operation is the YAML form of an operation.
type Operation struct {
	Result   string               `yaml:"result,omitempty"`
	Op       string               `yaml:"op"`
	Type     string               `yaml:"type,omitempty"`
	Operands []string             `yaml:"operands,omitempty"`
	Attrs    map[string]yaml.Node `yaml:"attrs,omitempty"`
}

// Decode reads one YAML document from r and builds its module. Unknown
// fields are rejected.
func Decode(r io.Reader) (*ir.Module, error) {
	var doc Document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("yamlir: failed to parse YAML: %w", err)
	}
	return doc.Module()
}

// DecodeFile reads the module stored at path.
func DecodeFile(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("yamlir: failed to read module file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Module builds the module described by the document.
func (d *Document) Module() (*ir.Module, error) {
	if len(d.Functions) == 0 {
		return nil, fmt.Errorf("yamlir: module has no functions")
	}
	m := &ir.Module{}
	for i := range d.Functions {
		f := &d.Functions[i]
		if f.Name == "" {
			return nil, fmt.Errorf("yamlir: function %d has no name", i)
		}
		if m.Function(f.Name) != nil {
			return nil, fmt.Errorf("yamlir: function %q defined twice", f.Name)
		}
		fn, err := f.build()
		if err != nil {
			return nil, fmt.Errorf("yamlir: function %q: %w", f.Name, err)
		}
		m.AddFunction(fn)
	}
	return m, nil
}

func (f *Function) build() (*ir.Function, error) {
	types := make([]ir.Type, len(f.Args))
	for i, a := range f.Args {
		t, err := ir.ParseType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a.Name, err)
		}
		types[i] = t
	}
	fn := ir.NewFunction(f.Name, types...)
	fn.EntryPoint = f.EntryPoint
	if len(f.WorkgroupSize) > 3 {
		return nil, fmt.Errorf("workgroup_size has %d dimensions", len(f.WorkgroupSize))
	}
	if fn.EntryPoint {
		fn.WorkgroupSize = [3]uint32{1, 1, 1}
	}
	copy(fn.WorkgroupSize[:], f.WorkgroupSize)
	for _, r := range f.Results {
		t, err := ir.ParseType(r)
		if err != nil {
			return nil, fmt.Errorf("result type: %w", err)
		}
		fn.Results = append(fn.Results, t)
	}

	scope := make(map[string]*ir.Value, len(f.Args)+len(f.Body))
	for i, a := range f.Args {
		if a.Name == "" {
			return nil, fmt.Errorf("argument %d has no name", i)
		}
		if _, dup := scope[a.Name]; dup {
			return nil, fmt.Errorf("argument %q declared twice", a.Name)
		}
		scope[a.Name] = fn.Args[i]
	}

	b := ir.NewBuilder(fn.Body)
	for i := range f.Body {
		o := &f.Body[i]
		if err := o.build(b, scope); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, o.Op, err)
		}
	}
	return fn, nil
}

func (o *Operation) build(b *ir.Builder, scope map[string]*ir.Value) error {
	if o.Op == "" {
		return fmt.Errorf("missing op")
	}
	var resultType ir.Type
	if o.Type != "" {
		t, err := ir.ParseType(o.Type)
		if err != nil {
			return err
		}
		resultType = t
	}
	if o.Result != "" && resultType == nil {
		return fmt.Errorf("result %q has no type", o.Result)
	}

	operands := make([]*ir.Value, len(o.Operands))
	for i, name := range o.Operands {
		v, ok := scope[name]
		if !ok {
			return fmt.Errorf("operand %q is not defined", name)
		}
		operands[i] = v
	}

	var attrs map[string]ir.Attribute
	if len(o.Attrs) > 0 {
		attrs = make(map[string]ir.Attribute, len(o.Attrs))
		for name, node := range o.Attrs {
			hint := ir.Type(ir.I32)
			if name == ir.AttrValue && resultType != nil {
				hint = resultType
			}
			a, err := decodeAttr(&node, hint)
			if err != nil {
				return fmt.Errorf("attribute %q: %w", name, err)
			}
			attrs[name] = a
		}
	}

	op := b.Create(ir.OpKind(o.Op), resultType, operands, attrs)
	if o.Result != "" {
		if _, dup := scope[o.Result]; dup {
			return fmt.Errorf("result %q defined twice", o.Result)
		}
		scope[o.Result] = op.Result()
	}
	return nil
}

// decodeAttr converts a YAML node into an attribute of type t.
func decodeAttr(node *yaml.Node, t ir.Type) (ir.Attribute, error) {
	switch node.Kind {
	case yaml.MappingNode:
		var typed struct {
			Type  string    `yaml:"type"`
			Value yaml.Node `yaml:"value"`
		}
		if err := node.Decode(&typed); err != nil {
			return nil, err
		}
		explicit, err := ir.ParseType(typed.Type)
		if err != nil {
			return nil, err
		}
		return decodeAttr(&typed.Value, explicit)

	case yaml.SequenceNode:
		elem, ok := elementType(t)
		if !ok {
			return nil, fmt.Errorf("line %d: list value for non-shaped type %s", node.Line, t)
		}
		values := make([]ir.Attribute, len(node.Content))
		for i, n := range node.Content {
			a, err := decodeAttr(n, elem)
			if err != nil {
				return nil, err
			}
			values[i] = a
		}
		return ir.DenseElementsAttr{Type: t, Values: values}, nil

	case yaml.ScalarNode:
		return decodeScalar(node, t)
	}
	return nil, fmt.Errorf("line %d: unsupported attribute value", node.Line)
}

func decodeScalar(node *yaml.Node, t ir.Type) (ir.Attribute, error) {
	switch node.ShortTag() {
	case "!!bool":
		var v bool
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return ir.BoolAttr{Value: v}, nil

	case "!!int":
		if ft, ok := t.(ir.FloatType); ok {
			return decodeFloat(node, ft)
		}
		if !isIntegerLike(t) {
			return nil, fmt.Errorf("line %d: integer value for type %s", node.Line, t)
		}
		v, ok := new(big.Int).SetString(node.Value, 0)
		if !ok {
			return nil, fmt.Errorf("line %d: invalid integer %q", node.Line, node.Value)
		}
		return ir.NewIntegerAttrBig(t, v), nil

	case "!!float":
		ft, ok := t.(ir.FloatType)
		if !ok {
			return nil, fmt.Errorf("line %d: float value for type %s", node.Line, t)
		}
		return decodeFloat(node, ft)

	case "!!str":
		return ir.StringAttr(node.Value), nil
	}
	return nil, fmt.Errorf("line %d: unsupported scalar %s", node.Line, node.ShortTag())
}

func decodeFloat(node *yaml.Node, t ir.FloatType) (ir.Attribute, error) {
	var v float64
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return ir.NewFloatAttr(t, v), nil
}

func isIntegerLike(t ir.Type) bool {
	switch t.(type) {
	case ir.IntegerType, ir.IndexType:
		return true
	}
	return false
}

func elementType(t ir.Type) (ir.Type, bool) {
	switch t := t.(type) {
	case ir.VectorType:
		return t.Elem, true
	case ir.TensorType:
		return t.Elem, true
	}
	return nil, false
}
