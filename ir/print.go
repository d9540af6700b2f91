package ir

import (
	"io"
	"sort"
	"strconv"
	"strings"
)

// Print writes the textual form of the module to w.
func Print(w io.Writer, m *Module) error {
	_, err := io.WriteString(w, m.String())
	return err
}

// String returns the textual form of the module.
func (m *Module) String() string {
	var sb strings.Builder
	for i, fn := range m.Functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fn.String())
	}
	return sb.String()
}

// String returns the textual form of the function.
func (fn *Function) String() string {
	p := printer{names: make(map[*Value]string)}
	p.function(fn)
	return p.sb.String()
}

type printer struct {
	sb    strings.Builder
	names map[*Value]string
	next  int
}

func (p *printer) function(fn *Function) {
	p.sb.WriteString("func @")
	p.sb.WriteString(fn.Name)
	p.sb.WriteString("(")
	for i, arg := range fn.Args {
		name := "%arg" + strconv.Itoa(i)
		p.names[arg] = name
		if i > 0 {
			p.sb.WriteString(", ")
		}
		p.sb.WriteString(name)
		p.sb.WriteString(": ")
		p.sb.WriteString(typeString(arg.Type()))
	}
	p.sb.WriteString(")")
	if len(fn.Results) > 0 {
		p.sb.WriteString(" -> (")
		for i, t := range fn.Results {
			if i > 0 {
				p.sb.WriteString(", ")
			}
			p.sb.WriteString(typeString(t))
		}
		p.sb.WriteString(")")
	}
	if fn.EntryPoint {
		ws := fn.WorkgroupSize
		p.sb.WriteString(" attributes {entry_point, workgroup_size = [")
		p.sb.WriteString(strconv.FormatUint(uint64(ws[0]), 10) + ", " +
			strconv.FormatUint(uint64(ws[1]), 10) + ", " +
			strconv.FormatUint(uint64(ws[2]), 10))
		p.sb.WriteString("]}")
	}
	p.sb.WriteString(" {\n")
	if fn.Body != nil {
		for op := fn.Body.First(); op != nil; op = op.Next() {
			p.sb.WriteString("  ")
			p.operation(op)
			p.sb.WriteString("\n")
		}
	}
	p.sb.WriteString("}\n")
}

func (p *printer) operation(op *Operation) {
	if r := op.Result(); r != nil {
		name := "%" + strconv.Itoa(p.next)
		p.next++
		p.names[r] = name
		p.sb.WriteString(name)
		p.sb.WriteString(" = ")
	}
	p.sb.WriteString(string(op.Kind))
	for i, v := range op.operands {
		if i == 0 {
			p.sb.WriteString(" ")
		} else {
			p.sb.WriteString(", ")
		}
		p.sb.WriteString(p.valueName(v))
	}
	if len(op.Attrs) > 0 {
		p.sb.WriteString(" ")
		p.sb.WriteString(AttrDictString(op.Attrs))
	}
	if r := op.Result(); r != nil {
		p.sb.WriteString(" : ")
		p.sb.WriteString(typeString(r.Type()))
	}
}

func (p *printer) valueName(v *Value) string {
	if v == nil {
		return "%<nil>"
	}
	if name, ok := p.names[v]; ok {
		return name
	}
	return "%<unknown>"
}

// AttrDictString formats attributes as a dictionary sorted by name.
func AttrDictString(attrs map[string]Attribute) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(" = ")
		if a := attrs[k]; a != nil {
			sb.WriteString(a.String())
		} else {
			sb.WriteString("<nil>")
		}
	}
	sb.WriteString("}")
	return sb.String()
}
