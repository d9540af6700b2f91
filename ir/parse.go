package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseType parses the textual form of a type as produced by Type.String.
func ParseType(s string) (Type, error) {
	p := &typeParser{src: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("parse type %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) consume(prefix string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], prefix) {
		p.pos += len(prefix)
		return true
	}
	return false
}

func (p *typeParser) expect(prefix string) error {
	if !p.consume(prefix) {
		return p.errorf("expected %q", prefix)
	}
	return nil
}

func (p *typeParser) number() (uint64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected number")
	}
	return strconv.ParseUint(p.src[start:p.pos], 10, 32)
}

func (p *typeParser) parseType() (Type, error) {
	p.skipSpace()
	switch {
	case p.consume("index"):
		return Index, nil
	case p.consume("vector<"):
		shape, elem, err := p.parseShaped()
		if err != nil {
			return nil, err
		}
		return VectorType{Shape: shape, Elem: elem}, p.expect(">")
	case p.consume("tensor<"):
		shape, elem, err := p.parseShaped()
		if err != nil {
			return nil, err
		}
		return TensorType{Shape: shape, Elem: elem}, p.expect(">")
	case p.consume("memref<"):
		shape, elem, err := p.parseShaped()
		if err != nil {
			return nil, err
		}
		space := StorageBuffer
		if p.consume(",") {
			if space, err = p.parseStorageClass(); err != nil {
				return nil, err
			}
		}
		return MemRefType{Shape: shape, Elem: elem, Space: space}, p.expect(">")
	case p.consume("!spv.array<"):
		return p.parseArray()
	case p.consume("!spv.rtarray<"):
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		stride, err := p.parseStride()
		if err != nil {
			return nil, err
		}
		return RuntimeArrayType{Elem: elem, Stride: stride}, p.expect(">")
	case p.consume("!spv.struct<"):
		return p.parseStruct()
	case p.consume("!spv.ptr<"):
		pointee, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		space, err := p.parseStorageClass()
		if err != nil {
			return nil, err
		}
		return PointerType{Pointee: pointee, Space: space}, p.expect(">")
	case p.consume("si"):
		w, err := p.number()
		return IntegerType{Width: uint32(w), Signedness: Signed}, err
	case p.consume("ui"):
		w, err := p.number()
		return IntegerType{Width: uint32(w), Signedness: Unsigned}, err
	case p.consume("i"):
		w, err := p.number()
		return IntegerType{Width: uint32(w)}, err
	case p.consume("f"):
		w, err := p.number()
		if err != nil {
			return nil, err
		}
		if w != 16 && w != 32 && w != 64 {
			return nil, p.errorf("unsupported float width %d", w)
		}
		return FloatType{Width: uint32(w)}, nil
	}
	return nil, p.errorf("unknown type")
}

// parseShaped parses "2x?x" dimensions followed by an element type.
func (p *typeParser) parseShaped() ([]int64, Type, error) {
	var shape []int64
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, nil, p.errorf("unterminated shape")
		}
		c := p.src[p.pos]
		switch {
		case c == '?':
			p.pos++
			shape = append(shape, DynamicSize)
		case c >= '0' && c <= '9':
			n, err := p.number()
			if err != nil {
				return nil, nil, err
			}
			shape = append(shape, int64(n))
		default:
			elem, err := p.parseType()
			return shape, elem, err
		}
		if err := p.expect("x"); err != nil {
			return nil, nil, err
		}
	}
}

func (p *typeParser) parseArray() (Type, error) {
	count, err := p.number()
	if err != nil {
		return nil, err
	}
	if err := p.expect("x"); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	stride, err := p.parseStride()
	if err != nil {
		return nil, err
	}
	return ArrayType{Elem: elem, Count: uint32(count), Stride: stride}, p.expect(">")
}

func (p *typeParser) parseStride() (uint32, error) {
	if err := p.expect(","); err != nil {
		return 0, err
	}
	if err := p.expect("stride="); err != nil {
		return 0, err
	}
	n, err := p.number()
	return uint32(n), err
}

func (p *typeParser) parseStruct() (Type, error) {
	var st StructType
	if p.consume(">") {
		return st, nil
	}
	for {
		m, err := p.parseType()
		if err != nil {
			return nil, err
		}
		st.Members = append(st.Members, m)
		if p.consume("[") {
			off, err := p.number()
			if err != nil {
				return nil, err
			}
			st.Offsets = append(st.Offsets, uint32(off))
			if err := p.expect("]"); err != nil {
				return nil, err
			}
		}
		if p.consume(">") {
			return st, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

func (p *typeParser) parseStorageClass() (StorageClass, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]
	sc, ok := ParseStorageClass(name)
	if !ok {
		return 0, p.errorf("unknown storage class %q", name)
	}
	return sc, nil
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
