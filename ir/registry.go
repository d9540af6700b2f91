package ir

import (
	"strconv"
)

// TypeHandle identifies a type interned in a TypeRegistry.
type TypeHandle uint32

// TypeRegistry ensures type deduplication for SPIR-V emission.
// SPIR-V requires that each unique non-aggregate type is declared exactly once.
type TypeRegistry struct {
	types   []Type
	typeMap map[string]TypeHandle
	keyBuf  []byte // reusable buffer for building scalar keys
}

// NewTypeRegistry creates a new type registry for deduplication.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:   make([]Type, 0, 16),
		typeMap: make(map[string]TypeHandle, 16),
		keyBuf:  make([]byte, 0, 32),
	}
}

// GetOrCreate returns the handle of a structurally identical type if one was
// registered before, or registers t.
func (r *TypeRegistry) GetOrCreate(t Type) TypeHandle {
	key := r.normalizeType(t)
	if handle, exists := r.typeMap[key]; exists {
		return handle
	}

	handle := TypeHandle(len(r.types))
	r.types = append(r.types, t)
	r.typeMap[key] = handle
	return handle
}

// GetTypes returns all registered types in registration order.
func (r *TypeRegistry) GetTypes() []Type {
	return r.types
}

// normalizeType creates a unique key for a type based on its structure.
// Scalars are keyed with a reusable byte buffer; aggregates fall back to
// their textual form.
func (r *TypeRegistry) normalizeType(t Type) string {
	b := r.keyBuf[:0]

	switch t := t.(type) {
	case IntegerType:
		b = append(b, "int:"...)
		b = strconv.AppendUint(b, uint64(t.Width), 10)
		b = append(b, ':')
		b = strconv.AppendUint(b, uint64(t.Signedness), 10)
		r.keyBuf = b
		return string(b)

	case FloatType:
		b = append(b, "float:"...)
		b = strconv.AppendUint(b, uint64(t.Width), 10)
		r.keyBuf = b
		return string(b)

	case IndexType:
		return "index"

	case nil:
		return "void"

	default:
		return t.String()
	}
}

// Lookup finds a type by its handle.
func (r *TypeRegistry) Lookup(handle TypeHandle) (Type, bool) {
	if int(handle) >= len(r.types) {
		return nil, false
	}
	return r.types[handle], true
}

// Count returns the number of unique types registered.
func (r *TypeRegistry) Count() int {
	return len(r.types)
}
