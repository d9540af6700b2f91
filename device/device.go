// Package device runs compiled compute kernels. Runtime is the execution
// contract; Simulator implements it in software.
package device

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Runtime executes a compiled compute kernel over a set of buffers.
type Runtime interface {
	Run(ctx context.Context, program Program, resources ResourceTable, dispatch DispatchSize) (*Result, error)
}

// Program is a SPIR-V binary and the entry point to run.
type Program struct {
	Binary     []byte
	EntryPoint string
}

// BindingKey addresses a resource by descriptor set and binding.
type BindingKey struct {
	Set     uint32
	Binding uint32
}

func (k BindingKey) String() string { return fmt.Sprintf("%d:%d", k.Set, k.Binding) }

// StorageClass says how a kernel may access a resource.
type StorageClass uint8

const (
	// StorageBuffer resources are read-write.
	StorageBuffer StorageClass = iota
	// Uniform resources are read-only.
	Uniform
)

func (c StorageClass) String() string {
	switch c {
	case StorageBuffer:
		return "StorageBuffer"
	case Uniform:
		return "Uniform"
	}
	return fmt.Sprintf("StorageClass(%d)", uint8(c))
}

// DescriptorType is the kind of binding a storage class maps to.
type DescriptorType uint8

const (
	DescriptorStorageBuffer DescriptorType = iota
	DescriptorUniformBuffer
)

func (d DescriptorType) String() string {
	switch d {
	case DescriptorStorageBuffer:
		return "storage-buffer"
	case DescriptorUniformBuffer:
		return "uniform-buffer"
	}
	return fmt.Sprintf("DescriptorType(%d)", uint8(d))
}

// DescriptorTypeOf maps a storage class onto its binding kind.
func DescriptorTypeOf(c StorageClass) (DescriptorType, error) {
	switch c {
	case StorageBuffer:
		return DescriptorStorageBuffer, nil
	case Uniform:
		return DescriptorUniformBuffer, nil
	}
	return 0, fmt.Errorf("unsupported storage class %s", c)
}

// Buffer is a resource's backing bytes and storage class.
type Buffer struct {
	Data         []byte
	StorageClass StorageClass
}

// ResourceTable holds every resource bound for a run.
type ResourceTable map[BindingKey]*Buffer

// Keys returns the table's bindings in ascending order.
func (t ResourceTable) Keys() []BindingKey {
	keys := make([]BindingKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Set != keys[j].Set {
			return keys[i].Set < keys[j].Set
		}
		return keys[i].Binding < keys[j].Binding
	})
	return keys
}

// Validate checks the preconditions of a run.
func (t ResourceTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("runtime needs at least one resource")
	}
	for _, k := range t.Keys() {
		buf := t[k]
		if buf == nil || len(buf.Data) == 0 {
			return fmt.Errorf("expected buffer size greater than zero for resource %s", k)
		}
		if _, err := DescriptorTypeOf(buf.StorageClass); err != nil {
			return fmt.Errorf("resource %s: %w", k, err)
		}
	}
	return nil
}

// DispatchSize is the number of workgroups per dimension.
type DispatchSize struct {
	X, Y, Z uint32
}

// Count returns the total number of workgroups.
func (d DispatchSize) Count() uint64 { return uint64(d.X) * uint64(d.Y) * uint64(d.Z) }

// Result is the outcome of a run: every resource copied back after the
// kernel finished.
type Result struct {
	RunID    uuid.UUID
	Buffers  ResourceTable
	Duration time.Duration
}

// CallError reports the runtime step that failed. A run stops at the first
// failing step.
type CallError struct {
	Call string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("device: %s failed: %v", e.Call, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
