package device

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// memory is one bound resource viewed as 32-bit words. Every word access
// goes through sync/atomic so that lanes running on different goroutines
// observe each other's read-modify-write sequences.
type memory struct {
	key      BindingKey
	words    []uint32
	size     int
	readOnly bool
}

// newMemory copies buf into word storage, zero-padding the last word.
func newMemory(key BindingKey, buf *Buffer) *memory {
	m := &memory{
		key:      key,
		words:    make([]uint32, (len(buf.Data)+3)/4),
		size:     len(buf.Data),
		readOnly: buf.StorageClass == Uniform,
	}
	var tail [4]byte
	for i := range m.words {
		chunk := buf.Data[i*4:]
		if len(chunk) < 4 {
			copy(tail[:], chunk)
			chunk = tail[:]
		}
		m.words[i] = binary.LittleEndian.Uint32(chunk)
	}
	return m
}

// bytes copies the resource back out, without the padding.
func (m *memory) bytes() []byte {
	out := make([]byte, len(m.words)*4)
	for i := range m.words {
		binary.LittleEndian.PutUint32(out[i*4:], atomic.LoadUint32(&m.words[i]))
	}
	return out[:m.size]
}

func (m *memory) check(offset, bytes uint32) error {
	if uint64(offset)+uint64(bytes) > uint64(len(m.words))*4 {
		return fmt.Errorf("access of %d bytes at offset %d is out of bounds for resource %s (%d bytes)",
			bytes, offset, m.key, m.size)
	}
	if bytes < 4 && offset%4+bytes > 4 {
		return fmt.Errorf("access of %d bytes at offset %d straddles a word of resource %s", bytes, offset, m.key)
	}
	if bytes >= 4 && offset%4 != 0 {
		return fmt.Errorf("unaligned access at offset %d of resource %s", offset, m.key)
	}
	return nil
}

// load reads a scalar of the given byte size.
func (m *memory) load(offset, bytes uint32) (uint64, error) {
	if err := m.check(offset, bytes); err != nil {
		return 0, err
	}
	word := offset / 4
	switch bytes {
	case 8:
		lo := atomic.LoadUint32(&m.words[word])
		hi := atomic.LoadUint32(&m.words[word+1])
		return uint64(hi)<<32 | uint64(lo), nil
	case 4:
		return uint64(atomic.LoadUint32(&m.words[word])), nil
	case 1, 2:
		shift := (offset % 4) * 8
		mask := uint32(1)<<(bytes*8) - 1
		return uint64(atomic.LoadUint32(&m.words[word]) >> shift & mask), nil
	}
	return 0, fmt.Errorf("unsupported access size %d", bytes)
}

// store writes a scalar of the given byte size. Sub-word stores replace
// only their own bytes.
func (m *memory) store(offset, bytes uint32, bits uint64) error {
	if m.readOnly {
		return fmt.Errorf("store to read-only resource %s", m.key)
	}
	if err := m.check(offset, bytes); err != nil {
		return err
	}
	word := offset / 4
	switch bytes {
	case 8:
		atomic.StoreUint32(&m.words[word], uint32(bits))
		atomic.StoreUint32(&m.words[word+1], uint32(bits>>32))
	case 4:
		atomic.StoreUint32(&m.words[word], uint32(bits))
	case 1, 2:
		shift := (offset % 4) * 8
		mask := (uint32(1)<<(bytes*8) - 1) << shift
		insert := uint32(bits) << shift & mask
		for {
			old := atomic.LoadUint32(&m.words[word])
			if atomic.CompareAndSwapUint32(&m.words[word], old, old&^mask|insert) {
				break
			}
		}
	default:
		return fmt.Errorf("unsupported access size %d", bytes)
	}
	return nil
}

// atomicAnd and atomicOr return the word's previous value.
func (m *memory) atomicAnd(offset, v uint32) (uint32, error) {
	if err := m.checkAtomic(offset); err != nil {
		return 0, err
	}
	return atomic.AndUint32(&m.words[offset/4], v), nil
}

func (m *memory) atomicOr(offset, v uint32) (uint32, error) {
	if err := m.checkAtomic(offset); err != nil {
		return 0, err
	}
	return atomic.OrUint32(&m.words[offset/4], v), nil
}

func (m *memory) checkAtomic(offset uint32) error {
	if m.readOnly {
		return fmt.Errorf("atomic update of read-only resource %s", m.key)
	}
	return m.check(offset, 4)
}
