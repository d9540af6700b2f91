package spirv

import (
	"encoding/binary"
	"fmt"
)

// Header is the five-word SPIR-V module header.
type Header struct {
	Magic     uint32
	Version   Version
	Generator uint32
	Bound     uint32
	Schema    uint32
}

// Binary is a decoded SPIR-V module.
type Binary struct {
	Header       Header
	Instructions []Instruction
}

// Parse decodes a little-endian SPIR-V binary.
func Parse(data []byte) (*Binary, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("spirv: binary too small (%d bytes)", len(data))
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("spirv: binary length %d is not a multiple of 4", len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicNumber {
		return nil, fmt.Errorf("spirv: invalid magic 0x%08X", magic)
	}

	bin := &Binary{
		Header: Header{
			Magic:     magic,
			Version:   wordToVersion(binary.LittleEndian.Uint32(data[4:8])),
			Generator: binary.LittleEndian.Uint32(data[8:12]),
			Bound:     binary.LittleEndian.Uint32(data[12:16]),
			Schema:    binary.LittleEndian.Uint32(data[16:20]),
		},
	}

	offset := 20
	for offset < len(data) {
		word := binary.LittleEndian.Uint32(data[offset:])
		opcode := OpCode(word & 0xFFFF)
		wordCount := int(word >> 16)
		if wordCount == 0 || offset+wordCount*4 > len(data) {
			return nil, fmt.Errorf("spirv: invalid word count %d at offset 0x%X", wordCount, offset)
		}
		words := make([]uint32, wordCount-1)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(data[offset+4+i*4:])
		}
		bin.Instructions = append(bin.Instructions, Instruction{Opcode: opcode, Words: words})
		offset += wordCount * 4
	}
	return bin, nil
}

// DecodeString reads a null-terminated literal string starting at words[0]
// and returns it with the number of words it occupies.
func DecodeString(words []uint32) (string, int) {
	var buf []byte
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf), i + 1
			}
			buf = append(buf, c)
		}
	}
	return string(buf), len(words)
}
