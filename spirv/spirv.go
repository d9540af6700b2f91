package spirv

import (
	"fmt"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// Version represents a SPIR-V version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common SPIR-V versions
var (
	Version1_0 = Version{1, 0}
	Version1_3 = Version{1, 3}
	Version1_4 = Version{1, 4}
	Version1_5 = Version{1, 5}
	Version1_6 = Version{1, 6}
)

func (v Version) String() string {
	return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor))
}

// AtLeast reports whether v is the same as or newer than o.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	return v.Minor >= o.Minor
}

// ParseVersion parses a version string such as "1.3" or "v1.5.0".
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("spirv version %q: %w", s, err)
	}
	if sv.Major() != 1 || sv.Minor() > 6 {
		return Version{}, fmt.Errorf("spirv version %q: unsupported (want 1.0 through 1.6)", s)
	}
	return Version{Major: uint8(sv.Major()), Minor: uint8(sv.Minor())}, nil
}

// Options describes the target environment: the SPIR-V version and the
// capabilities the device supports beyond Shader.
type Options struct {
	// Version is the SPIR-V version to target
	Version Version

	// Capabilities are additional capabilities to declare
	Capabilities []Capability

	// Debug emits OpName for entry point arguments
	Debug bool

	// Validation checks that every operation is in the spv dialect before
	// emission
	Validation bool
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Version:    Version1_3,
		Debug:      false,
		Validation: true,
	}
}

// HasCapability reports whether c is declared.
func (o Options) HasCapability(c Capability) bool {
	if c == CapabilityShader {
		return true
	}
	for _, have := range o.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// SupportsIntWidth reports whether integers of the given width are native.
func (o Options) SupportsIntWidth(width uint32) bool {
	switch width {
	case 1, 32:
		return true
	case 8:
		return o.HasCapability(CapabilityInt8)
	case 16:
		return o.HasCapability(CapabilityInt16)
	case 64:
		return o.HasCapability(CapabilityInt64)
	}
	return false
}

// SupportsFloatWidth reports whether floats of the given width are native.
func (o Options) SupportsFloatWidth(width uint32) bool {
	switch width {
	case 32:
		return true
	case 16:
		return o.HasCapability(CapabilityFloat16)
	case 64:
		return o.HasCapability(CapabilityFloat64)
	}
	return false
}

// Capability represents a SPIR-V capability.
type Capability uint32

// Capabilities that affect type legality
const (
	CapabilityShader       Capability = 1
	CapabilityFloat16      Capability = 9
	CapabilityFloat64      Capability = 10
	CapabilityInt64        Capability = 11
	CapabilityInt64Atomics Capability = 12
	CapabilityInt16        Capability = 22
	CapabilityInt8         Capability = 39
)

var capabilityNames = map[Capability]string{
	CapabilityShader:       "Shader",
	CapabilityFloat16:      "Float16",
	CapabilityFloat64:      "Float64",
	CapabilityInt64:        "Int64",
	CapabilityInt64Atomics: "Int64Atomics",
	CapabilityInt16:        "Int16",
	CapabilityInt8:         "Int8",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "Capability(" + strconv.FormatUint(uint64(c), 10) + ")"
}

// ParseCapability returns the capability with the given name.
func ParseCapability(name string) (Capability, error) {
	for c, n := range capabilityNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

// SPIR-V magic number and constants
const (
	MagicNumber = 0x07230203
	GeneratorID = 0x00000000 // Unregistered generator
)

// OpCode represents a SPIR-V opcode.
type OpCode uint16

// Opcodes used by the lowering and the backend
const (
	OpNop                    OpCode = 0
	OpName                   OpCode = 5
	OpExtension              OpCode = 10
	OpExtInstImport          OpCode = 11
	OpExtInst                OpCode = 12
	OpMemoryModel            OpCode = 14
	OpEntryPoint             OpCode = 15
	OpExecutionMode          OpCode = 16
	OpCapability             OpCode = 17
	OpTypeVoid               OpCode = 19
	OpTypeBool               OpCode = 20
	OpTypeInt                OpCode = 21
	OpTypeFloat              OpCode = 22
	OpTypeVector             OpCode = 23
	OpTypeArray              OpCode = 28
	OpTypeRuntimeArray       OpCode = 29
	OpTypeStruct             OpCode = 30
	OpTypePointer            OpCode = 32
	OpTypeFunction           OpCode = 33
	OpConstantTrue           OpCode = 41
	OpConstantFalse          OpCode = 42
	OpConstant               OpCode = 43
	OpConstantComposite      OpCode = 44
	OpFunction               OpCode = 54
	OpFunctionParameter      OpCode = 55
	OpFunctionEnd            OpCode = 56
	OpVariable               OpCode = 59
	OpLoad                   OpCode = 61
	OpStore                  OpCode = 62
	OpAccessChain            OpCode = 65
	OpDecorate               OpCode = 71
	OpMemberDecorate         OpCode = 72
	OpCompositeExtract       OpCode = 81
	OpConvertFToU            OpCode = 109
	OpConvertFToS            OpCode = 110
	OpConvertSToF            OpCode = 111
	OpConvertUToF            OpCode = 112
	OpUConvert               OpCode = 113
	OpSConvert               OpCode = 114
	OpFConvert               OpCode = 115
	OpSNegate                OpCode = 126
	OpFNegate                OpCode = 127
	OpIAdd                   OpCode = 128
	OpFAdd                   OpCode = 129
	OpISub                   OpCode = 130
	OpFSub                   OpCode = 131
	OpIMul                   OpCode = 132
	OpFMul                   OpCode = 133
	OpUDiv                   OpCode = 134
	OpSDiv                   OpCode = 135
	OpFDiv                   OpCode = 136
	OpUMod                   OpCode = 137
	OpSRem                   OpCode = 138
	OpSMod                   OpCode = 139
	OpFRem                   OpCode = 140
	OpLogicalEqual           OpCode = 164
	OpLogicalNotEqual        OpCode = 165
	OpLogicalOr              OpCode = 166
	OpLogicalAnd             OpCode = 167
	OpLogicalNot             OpCode = 168
	OpSelect                 OpCode = 169
	OpIEqual                 OpCode = 170
	OpINotEqual              OpCode = 171
	OpUGreaterThan           OpCode = 172
	OpSGreaterThan           OpCode = 173
	OpUGreaterThanEqual      OpCode = 174
	OpSGreaterThanEqual      OpCode = 175
	OpULessThan              OpCode = 176
	OpSLessThan              OpCode = 177
	OpULessThanEqual         OpCode = 178
	OpSLessThanEqual         OpCode = 179
	OpFOrdEqual              OpCode = 180
	OpFUnordEqual            OpCode = 181
	OpFOrdNotEqual           OpCode = 182
	OpFUnordNotEqual         OpCode = 183
	OpFOrdLessThan           OpCode = 184
	OpFUnordLessThan         OpCode = 185
	OpFOrdGreaterThan        OpCode = 186
	OpFUnordGreaterThan      OpCode = 187
	OpFOrdLessThanEqual      OpCode = 188
	OpFUnordLessThanEqual    OpCode = 189
	OpFOrdGreaterThanEqual   OpCode = 190
	OpFUnordGreaterThanEqual OpCode = 191
	OpShiftRightLogical      OpCode = 194
	OpShiftRightArithmetic   OpCode = 195
	OpShiftLeftLogical       OpCode = 196
	OpBitwiseOr              OpCode = 197
	OpBitwiseXor             OpCode = 198
	OpBitwiseAnd             OpCode = 199
	OpNot                    OpCode = 200
	OpAtomicAnd              OpCode = 240
	OpAtomicOr               OpCode = 241
	OpLabel                  OpCode = 248
	OpReturn                 OpCode = 253
)

// Decoration represents a SPIR-V decoration.
type Decoration uint32

// Common decorations
const (
	DecorationBlock         Decoration = 2
	DecorationArrayStride   Decoration = 6
	DecorationBuiltIn       Decoration = 11
	DecorationNonWritable   Decoration = 24
	DecorationBinding       Decoration = 33
	DecorationDescriptorSet Decoration = 34
	DecorationOffset        Decoration = 35
)

// BuiltIn represents a SPIR-V builtin variable.
type BuiltIn uint32

const (
	BuiltInGlobalInvocationID BuiltIn = 28
)

// StorageClass is the SPIR-V encoding of a storage class.
type StorageClass uint32

const (
	StorageClassUniformConstant StorageClass = 0
	StorageClassInput           StorageClass = 1
	StorageClassUniform         StorageClass = 2
	StorageClassWorkgroup       StorageClass = 4
	StorageClassPrivate         StorageClass = 6
	StorageClassFunction        StorageClass = 7
	StorageClassStorageBuffer   StorageClass = 12
)

// AddressingModel is the operand of OpMemoryModel.
type AddressingModel uint32

const (
	AddressingModelLogical AddressingModel = 0
)

// MemoryModel is the operand of OpMemoryModel.
type MemoryModel uint32

const (
	MemoryModelGLSL450 MemoryModel = 1
)

// ExecutionModel is the stage of an entry point.
type ExecutionModel uint32

const (
	ExecutionModelGLCompute ExecutionModel = 5
)

// ExecutionMode configures an entry point.
type ExecutionMode uint32

const (
	ExecutionModeLocalSize ExecutionMode = 17
)

// FunctionControl is the control mask of OpFunction.
type FunctionControl uint32

const (
	FunctionControlNone FunctionControl = 0
)

// GLSLStd450 is the name of the extended instruction set used for math.
const GLSLStd450 = "GLSL.std.450"
