// Package spirv defines the spv target dialect and turns lowered modules
// into SPIR-V binaries.
//
// The dialect half names one operation kind per SPIR-V instruction the
// lowering emits (spv.IAdd, spv.AccessChain, spv.AtomicOr, spv.GLSL.Sqrt,
// ...) together with the opcode and GLSL.std.450 tables used to serialize
// them. Options describes the target environment: the SPIR-V version and
// the capabilities beyond Shader that make 8, 16 and 64-bit scalars native.
//
// # Backend
//
// The Backend translates a module whose operations are all in the spv
// dialect to SPIR-V binary format:
//
//	backend := spirv.NewBackend(spirv.DefaultOptions())
//	binary, err := backend.Compile(lowered)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Entry functions become GLCompute entry points. Each pointer argument
// becomes a global variable decorated with DescriptorSet 0 and Binding i,
// and its struct pointee is decorated Block.
//
// # Binary Writer and Reader
//
// ModuleBuilder constructs modules section by section:
//
//	builder := spirv.NewModuleBuilder(spirv.Version1_3)
//	builder.AddCapability(spirv.CapabilityShader)
//	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//	binary := builder.Build()
//
// Parse decodes a binary back into instructions and Disassemble prints
// them in spvasm style.
//
// # References
//
// SPIR-V Specification: https://registry.khronos.org/SPIR-V/specs/unified1/SPIRV.html
package spirv
