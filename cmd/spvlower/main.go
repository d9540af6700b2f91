// Command spvlower lowers standard-dialect kernels to SPIR-V.
//
// Usage:
//
//	spvlower lower kernel.yaml                 # Print the lowered module
//	spvlower compile -o kernel.spv kernel.yaml # Write a SPIR-V binary
//	spvlower compile -S kernel.yaml            # Print the disassembly
//	spvlower run --buffer 0:0=zeros:64 --dispatch 4 kernel.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}
