// Command spvdis prints the text form of a SPIR-V binary.
//
// Usage:
//
//	spvdis <file.spv>
//	spvdis -o file.spvasm file.spv
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gogpu/spvlower/spirv"
)

var output = flag.String("o", "", "output file (default: stdout)")

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: spvdis [-o output] <file.spv>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	bin, err := spirv.Parse(data)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	if err := spirv.Disassemble(bw, bin); err != nil {
		return err
	}
	return bw.Flush()
}
