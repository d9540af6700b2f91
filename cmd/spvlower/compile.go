package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/spvlower"
	"github.com/gogpu/spvlower/lowering"
	"github.com/gogpu/spvlower/spirv"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output      string
	Disassemble bool
}

// CompileResult is the JSON form of a compilation.
type CompileResult struct {
	Report *lowering.Report `json:"report"`
	Output string           `json:"output,omitempty"`
	Bytes  int              `json:"bytes"`
	Words  int              `json:"words"`
	Text   string           `json:"disassembly,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <module.yaml>",
		Short: "Compile a module to a SPIR-V binary",
		Long: `Lower a YAML module and serialize it as a SPIR-V binary.

Without --output the binary is written to standard output, or its
disassembly with --disassemble.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVarP(&opts.Disassemble, "disassemble", "S", false, "print the disassembly")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	s, err := opts.open(path)
	if err != nil {
		return formatter.Failure(err)
	}
	defer s.close()

	binary, report, err := spvlower.Compile(s.module, s.options)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitFailure, "compiling "+path, err))
	}

	result := &CompileResult{Report: report, Output: opts.Output, Bytes: len(binary), Words: len(binary) / 4}
	if opts.Disassemble {
		text, err := disassemble(binary)
		if err != nil {
			return formatter.Failure(err)
		}
		result.Text = text
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, binary, 0o644); err != nil {
			return formatter.Failure(WrapExitError(ExitCommandError, "writing output file", err))
		}
	}

	return formatter.Success(result, func(w io.Writer) error {
		switch {
		case opts.Disassemble:
			_, err := io.WriteString(w, result.Text)
			return err
		case opts.Output != "":
			_, err := fmt.Fprintf(w, "Compiled %s to %s (%d bytes, %d operations converted)\n",
				path, opts.Output, result.Bytes, report.Converted)
			return err
		}
		_, err := w.Write(binary)
		return err
	})
}

func disassemble(binary []byte) (string, error) {
	parsed, err := spirv.Parse(binary)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := spirv.Disassemble(&buf, parsed); err != nil {
		return "", err
	}
	return buf.String(), nil
}
