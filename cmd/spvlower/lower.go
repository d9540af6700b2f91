package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gogpu/spvlower"
	"github.com/gogpu/spvlower/lowering"
)

// LowerResult is the JSON form of a lowered module.
type LowerResult struct {
	Report *lowering.Report `json:"report"`
	Module string           `json:"module"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lower <module.yaml>",
		Short: "Print a module lowered to the SPIR-V dialect",
		Long: `Lower every function of a YAML module to the SPIR-V dialect and print the
result. The conversion is all or nothing: if any operation cannot be
converted, every failure is reported and nothing is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(rootOpts, args[0], cmd)
		},
	}
}

func runLower(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	s, err := opts.open(path)
	if err != nil {
		return formatter.Failure(err)
	}
	defer s.close()

	report, err := spvlower.Lower(s.module, s.options)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitFailure, "lowering "+path, err))
	}

	result := &LowerResult{Report: report, Module: s.module.String()}
	return formatter.Success(result, func(w io.Writer) error {
		_, err := fmt.Fprint(w, result.Module)
		return err
	})
}
