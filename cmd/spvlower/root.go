package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gogpu/spvlower"
	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/spirv"
	"github.com/gogpu/spvlower/yamlir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	Format       string // "json" | "text"
	Config       string
	Version      string
	Capabilities []string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "spvlower",
		Short: "Lower standard-dialect kernels to SPIR-V",
		Long: `Lower compute kernels written in the standard dialect to the SPIR-V
dialect, serialize them as SPIR-V binaries and run them on a software device.

Narrow integers the target cannot address are emulated on 32-bit words.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log pattern diagnostics")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "TOML options file")
	cmd.PersistentFlags().StringVar(&opts.Version, "spirv-version", "", "target SPIR-V version (overrides the config file)")
	cmd.PersistentFlags().StringSliceVar(&opts.Capabilities, "capability", nil, "additional native capability, e.g. Int8")

	cmd.AddCommand(NewLowerCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// newLogger builds a development logger when verbose, otherwise a
// production logger that only reports warnings.
func (o *RootOptions) newLogger() (*zap.Logger, error) {
	if o.Verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// pipelineOptions merges the config file with the command line flags.
func (o *RootOptions) pipelineOptions(logger *zap.Logger) (spvlower.Options, error) {
	opts := spvlower.DefaultOptions()
	if o.Config != "" {
		loaded, err := spvlower.LoadOptions(o.Config)
		if err != nil {
			return spvlower.Options{}, WrapExitError(ExitCommandError, "loading options", err)
		}
		opts = loaded
	}
	if o.Version != "" {
		v, err := spirv.ParseVersion(o.Version)
		if err != nil {
			return spvlower.Options{}, WrapExitError(ExitCommandError, "invalid --spirv-version", err)
		}
		opts.Target.Version = v
	}
	for _, name := range o.Capabilities {
		c, err := spirv.ParseCapability(name)
		if err != nil {
			return spvlower.Options{}, WrapExitError(ExitCommandError, "invalid --capability", err)
		}
		if !opts.Target.HasCapability(c) {
			opts.Target.Capabilities = append(opts.Target.Capabilities, c)
		}
	}
	opts.Logger = logger
	return opts, nil
}

// session is the state shared by commands that read a module.
type session struct {
	module  *ir.Module
	options spvlower.Options
	logger  *zap.Logger
}

func (o *RootOptions) open(path string) (*session, error) {
	logger, err := o.newLogger()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "creating logger", err)
	}
	opts, err := o.pipelineOptions(logger)
	if err != nil {
		return nil, err
	}
	module, err := yamlir.DecodeFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "reading module", err)
	}
	logger.Debug("module loaded",
		zap.String("path", path),
		zap.Int("functions", len(module.Functions)),
		zap.Stringer("spirv", opts.Target.Version))
	return &session{module: module, options: opts, logger: logger}, nil
}

func (s *session) close() { _ = s.logger.Sync() }
