package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gogpu/spvlower"
	"github.com/gogpu/spvlower/device"
	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/lowering"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Entry       string
	Buffers     []string
	Uniforms    []string
	Dispatch    string
	Concurrency int
}

// RunResult is the JSON form of a kernel run.
type RunResult struct {
	RunID    string           `json:"run_id"`
	Entry    string           `json:"entry"`
	Duration string           `json:"duration"`
	Report   *lowering.Report `json:"report"`
	Buffers  []BufferResult   `json:"buffers"`
}

// BufferResult is one resource after the run.
type BufferResult struct {
	Binding    string `json:"binding"`
	Descriptor string `json:"descriptor"`
	Data       string `json:"data"` // hex
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <module.yaml>",
		Short: "Compile a kernel and run it on the software device",
		Long: `Compile a YAML module and execute one of its entry points on the
software device, then print every bound buffer.

Buffers are given as <set>:<binding>=<source>, where the source is one of
  zeros:<n>     n zero bytes
  hex:<digits>  literal bytes
  file:<path>   the contents of a file`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Entry, "entry", "e", "", "entry point (default: the first one)")
	cmd.Flags().StringArrayVarP(&opts.Buffers, "buffer", "b", nil, "buffer binding, <set>:<binding>=<source>")
	cmd.Flags().StringArrayVar(&opts.Uniforms, "uniform", nil, "bind <set>:<binding> as a uniform buffer")
	cmd.Flags().StringVarP(&opts.Dispatch, "dispatch", "d", "1", "workgroup counts, x[,y[,z]]")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "lanes running at once (default: GOMAXPROCS)")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	resources, err := parseResources(opts.Buffers, opts.Uniforms)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitCommandError, "invalid --buffer", err))
	}
	dispatch, err := parseDispatch(opts.Dispatch)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitCommandError, "invalid --dispatch", err))
	}

	s, err := opts.open(path)
	if err != nil {
		return formatter.Failure(err)
	}
	defer s.close()

	entry, err := selectEntry(s.module, opts.Entry)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitCommandError, "selecting entry point", err))
	}

	binary, report, err := spvlower.Compile(s.module, s.options)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitFailure, "compiling "+path, err))
	}

	sim := device.NewSimulator(
		device.WithLogger(s.logger),
		device.WithConcurrency(opts.Concurrency))
	res, err := sim.Run(cmd.Context(), device.Program{Binary: binary, EntryPoint: entry}, resources, dispatch)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitFailure, "running "+entry, err))
	}
	s.logger.Info("kernel finished", zap.String("entry", entry), zap.Duration("duration", res.Duration))

	result := &RunResult{
		RunID:    res.RunID.String(),
		Entry:    entry,
		Duration: res.Duration.String(),
		Report:   report,
	}
	for _, key := range res.Buffers.Keys() {
		buf := res.Buffers[key]
		kind, err := device.DescriptorTypeOf(buf.StorageClass)
		if err != nil {
			return formatter.Failure(err)
		}
		result.Buffers = append(result.Buffers, BufferResult{
			Binding:    key.String(),
			Descriptor: kind.String(),
			Data:       hex.EncodeToString(buf.Data),
		})
	}

	return formatter.Success(result, func(w io.Writer) error {
		for _, key := range res.Buffers.Keys() {
			buf := res.Buffers[key]
			if _, err := fmt.Fprintf(w, "binding %s (%s, %d bytes)\n%s", key, buf.StorageClass, len(buf.Data), hex.Dump(buf.Data)); err != nil {
				return err
			}
		}
		return nil
	})
}

// selectEntry returns name, or the first entry point when name is empty.
func selectEntry(m *ir.Module, name string) (string, error) {
	if name != "" {
		fn := m.Function(name)
		if fn == nil || !fn.EntryPoint {
			return "", fmt.Errorf("no entry point named %q", name)
		}
		return name, nil
	}
	for _, fn := range m.Functions {
		if fn.EntryPoint {
			return fn.Name, nil
		}
	}
	return "", fmt.Errorf("module has no entry point")
}

func parseResources(buffers, uniforms []string) (device.ResourceTable, error) {
	table := make(device.ResourceTable, len(buffers))
	for _, arg := range buffers {
		keyText, source, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected <set>:<binding>=<source>", arg)
		}
		key, err := parseBindingKey(keyText)
		if err != nil {
			return nil, err
		}
		if _, dup := table[key]; dup {
			return nil, fmt.Errorf("binding %s given twice", key)
		}
		data, err := readSource(source)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
		table[key] = &device.Buffer{Data: data, StorageClass: device.StorageBuffer}
	}
	for _, keyText := range uniforms {
		key, err := parseBindingKey(keyText)
		if err != nil {
			return nil, err
		}
		buf, ok := table[key]
		if !ok {
			return nil, fmt.Errorf("uniform binding %s has no buffer", key)
		}
		buf.StorageClass = device.Uniform
	}
	return table, nil
}

func parseBindingKey(s string) (device.BindingKey, error) {
	setText, bindingText, ok := strings.Cut(s, ":")
	if !ok {
		return device.BindingKey{}, fmt.Errorf("%q: expected <set>:<binding>", s)
	}
	set, err := strconv.ParseUint(setText, 10, 32)
	if err != nil {
		return device.BindingKey{}, fmt.Errorf("%q: invalid set: %w", s, err)
	}
	binding, err := strconv.ParseUint(bindingText, 10, 32)
	if err != nil {
		return device.BindingKey{}, fmt.Errorf("%q: invalid binding: %w", s, err)
	}
	return device.BindingKey{Set: uint32(set), Binding: uint32(binding)}, nil
}

func readSource(source string) ([]byte, error) {
	kind, arg, _ := strings.Cut(source, ":")
	switch kind {
	case "zeros":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid size %q", arg)
		}
		return make([]byte, n), nil
	case "hex":
		return hex.DecodeString(arg)
	case "file":
		return os.ReadFile(arg)
	}
	return nil, fmt.Errorf("unknown buffer source %q", kind)
}

func parseDispatch(s string) (device.DispatchSize, error) {
	size := [3]uint32{1, 1, 1}
	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return device.DispatchSize{}, fmt.Errorf("%q has %d dimensions", s, len(parts))
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return device.DispatchSize{}, fmt.Errorf("%q: %w", s, err)
		}
		size[i] = uint32(n)
	}
	return device.DispatchSize{X: size[0], Y: size[1], Z: size[2]}, nil
}
