// Package spvlower lowers standard-dialect compute kernels to the SPIR-V
// dialect and serializes them as SPIR-V binaries.
//
// Narrow integers the target cannot address natively are emulated on 32-bit
// words: loads shift and mask, stores clear and set their bit range with
// atomic AND and OR so concurrent lanes sharing a word do not interfere.
//
// Example usage:
//
//	module, err := yamlir.DecodeFile("kernel.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	binary, report, err := spvlower.Compile(module, spvlower.DefaultOptions())
//
// The stages are also available individually: Lower rewrites the module in
// place, spirv.NewBackend serializes a lowered module, and device.Simulator
// executes the binary.
package spvlower

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/gogpu/spvlower/ir"
	"github.com/gogpu/spvlower/lowering"
	"github.com/gogpu/spvlower/spirv"
)

// Options configures the pipeline.
type Options struct {
	// Target is the SPIR-V environment: version and native capabilities
	Target spirv.Options

	// Validate checks the module's referential integrity before lowering
	Validate bool

	// Logger receives pattern diagnostics; nil discards them
	Logger *zap.Logger
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Target:   spirv.DefaultOptions(),
		Validate: true,
	}
}

// config is the file form of Options.
type config struct {
	Target struct {
		Version      string   `toml:"version"`
		Capabilities []string `toml:"capabilities"`
		Debug        *bool    `toml:"debug"`
		Validation   *bool    `toml:"validation"`
	} `toml:"target"`
	Validate *bool `toml:"validate"`
}

// LoadOptions reads options from a TOML file. Settings the file omits keep
// their default values.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes options from TOML.
func ParseOptions(data []byte) (Options, error) {
	var cfg config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Options{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	opts := DefaultOptions()
	if cfg.Target.Version != "" {
		v, err := spirv.ParseVersion(cfg.Target.Version)
		if err != nil {
			return Options{}, err
		}
		opts.Target.Version = v
	}
	for _, name := range cfg.Target.Capabilities {
		c, err := spirv.ParseCapability(name)
		if err != nil {
			return Options{}, err
		}
		opts.Target.Capabilities = append(opts.Target.Capabilities, c)
	}
	if cfg.Target.Debug != nil {
		opts.Target.Debug = *cfg.Target.Debug
	}
	if cfg.Target.Validation != nil {
		opts.Target.Validation = *cfg.Target.Validation
	}
	if cfg.Validate != nil {
		opts.Validate = *cfg.Validate
	}
	return opts, nil
}

// Lower rewrites every function of module into the SPIR-V dialect. On
// failure the module is left as it was.
func Lower(module *ir.Module, opts Options) (*lowering.Report, error) {
	if opts.Validate {
		validationErrors, err := ir.Validate(module)
		if err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
		if len(validationErrors) > 0 {
			return nil, fmt.Errorf("validation failed: %w", &validationErrors[0])
		}
	}

	converter := lowering.NewTypeConverter(opts.Target, opts.Logger)
	patterns := lowering.PopulateStandardToSPIRVPatterns(converter, lowering.NewPatternSet())
	report, err := lowering.ApplyFullConversion(module, lowering.SPIRVTarget(), patterns, converter)
	if err != nil {
		return nil, fmt.Errorf("lowering error: %w", err)
	}
	return report, nil
}

// Compile lowers module and serializes it to a SPIR-V binary.
func Compile(module *ir.Module, opts Options) ([]byte, *lowering.Report, error) {
	report, err := Lower(module, opts)
	if err != nil {
		return nil, nil, err
	}
	binary, err := GenerateSPIRV(module, opts.Target)
	if err != nil {
		return nil, report, err
	}
	return binary, report, nil
}

// GenerateSPIRV serializes an already lowered module.
func GenerateSPIRV(module *ir.Module, opts spirv.Options) ([]byte, error) {
	backend := spirv.NewBackend(opts)
	spirvBytes, err := backend.Compile(module)
	if err != nil {
		return nil, fmt.Errorf("SPIR-V generation error: %w", err)
	}
	return spirvBytes, nil
}
