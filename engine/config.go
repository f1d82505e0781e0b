package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-journal/errors"
)

// Compiler selects the wazero execution backend.
type Compiler string

const (
	// CompilerAuto uses the compiler where supported, else the interpreter.
	CompilerAuto        Compiler = ""
	CompilerOptimizing  Compiler = "compiler"
	CompilerInterpreter Compiler = "interpreter"
)

// MaxMemoryPages is the wasm32 limit of 4GiB in 64KiB pages.
const MaxMemoryPages = 65536

// Config holds configuration for runtime creation
type Config struct {
	// Compiler selects the execution backend.
	Compiler Compiler `yaml:"compiler" toml:"compiler"`

	// EnableNaNCanonicalization requests canonical NaN results from
	// floating point operations.
	EnableNaNCanonicalization bool `yaml:"nan_canonicalization" toml:"nan_canonicalization"`

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" toml:"memory_limit_pages"`

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	EnableThreads bool `yaml:"threads" toml:"threads"`

	// CloseOnContextDone interrupts running guest code when its context
	// is canceled.
	CloseOnContextDone bool `yaml:"close_on_context_done" toml:"close_on_context_done"`
}

// DefaultConfig returns the configuration used for capture and replay.
func DefaultConfig() Config {
	return Config{
		EnableNaNCanonicalization: true,
		CloseOnContextDone:        true,
	}
}

// Validate checks c for unknown or out of range values.
func (c Config) Validate() error {
	switch c.Compiler {
	case CompilerAuto, CompilerOptimizing, CompilerInterpreter:
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("engine", "compiler").
			Value(string(c.Compiler)).
			Detail("unknown compiler %q", c.Compiler).
			Build()
	}
	if c.MemoryLimitPages > MaxMemoryPages {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("engine", "memory_limit_pages").
			Value(c.MemoryLimitPages).
			Detail("limit %d exceeds %d pages", c.MemoryLimitPages, MaxMemoryPages).
			Build()
	}
	return nil
}

// RuntimeConfig translates c into a wazero runtime configuration.
func (c Config) RuntimeConfig() wazero.RuntimeConfig {
	var rc wazero.RuntimeConfig
	switch c.Compiler {
	case CompilerOptimizing:
		rc = wazero.NewRuntimeConfigCompiler()
	case CompilerInterpreter:
		rc = wazero.NewRuntimeConfigInterpreter()
	default:
		rc = wazero.NewRuntimeConfig()
	}
	if c.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(c.MemoryLimitPages)
	}
	if c.EnableThreads {
		rc = rc.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	if c.CloseOnContextDone {
		rc = rc.WithCloseOnContextDone(true)
	}
	return rc
}

// NewRuntime validates cfg and creates a wazero runtime from it.
func NewRuntime(ctx context.Context, cfg Config) (wazero.Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	Logger().Debug("creating runtime",
		zap.String("compiler", string(cfg.Compiler)),
		zap.Bool("nan_canonicalization", cfg.EnableNaNCanonicalization),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages),
		zap.Bool("threads", cfg.EnableThreads))
	return wazero.NewRuntimeWithConfig(ctx, cfg.RuntimeConfig()), nil
}
