package grove

import (
	"fmt"
	"log/slog"
)

// RuntimeConfig configures NewRuntime.
type RuntimeConfig struct {
	// Logger defaults to the package logger.
	Logger *slog.Logger
	// DuplicatePolicy applies to type registration.
	DuplicatePolicy DuplicatePolicy
	// SkipBuiltins leaves the registry empty.
	SkipBuiltins bool
}

// Runtime owns the tables a Manager works against: the type registry, the
// id allocator and the service table. It is single-threaded.
type Runtime struct {
	Registry *Registry
	IDs      *IDAllocator
	Services *Services
	Logger   *slog.Logger
}

// NewRuntime creates a runtime with the built-in element types registered
// unless cfg.SkipBuiltins is set.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = Logger()
	}
	rt := &Runtime{
		Registry: NewRegistry(cfg.DuplicatePolicy, logger),
		IDs:      NewIDAllocator(),
		Services: NewServices(),
		Logger:   logger,
	}
	if !cfg.SkipBuiltins {
		if err := RegisterBuiltins(rt.Registry); err != nil {
			panic(fmt.Sprintf("grove: register builtins: %v", err))
		}
	}
	return rt
}
