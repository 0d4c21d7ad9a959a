package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/dispatch"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the config for:
//   - Required fields (version, mode-specific dispatch settings)
//   - A USD base currency
//   - A known dispatch mode
//   - Sane engine and timeout values
//
// All problems are reported together as one Validation error.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if !logLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, fmt.Sprintf("log_level %q must be one of debug, info, warn, error", cfg.LogLevel))
	}
	if err := cfg.Normalizer.Settings().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := dispatch.DefaultRegistry().Build(cfg.Dispatch.Settings()); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.FX.TimeoutMs < 0 || cfg.Dispatch.TimeoutMs < 0 || cfg.Engine.EventTimeoutMs < 0 {
		errs = append(errs, "timeouts must not be negative")
	}
	if cfg.FX.CacheTTLMs < 0 {
		errs = append(errs, "fx.cache_ttl_ms must not be negative")
	}
	if cfg.Engine.Workers < 1 {
		errs = append(errs, "engine.workers must be at least 1")
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, "engine.queue_depth must be at least 1")
	}

	if len(errs) > 0 {
		return apperr.Validationf("config", "validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
