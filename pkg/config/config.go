// Package config holds the ambient configuration for a gridengine document
// engine instance: recalculation limits, lookup/position tuning knobs, and
// logging. It follows the same grouped-struct, JSON-file-backed shape the
// rest of this codebase's ambient stack uses.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level engine configuration.
type Config struct {
	Engine   EngineConfig   `json:"engine"`
	Recalc   RecalcConfig   `json:"recalc"`
	Lookup   LookupConfig   `json:"lookup"`
	Position PositionConfig `json:"position"`
	Log      LogConfig      `json:"log"`
}

// EngineConfig controls top-level engine behavior.
type EngineConfig struct {
	// MemoryCeilingBytes is the soft memory budget from §5; 0 disables it.
	MemoryCeilingBytes int64 `json:"memory_ceiling_bytes"`
	// ActionDeadline bounds how long a single apply_user_actions call may run
	// cooperatively before the host's deadline check should reject new work.
	ActionDeadline time.Duration `json:"action_deadline"`
}

// RecalcConfig tunes the incremental recalculation loop.
type RecalcConfig struct {
	// MaxStackDepth bounds the cycle-detection active stack, guarding against
	// pathologically deep reference chains rather than true cycles.
	MaxStackDepth int `json:"max_stack_depth"`
}

// LookupConfig tunes the lookup index subsystem.
type LookupConfig struct {
	// CaseInsensitiveText enables a locale-aware collator (golang.org/x/text)
	// for ordering Text/Choice lookup keys instead of raw byte comparison.
	CaseInsensitiveText bool   `json:"case_insensitive_text"`
	Locale              string `json:"locale"`
}

// PositionConfig tunes position-label rebalancing (§4.12).
type PositionConfig struct {
	// DensityThresholdBase is the power-of-N heuristic base used when
	// widening the search for an enclosing interval to relabel.
	DensityThresholdBase float64 `json:"density_threshold_base"`
}

// LogConfig configures the stdlib-log-based ambient logger.
type LogConfig struct {
	Level  string `json:"level"`  // debug|info|warn|error
	Prefix string `json:"prefix"`
}

// Default returns the engine's out-of-the-box configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MemoryCeilingBytes: 0,
			ActionDeadline:     30 * time.Second,
		},
		Recalc: RecalcConfig{
			MaxStackDepth: 500,
		},
		Lookup: LookupConfig{
			CaseInsensitiveText: false,
			Locale:              "en",
		},
		Position: PositionConfig{
			DensityThresholdBase: 1.3,
		},
		Log: LogConfig{
			Level:  "info",
			Prefix: "gridengine",
		},
	}
}

// ErrInvalidConfig reports a malformed configuration value.
type ErrInvalidConfig struct {
	ConfigKey string
	Message   string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config for %s: %s", e.ConfigKey, e.Message)
}

// NewErrInvalidConfig constructs an ErrInvalidConfig.
func NewErrInvalidConfig(key, message string) *ErrInvalidConfig {
	return &ErrInvalidConfig{ConfigKey: key, Message: message}
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.Recalc.MaxStackDepth <= 0 {
		return NewErrInvalidConfig("recalc.max_stack_depth", "must be positive")
	}
	if c.Position.DensityThresholdBase <= 1.0 {
		return NewErrInvalidConfig("position.density_threshold_base", "must be greater than 1.0")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return NewErrInvalidConfig("log.level", "must be one of debug|info|warn|error")
	}
	return nil
}

// Load reads a JSON config file, falling back to defaults for any field the
// file doesn't set by starting from Default() and overwriting.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
