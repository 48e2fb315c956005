// Package config is the core's configuration surface (spec.md §6),
// grounded on node/main.go's Config/DefaultConfig/ValidateConfig
// pattern: a plain struct, a function returning spec-mandated defaults, and
// a standalone validator — layered here over github.com/spf13/viper so
// values can come from a config file or environment as well as literal
// defaults, the way AKJUS-bsc-erigon and DioneProtocol-coreth load their
// node configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config mirrors spec.md §6's configuration-surface table.
type Config struct {
	RootPath           string `mapstructure:"root_path"`
	MapSize            int64  `mapstructure:"map_size"`
	LockTimeoutSeconds int    `mapstructure:"lock_timeout_seconds"`
	ReadCostPerByte    int64  `mapstructure:"read_cost_per_byte"`
	WriteCostPerByte   int64  `mapstructure:"write_cost_per_byte"`
	MaxHashDimensions  int    `mapstructure:"max_hash_dimensions"`
	MaxKeySize         int    `mapstructure:"max_key_size"`
	OpenFileBudget     int    `mapstructure:"open_file_budget"`
}

// DefaultRootPath mirrors node/main.go's DefaultDataDir, rehomed under the
// distilled source's own application directory, ~/.lamden/state.
func DefaultRootPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".lamden", "state")
	}
	return filepath.Join(home, ".lamden", "state")
}

// Default returns spec.md §6's literal defaults.
func Default() Config {
	return Config{
		RootPath:           DefaultRootPath(),
		MapSize:            1 << 30, // 1 GiB hint for memory-mapped backends
		LockTimeoutSeconds: 20,
		ReadCostPerByte:    1,
		WriteCostPerByte:   25,
		MaxHashDimensions:  16,
		MaxKeySize:         1024,
		OpenFileBudget:     256,
	}
}

// Validate rejects a Config that can't be safely used to construct a
// backend/cache/driver stack.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.RootPath) == "" {
		return errors.New("root_path is required")
	}
	if cfg.LockTimeoutSeconds <= 0 {
		return errors.New("lock_timeout_seconds must be > 0")
	}
	if cfg.ReadCostPerByte < 0 || cfg.WriteCostPerByte < 0 {
		return errors.New("cost-per-byte rates must be >= 0")
	}
	if cfg.MaxHashDimensions <= 0 {
		return errors.New("max_hash_dimensions must be > 0")
	}
	if cfg.MaxKeySize <= 0 {
		return errors.New("max_key_size must be > 0")
	}
	if cfg.MaxKeySize > 1<<20 {
		return errors.New("max_key_size must be <= 1MiB")
	}
	if cfg.OpenFileBudget <= 0 {
		return errors.New("open_file_budget must be > 0")
	}
	return nil
}

// Load layers a file (if path is non-empty) and STATECORE_-prefixed
// environment variables over Default(), then validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("root_path", def.RootPath)
	v.SetDefault("map_size", def.MapSize)
	v.SetDefault("lock_timeout_seconds", def.LockTimeoutSeconds)
	v.SetDefault("read_cost_per_byte", def.ReadCostPerByte)
	v.SetDefault("write_cost_per_byte", def.WriteCostPerByte)
	v.SetDefault("max_hash_dimensions", def.MaxHashDimensions)
	v.SetDefault("max_key_size", def.MaxKeySize)
	v.SetDefault("open_file_budget", def.OpenFileBudget)

	v.SetEnvPrefix("statecore")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
