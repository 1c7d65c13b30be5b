package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"nthprime/internal/detector"
)

// DetectorConfig selects and configures the primality detector.
type DetectorConfig struct {
	// Mode is auto (witness set plus random fallback), deterministic or probabilistic.
	Mode string `yaml:"mode" validate:"omitempty,oneof=auto deterministic probabilistic"`
	// Witnesses and Ceiling override the built-in witness set. Ceiling is a
	// decimal string; it is required when Witnesses is set.
	Witnesses []uint64 `yaml:"witnesses,omitempty" validate:"omitempty,dive,gte=2"`
	Ceiling   string   `yaml:"ceiling,omitempty" validate:"required_with=Witnesses"`
	Adaptive  bool     `yaml:"adaptive"`
	// Rounds and ErrorBound configure the probabilistic mode.
	Rounds     int     `yaml:"rounds" validate:"gte=0,lte=256"`
	ErrorBound float64 `yaml:"error_bound" validate:"gte=0,lt=1"`
	Seed       int64   `yaml:"seed"`
}

// SearchConfig configures the counting search.
type SearchConfig struct {
	SafetyMultiplier float64 `yaml:"safety_multiplier" validate:"gte=0"`
	ProgressInterval uint64  `yaml:"progress_interval"`
}

// BatchConfig configures concurrent batch computation.
type BatchConfig struct {
	Parallelism int `yaml:"parallelism" validate:"gte=1,lte=1024"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr               string  `yaml:"addr" validate:"required"`
	RateLimit          float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst              int     `yaml:"burst" validate:"gte=0"`
	MaxN               string  `yaml:"max_n"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" validate:"gte=0"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Detector DetectorConfig `yaml:"detector"`
	Search   SearchConfig   `yaml:"search"`
	Batch    BatchConfig    `yaml:"batch"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			if err := applyEnv(cfg); err != nil {
				return nil, err
			}
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/nthprime/config.yaml.
// If neither exists, it writes defaults to ~/.config/nthprime/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints and the detector settings.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Server.parseMaxN(); err != nil {
		return err
	}
	_, err := c.Detector.Policy()
	return err
}

// Policy translates the detector section into a detector.Policy.
func (d DetectorConfig) Policy() (detector.Policy, error) {
	set := detector.DefaultSet()
	if len(d.Witnesses) > 0 {
		ceiling, ok := new(big.Int).SetString(d.Ceiling, 10)
		if !ok || ceiling.Sign() <= 0 {
			return detector.Policy{}, fmt.Errorf("detector.ceiling %q is not a positive integer", d.Ceiling)
		}
		set = detector.WitnessSet{Witnesses: d.Witnesses, Ceiling: ceiling}
	}
	fallback := &detector.Probabilistic{Rounds: d.Rounds, ErrorBound: d.ErrorBound, Seed: d.Seed}

	var p detector.Policy
	switch d.Mode {
	case "auto", "":
		p = detector.Policy{Deterministic: detector.Deterministic{Set: set, Adaptive: d.Adaptive}, Fallback: fallback}
	case "deterministic":
		p = detector.Policy{Deterministic: detector.Deterministic{Set: set, Adaptive: d.Adaptive}}
	case "probabilistic":
		p = detector.Policy{Fallback: fallback}
	default:
		return detector.Policy{}, fmt.Errorf("unknown detector mode %q", d.Mode)
	}
	if _, err := detector.New(p); err != nil {
		return detector.Policy{}, err
	}
	return p, nil
}

// MaxNValue returns the parsed MaxN; nil means unlimited. Validate rejects
// any MaxN it cannot parse.
func (s ServerConfig) MaxNValue() *big.Int {
	v, _ := s.parseMaxN()
	return v
}

func (s ServerConfig) parseMaxN() (*big.Int, error) {
	if s.MaxN == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s.MaxN, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("server.max_n %q is not a positive integer", s.MaxN)
	}
	return v, nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nthprime", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Detector: DetectorConfig{Mode: "auto", ErrorBound: 1e-12, Seed: 1},
		Search:   SearchConfig{SafetyMultiplier: 2, ProgressInterval: 1_000_000},
		Batch:    BatchConfig{Parallelism: 4},
		Log:      LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:               ":8080",
			RateLimit:          10,
			Burst:              20,
			MaxN:               "10000000",
			RequestTimeoutSecs: 60,
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Detector.Mode == "" {
		cfg.Detector.Mode = "auto"
	}
	if cfg.Detector.Mode != "deterministic" && cfg.Detector.Rounds == 0 && cfg.Detector.ErrorBound == 0 {
		cfg.Detector.ErrorBound = 1e-12
	}
	if cfg.Batch.Parallelism == 0 {
		cfg.Batch.Parallelism = 4
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// applyEnv overrides file values with NTHPRIME_* variables.
func applyEnv(cfg *AppConfig) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = strings.ToLower(strings.TrimSpace(v))
		}
	}
	str("NTHPRIME_DETECTOR_MODE", &cfg.Detector.Mode)
	str("NTHPRIME_LOG_LEVEL", &cfg.Log.Level)
	str("NTHPRIME_LOG_FORMAT", &cfg.Log.Format)
	str("NTHPRIME_SERVER_ADDR", &cfg.Server.Addr)
	str("NTHPRIME_SERVER_MAX_N", &cfg.Server.MaxN)

	if v, ok := os.LookupEnv("NTHPRIME_SAFETY_MULTIPLIER"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("NTHPRIME_SAFETY_MULTIPLIER: %w", err)
		}
		cfg.Search.SafetyMultiplier = f
	}
	if v, ok := os.LookupEnv("NTHPRIME_BATCH_PARALLELISM"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NTHPRIME_BATCH_PARALLELISM: %w", err)
		}
		cfg.Batch.Parallelism = n
	}
	if v, ok := os.LookupEnv("NTHPRIME_DETECTOR_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("NTHPRIME_DETECTOR_SEED: %w", err)
		}
		cfg.Detector.Seed = n
	}
	return nil
}
