package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/gdid/pkg/gdid"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// Location kinds.
const (
	KindPebble = "pebble"
	KindBolt   = "bolt"
	KindS3     = "s3"
	KindMemory = "memory"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// NameRegex validates scope and sequence names.
	NameRegex string          `json:"nameRegex" yaml:"nameRegex"`
	Authority AuthorityConfig `json:"authority" yaml:"authority"`
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
	Log       logpkg.Config   `json:"log" yaml:"log"`
}

// AuthorityConfig configures the block-allocating server.
type AuthorityConfig struct {
	// Name is reported as the issuer of every block. Defaults to the host name.
	Name          string           `json:"name" yaml:"name"`
	CounterMax    uint64           `json:"counterMax" yaml:"counterMax"`
	MaxBlockSize  int              `json:"maxBlockSize" yaml:"maxBlockSize"`
	CallTimeoutMs int              `json:"callTimeoutMs" yaml:"callTimeoutMs"`
	Locations     []LocationConfig `json:"locations" yaml:"locations"`
}

// LocationConfig describes one redundant counter store. Relative paths are
// resolved against the data directory.
type LocationConfig struct {
	Name string `json:"name" yaml:"name"`
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// s3 only
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Secure   bool   `json:"secure,omitempty" yaml:"secure,omitempty"`
}

// GeneratorConfig configures client-side generation.
type GeneratorConfig struct {
	// Authority is the host:port of the Authority gRPC endpoint.
	Authority        string `json:"authority" yaml:"authority"`
	DefaultBlockSize int    `json:"defaultBlockSize" yaml:"defaultBlockSize"`
	// LowWaterMark is the fraction of a block left when background refill starts.
	LowWaterMark    float64 `json:"lowWaterMark" yaml:"lowWaterMark"`
	RetryCount      int     `json:"retryCount" yaml:"retryCount"`
	RetryIntervalMs int     `json:"retryIntervalMs" yaml:"retryIntervalMs"`
	CallTimeoutMs   int     `json:"callTimeoutMs" yaml:"callTimeoutMs"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		NameRegex: gdid.DefaultNamePattern,
		Authority: AuthorityConfig{
			CounterMax:    gdid.DefaultCounterMax,
			MaxBlockSize:  1_000_000,
			CallTimeoutMs: 5000,
			Locations: []LocationConfig{
				{Name: "primary", Kind: KindPebble, Path: filepath.Join("locations", "primary")},
				{Name: "secondary", Kind: KindBolt, Path: filepath.Join("locations", "secondary.db")},
			},
		},
		Generator: GeneratorConfig{
			Authority:        "127.0.0.1:50051",
			DefaultBlockSize: 1024,
			LowWaterMark:     0.25,
			RetryCount:       5,
			RetryIntervalMs:  200,
			CallTimeoutMs:    5000,
		},
		Log: logpkg.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return cfg, nil
}

// WriteYAML writes cfg to path, refusing to overwrite an existing file.
func WriteYAML(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Validate reports the first inconsistency in cfg.
func (c Config) Validate() error {
	if _, err := gdid.NewNameValidator(c.NameRegex); err != nil {
		return err
	}
	a := c.Authority
	if a.CounterMax == 0 || a.CounterMax == math.MaxUint64 {
		return errors.New("config: authority.counterMax must be in (0, 2^64-1)")
	}
	if a.MaxBlockSize <= 0 {
		return errors.New("config: authority.maxBlockSize must be positive")
	}
	if len(a.Locations) == 0 {
		return errors.New("config: authority.locations must not be empty")
	}
	seen := make(map[string]struct{}, len(a.Locations))
	for i, l := range a.Locations {
		if l.Name == "" {
			return fmt.Errorf("config: authority.locations[%d]: name is required", i)
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("config: duplicate location %q", l.Name)
		}
		seen[l.Name] = struct{}{}
		switch l.Kind {
		case KindPebble, KindBolt:
			if l.Path == "" {
				return fmt.Errorf("config: location %q: path is required", l.Name)
			}
		case KindS3:
			if l.Endpoint == "" || l.Bucket == "" {
				return fmt.Errorf("config: location %q: endpoint and bucket are required", l.Name)
			}
		case KindMemory:
		default:
			return fmt.Errorf("config: location %q: unknown kind %q", l.Name, l.Kind)
		}
	}
	g := c.Generator
	if g.LowWaterMark < 0 || g.LowWaterMark >= 1 {
		return errors.New("config: generator.lowWaterMark must be in [0, 1)")
	}
	if g.DefaultBlockSize <= 0 {
		return errors.New("config: generator.defaultBlockSize must be positive")
	}
	if g.RetryCount < 1 {
		return errors.New("config: generator.retryCount must be at least 1")
	}
	return nil
}

// CallTimeout is the per-Location I/O timeout on the Authority.
func (a AuthorityConfig) CallTimeout() time.Duration {
	return time.Duration(a.CallTimeoutMs) * time.Millisecond
}

// CallTimeout is the per-Authority-call timeout on the Generator.
func (g GeneratorConfig) CallTimeout() time.Duration {
	return time.Duration(g.CallTimeoutMs) * time.Millisecond
}

// RetryInterval is the base delay between Generator retries.
func (g GeneratorConfig) RetryInterval() time.Duration {
	return time.Duration(g.RetryIntervalMs) * time.Millisecond
}

