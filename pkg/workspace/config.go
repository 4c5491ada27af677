package workspace

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/justindra/yaks/pkg/engine"
)

// ConfigFile is the workspace config file name inside the state directory.
const ConfigFile = "config.toml"

// Store kinds for the local snapshot store.
const (
	StoreGit   = "git"
	StoreFiles = "files"
	StoreBolt  = "bolt"
)

// Remote kinds.
const (
	RemoteNone = ""
	RemoteGit  = "git"
	RemoteHTTP = "http"
	RemoteDir  = "dir"
)

// Config holds workspace settings.
type Config struct {
	Ref        string       `toml:"ref"`
	Author     string       `toml:"author"`
	Store      string       `toml:"store"`
	SigningKey string       `toml:"signing_key,omitempty"`
	Remote     RemoteConfig `toml:"remote"`
	Sync       SyncConfig   `toml:"sync"`
}

// RemoteConfig selects where yaks are shared.
type RemoteConfig struct {
	Kind string `toml:"kind"`
	Name string `toml:"name,omitempty"` // git remote name
	URL  string `toml:"url,omitempty"`  // http endpoint or directory path
}

// SyncConfig bounds sync retries.
type SyncConfig struct {
	MaxAttempts      int `toml:"max_attempts"`
	TransientRetries int `toml:"transient_retries"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads path. A missing file yields DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("read config: parse %s: %w", path, err)
		}
	}

	cfg.expandEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	c.Ref = os.ExpandEnv(c.Ref)
	c.Author = os.ExpandEnv(c.Author)
	c.SigningKey = os.ExpandEnv(c.SigningKey)
	c.Remote.Name = os.ExpandEnv(c.Remote.Name)
	c.Remote.URL = os.ExpandEnv(c.Remote.URL)
}

func (c *Config) applyDefaults() {
	if c.Ref == "" {
		c.Ref = engine.DefaultRef
	}
	if c.Store == "" {
		c.Store = StoreFiles
	}
	if c.Remote.Kind == RemoteGit && c.Remote.Name == "" {
		c.Remote.Name = "origin"
	}
	if c.Sync.MaxAttempts == 0 {
		c.Sync.MaxAttempts = engine.DefaultMaxAttempts
	}
	if c.Sync.TransientRetries == 0 {
		c.Sync.TransientRetries = 3
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Ref, "refs/") {
		return fmt.Errorf("ref must start with refs/: %s", c.Ref)
	}
	switch c.Store {
	case StoreGit, StoreFiles, StoreBolt:
	default:
		return fmt.Errorf("invalid store: %s (must be git, files, or bolt)", c.Store)
	}
	switch c.Remote.Kind {
	case RemoteNone:
	case RemoteGit:
		if c.Store != StoreGit {
			return fmt.Errorf("remote.kind git requires store = %q", StoreGit)
		}
	case RemoteHTTP, RemoteDir:
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url is required for remote.kind %s", c.Remote.Kind)
		}
	default:
		return fmt.Errorf("invalid remote.kind: %s (must be git, http, dir, or empty)", c.Remote.Kind)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be positive: %d", c.Sync.MaxAttempts)
	}
	if c.Sync.TransientRetries < 1 {
		return fmt.Errorf("sync.transient_retries must be positive: %d", c.Sync.TransientRetries)
	}
	return nil
}

// WriteConfig atomically writes cfg to path.
func WriteConfig(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	return writeFileAtomic(path, buf.Bytes(), ".config-tmp-*")
}

func writeFileAtomic(path string, data []byte, pattern string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), pattern)
	if err != nil {
		return fmt.Errorf("write %s: tmpfile: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: close: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: rename: %w", filepath.Base(path), err)
	}
	return nil
}
