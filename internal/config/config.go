// Package config loads floatchat settings with viper.
//
// Precedence: CLI flags > FLOATCHAT_* env vars > project floatchat.yaml >
// XDG global config > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/floatchat/floatchat/internal/llm"
)

const (
	appName  = "floatchat"
	fileName = "floatchat.yaml"
)

// Config holds all configuration values for floatchat.
type Config struct {
	Backend         string                   `mapstructure:"backend" yaml:"backend"`
	Model           string                   `mapstructure:"model" yaml:"model,omitempty"`
	SystemPrompt    string                   `mapstructure:"system_prompt" yaml:"system_prompt"`
	MaxHistory      int                      `mapstructure:"max_history" yaml:"max_history"`
	Temperature     float64                  `mapstructure:"temperature" yaml:"temperature"`
	TopP            float64                  `mapstructure:"top_p" yaml:"top_p"`
	MaxOutputTokens int                      `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	Stream          bool                     `mapstructure:"stream" yaml:"stream"`
	Extend          map[string]string        `mapstructure:"extend" yaml:"extend,omitempty"`
	LogLevel        string                   `mapstructure:"log_level" yaml:"log_level"`
	LogFile         string                   `mapstructure:"log_file" yaml:"log_file,omitempty"`
	Backends        map[string]BackendConfig `mapstructure:"backends" yaml:"backends,omitempty"`
	Serve           ServeConfig              `mapstructure:"serve" yaml:"serve"`
}

// BackendConfig carries per-backend credentials and endpoints. Values may
// use the forms accepted by ResolveValue.
type BackendConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// ServeConfig configures the WebSocket server.
type ServeConfig struct {
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	gen := llm.DefaultGenerationConfig()
	return &Config{
		Backend:         "qwen",
		SystemPrompt:    "## ROLE: you are a ai assistant.",
		MaxHistory:      30,
		Temperature:     1.0,
		TopP:            0.9,
		MaxOutputTokens: gen.MaxOutputTokens,
		Stream:          gen.Stream,
		LogLevel:        "info",
		Serve:           ServeConfig{Addr: "127.0.0.1:8787"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("backend", d.Backend)
	v.SetDefault("model", "")
	v.SetDefault("system_prompt", d.SystemPrompt)
	v.SetDefault("max_history", d.MaxHistory)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("top_p", d.TopP)
	v.SetDefault("max_output_tokens", d.MaxOutputTokens)
	v.SetDefault("stream", d.Stream)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.token", "")
}

// envKeys are bound explicitly so AutomaticEnv also covers keys that have
// no config file entry.
var envKeys = []string{
	"backend", "model", "system_prompt", "max_history", "temperature",
	"top_p", "max_output_tokens", "stream", "log_level", "log_file",
	"serve.addr", "serve.token",
}

// Load reads the global and project config files and the environment.
// A non-empty explicit path replaces both files.
func Load(explicit string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("FLOATCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", explicit, err)
		}
	} else {
		if path := GlobalPath(); fileExists(path) {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading global config: %w", err)
			}
		}
		if path := ProjectPath(); fileExists(path) {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ApplyOverrides applies CLI flag values. Empty values are ignored.
func (c *Config) ApplyOverrides(backend, model, prompt string) {
	if backend != "" && backend != c.Backend {
		c.Backend = backend
		// a model name only makes sense for the backend it was set for
		c.Model = ""
	}
	if model != "" {
		c.Model = model
	}
	if prompt != "" {
		c.SystemPrompt = prompt
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Backend) == "" {
		errs = append(errs, errors.New("backend is required"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature))
	}
	if c.TopP < 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p must be between 0 and 1, got %g", c.TopP))
	}
	if c.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("max_history must be >= 0, got %d", c.MaxHistory))
	}
	if c.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_output_tokens must be > 0, got %d", c.MaxOutputTokens))
	}
	if !c.Stream {
		errs = append(errs, errors.New("stream: false is not supported, every backend streams"))
	}
	return errors.Join(errs...)
}

// Generation builds the per-turn generation parameters.
func (c *Config) Generation() llm.GenerationConfig {
	cfg := llm.GenerationConfig{
		Model:           c.Model,
		Temperature:     float32(c.Temperature),
		TopP:            float32(c.TopP),
		MaxOutputTokens: c.MaxOutputTokens,
		Stream:          c.Stream,
	}
	keys := make([]string, 0, len(c.Extend))
	for k := range c.Extend {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cfg = cfg.WithExtend(k, c.Extend[k])
	}
	return cfg
}

// ProviderOptions resolves the credential and endpoint configured for
// backend. Debug variants share the "debug" entry.
func (c *Config) ProviderOptions(backend string) (llm.ProviderOptions, error) {
	name, _, _ := strings.Cut(strings.ToLower(backend), ":")
	bc, ok := c.Backends[name]
	if !ok {
		return llm.ProviderOptions{}, nil
	}
	key, err := ResolveValue(bc.APIKey)
	if err != nil {
		return llm.ProviderOptions{}, fmt.Errorf("resolve %s api_key: %w", name, err)
	}
	baseURL, err := ResolveValue(bc.BaseURL)
	if err != nil {
		return llm.ProviderOptions{}, fmt.Errorf("resolve %s base_url: %w", name, err)
	}
	return llm.ProviderOptions{APIKey: key, BaseURL: baseURL}, nil
}

// Exists reports whether a global or project config file exists.
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns $XDG_CONFIG_HOME/floatchat/floatchat.yaml, falling
// back to ~/.config.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, fileName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, fileName)
}

// ProjectPath returns the config path in the working directory.
func ProjectPath() string {
	return fileName
}

// WriteGlobal writes cfg to GlobalPath.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return writeFile(path, cfg)
}

// WriteProject writes cfg to ProjectPath.
func WriteProject(cfg *Config) error {
	return writeFile(ProjectPath(), cfg)
}

func writeFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	// may hold api keys
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
