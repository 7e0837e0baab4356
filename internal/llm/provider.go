package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
)

// Provider is a text-generation backend. Chat validates its configuration,
// opens the request and returns the consumer side of the response stream.
// Fragments arrive in order, followed by an end marker (a message with
// empty content) or a single error.
type Provider interface {
	Name() string
	Chat(ctx context.Context, cfg GenerationConfig, history []Message) (*Response, error)
}

// ProviderOptions are passed to every Factory. Fields left empty fall back
// to provider defaults; an empty APIKey is read from the provider's
// environment variable.
type ProviderOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (o ProviderOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// apiKeyOrEnv returns key, or the value of envVar when key is empty.
func apiKeyOrEnv(key, envVar string) string {
	if strings.TrimSpace(key) != "" {
		return key
	}
	return os.Getenv(envVar)
}

// Factory builds a provider from options.
type Factory func(opts ProviderOptions) (Provider, error)

// Registry maps backend names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in backend. Debug
// variants are registered as "debug:<variant>".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("coze", func(o ProviderOptions) (Provider, error) { return NewCozeProvider(o), nil })
	r.Register("qwen", func(o ProviderOptions) (Provider, error) { return NewQwenProvider(o), nil })
	r.Register("openrouter", func(o ProviderOptions) (Provider, error) { return NewOpenRouterProvider(o), nil })
	r.Register("openai", func(o ProviderOptions) (Provider, error) { return NewOpenAIProvider(o), nil })
	r.Register("anthropic", func(o ProviderOptions) (Provider, error) { return NewAnthropicProvider(o), nil })
	r.Register("gemini", func(o ProviderOptions) (Provider, error) { return NewGeminiProvider(o), nil })
	r.Register("debug", func(o ProviderOptions) (Provider, error) { return NewDebugProvider(""), nil })
	for _, variant := range DebugVariants() {
		variant := variant
		r.Register("debug:"+variant, func(o ProviderOptions) (Provider, error) { return NewDebugProvider(variant), nil })
	}
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// New builds the named provider.
func (r *Registry) New(name string, opts ProviderOptions) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{
			Provider: name,
			Reason:   fmt.Sprintf("unknown backend (available: %s)", strings.Join(r.Names(), ", ")),
		}
	}
	p, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", name, err)
	}
	return p, nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
