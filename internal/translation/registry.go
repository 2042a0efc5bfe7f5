package translation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/glossian/internal/config"
)

// Registry stores translation providers by engine and resolves the configured one.
type Registry struct {
	providers     map[Engine]Provider
	defaultEngine Engine
}

func NewRegistry(defaultEngine Engine) *Registry {
	return &Registry{
		providers:     make(map[Engine]Provider),
		defaultEngine: defaultEngine,
	}
}

// NewRegistryFromConfig builds every adapter the configuration allows. google and
// deepl are always available (deepl falls back to keyless mode); chatgpt needs an
// API key. An unknown TRANSLATION_ENGINE, or a default engine that cannot be built,
// is a configuration error.
func NewRegistryFromConfig(cfg *config.Config, logger zerolog.Logger) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	defaultEngine, err := ParseEngine(cfg.TranslationEngine)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry(defaultEngine)
	limit := func(p Provider) Provider {
		return RateLimited(p, rate.NewLimiter(rate.Limit(cfg.TranslationRatePerSecond), cfg.TranslationBurst))
	}

	if err := registry.Register(limit(NewGoogleProvider("", cfg.TranslationTimeout, logger))); err != nil {
		return nil, err
	}
	if err := registry.Register(limit(NewDeepLProvider(cfg.DeepLAPIKey, cfg.TranslationTimeout, logger))); err != nil {
		return nil, err
	}

	chat, err := NewChatGPTProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.TranslationTimeout, logger)
	switch {
	case err == nil:
		if err := registry.Register(limit(chat)); err != nil {
			return nil, err
		}
	case defaultEngine == EngineChatGPT:
		return nil, err
	default:
		logger.Debug().Err(err).Msg("chatgpt engine disabled")
	}

	return registry, nil
}

// Register adds one provider, replacing any provider for the same engine.
func (r *Registry) Register(provider Provider) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	if !provider.Engine().Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownEngine, int(provider.Engine()))
	}
	r.providers[provider.Engine()] = provider
	return nil
}

// Provider resolves the adapter for engine.
func (r *Registry) Provider(engine Engine) (Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	provider, ok := r.providers[engine]
	if ok {
		return provider, nil
	}
	return nil, fmt.Errorf("%w: %s is not registered (available: %s)", ErrUnknownEngine, engine, strings.Join(r.EngineNames(), ", "))
}

// Default resolves the adapter for the configured engine.
func (r *Registry) Default() (Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	return r.Provider(r.defaultEngine)
}

func (r *Registry) DefaultEngine() Engine {
	if r == nil {
		return EngineGoogle
	}
	return r.defaultEngine
}

func (r *Registry) Engines() []Engine {
	if r == nil {
		return nil
	}
	out := make([]Engine, 0, len(r.providers))
	for engine := range r.providers {
		out = append(out, engine)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) EngineNames() []string {
	engines := r.Engines()
	names := make([]string, 0, len(engines))
	for _, engine := range engines {
		names = append(names, engine.String())
	}
	return names
}

// EngineInfo describes one registered engine for listings.
type EngineInfo struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Policy    string   `json:"policy"`
	Default   bool     `json:"default"`
	Languages []string `json:"languages"`
}

func (r *Registry) Describe() []EngineInfo {
	engines := r.Engines()
	out := make([]EngineInfo, 0, len(engines))
	for _, engine := range engines {
		provider := r.providers[engine]
		out = append(out, EngineInfo{
			ID:        int(engine),
			Name:      engine.String(),
			Policy:    PolicyFor(engine).String(),
			Default:   engine == r.defaultEngine,
			Languages: provider.SupportedLanguages(),
		})
	}
	return out
}
