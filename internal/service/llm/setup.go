package llm

import (
	"fmt"
	"log/slog"

	"threadsim/internal/config"
	"threadsim/internal/domain"
	"threadsim/internal/service/llm/providers/lorem"
	"threadsim/internal/service/llm/providers/together"
)

// SetupProviders builds the provider registry from configuration. The
// lorem mock provider is always available so the service runs without
// API keys; the Together provider is added only when a key is configured.
//
// A default provider that cannot be served is reported as an error here,
// before any prompt is issued, alongside the partially-built registry so
// callers can keep running in a degraded mode and surface the
// configuration problem to clients.
func SetupProviders(cfg *config.Config, logger *slog.Logger) (*ProviderRegistry, error) {
	registry := NewProviderRegistry()

	if cfg.TogetherAPIKey != "" {
		p, err := together.NewProvider(together.Config{
			APIKey:  cfg.TogetherAPIKey,
			BaseURL: cfg.TogetherBaseURL,
			Model:   cfg.DefaultModel,
		})
		if err != nil {
			return nil, fmt.Errorf("setup together provider: %w", err)
		}
		registry.Register(p)
		logger.Info("llm provider registered", "provider", p.Name(), "base_url", cfg.TogetherBaseURL)
	} else {
		logger.Warn("TOGETHER_API_KEY not set, together provider disabled")
	}

	registry.Register(lorem.NewProvider())
	logger.Info("llm provider registered", "provider", "lorem")

	if _, err := registry.ByName(cfg.DefaultProvider); err != nil {
		return registry, &domain.UnavailableError{
			Message: fmt.Sprintf("default provider %q is not configured (missing API key?)", cfg.DefaultProvider),
		}
	}

	return registry, nil
}
