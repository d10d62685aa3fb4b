package provider

import (
	"os"

	"github.com/ChamsBouzaiene/modelarena/internal/logger"
)

// Registry is the immutable lookup table of configured adapters. It is
// built once at startup and passed by reference; there is no runtime
// registration.
type Registry struct {
	adapters []Adapter
	byModel  map[string]Adapter
}

// NewRegistry builds a registry from the given adapters. If two adapters
// claim the same model id, the first one wins.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: adapters,
		byModel:  make(map[string]Adapter),
	}
	for _, a := range adapters {
		for _, m := range a.Models() {
			if _, taken := r.byModel[m.ID]; !taken {
				r.byModel[m.ID] = a
			}
		}
	}
	return r
}

// NewRegistryFromEnv configures one adapter per vendor whose API key is
// present in the environment. A missing credential silently omits that
// vendor's models rather than failing startup.
func NewRegistryFromEnv() *Registry {
	var adapters []Adapter

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		adapters = append(adapters, NewOpenAIAdapter("openai", key, os.Getenv("OPENAI_BASE_URL"), []string{
			"gpt-4o",
			"gpt-4o-mini",
			"gpt-4-turbo",
		}))
		logger.Info("provider registered", "provider", "openai")
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		adapters = append(adapters, NewAnthropicAdapter(key, []string{
			"claude-3-5-sonnet-20241022",
			"claude-3-5-haiku-20241022",
			"claude-3-opus-20240229",
		}))
		logger.Info("provider registered", "provider", "anthropic")
	}

	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		adapters = append(adapters, NewOpenAIAdapter("groq", key, "https://api.groq.com/openai/v1", []string{
			"llama-3.1-70b-versatile",
			"llama-3.1-8b-instant",
		}))
		logger.Info("provider registered", "provider", "groq")
	}

	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		adapters = append(adapters, NewOpenAIAdapter("deepseek", key, "https://api.deepseek.com/v1", []string{
			"deepseek-chat",
		}))
		logger.Info("provider registered", "provider", "deepseek")
	}

	if len(adapters) == 0 {
		logger.Warn("no provider credentials found, model registry is empty")
	}

	return NewRegistry(adapters...)
}

// Resolve returns the adapter serving the given model id.
func (r *Registry) Resolve(modelID string) (Adapter, bool) {
	a, ok := r.byModel[modelID]
	return a, ok
}

// List enumerates every available model with pricing metadata.
func (r *Registry) List() []ModelInfo {
	var infos []ModelInfo
	for _, a := range r.adapters {
		infos = append(infos, a.Models()...)
	}
	return infos
}
