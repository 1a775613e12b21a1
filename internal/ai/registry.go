package ai

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/logger"
)

// Factory builds a client for a resolved invocation.
type Factory func(ctx context.Context, inv Invocation) (Client, error)

// Registry records which providers are compiled in and configured.
type Registry struct {
	mu        sync.RWMutex
	factories map[Provider]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[Provider]Factory)}
}

func (r *Registry) Register(p Provider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[p] = f
}

func (r *Registry) Lookup(p Provider) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[p]
	return f, ok
}

// Available reports whether p has a registered factory.
func (r *Registry) Available(p Provider) bool {
	_, ok := r.Lookup(p)
	return ok
}

// FallbackModel is used when the requested provider is not available.
var FallbackModel = ModelRef{Provider: ProviderOpenAI, Model: "gpt4o_mini"}

// Selector resolves (provider, model) pairs into clients.
type Selector struct {
	registry *Registry
	logger   *zap.Logger
}

func NewSelector(registry *Registry, log *zap.Logger) *Selector {
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{registry: registry, logger: log}
}

// Client returns a client for the given provider and model. Unknown names
// fail. A known provider without a registered factory falls back to
// FallbackModel.
func (s *Selector) Client(ctx context.Context, provider, model string) (Client, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return nil, err
	}

	inv, err := Resolve(p, model)
	if err != nil {
		return nil, err
	}

	factory, ok := s.registry.Lookup(p)
	if !ok {
		s.logger.Warn("llm provider is not available, falling back",
			zap.String("requested_provider", p.String()),
			zap.String("requested_model", inv.Spec().Name),
			zap.String("fallback_provider", FallbackModel.Provider.String()),
			zap.String("fallback_model", FallbackModel.Model),
		)

		inv, err = Resolve(FallbackModel.Provider, FallbackModel.Model)
		if err != nil {
			return nil, err
		}

		factory, ok = s.registry.Lookup(FallbackModel.Provider)
		if !ok {
			return nil, fmt.Errorf("fallback provider %s is not registered", FallbackModel.Provider)
		}
	}

	client, err := factory(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", inv.Provider(), err)
	}

	s.logger.Info("llm client ready", logger.LLMFields(inv.Provider().String(), inv.Spec().ModelID)...)

	return client, nil
}
