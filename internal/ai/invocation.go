package ai

import "strings"

// Invocation is the resolved, provider-specific call configuration. The set
// of implementations is closed: OpenAIInvocation, AIStudioInvocation and
// BedrockInvocation.
type Invocation interface {
	Provider() Provider
	Spec() ModelSpec
	invocation()
}

type OpenAIInvocation struct {
	ModelSpec
}

type AIStudioInvocation struct {
	ModelSpec
}

type BedrockInvocation struct {
	ModelSpec
}

func (OpenAIInvocation) Provider() Provider   { return ProviderOpenAI }
func (AIStudioInvocation) Provider() Provider { return ProviderAIStudio }
func (BedrockInvocation) Provider() Provider  { return ProviderBedrock }

func (i OpenAIInvocation) Spec() ModelSpec   { return i.ModelSpec }
func (i AIStudioInvocation) Spec() ModelSpec { return i.ModelSpec }
func (i BedrockInvocation) Spec() ModelSpec  { return i.ModelSpec }

func (OpenAIInvocation) invocation()   {}
func (AIStudioInvocation) invocation() {}
func (BedrockInvocation) invocation()  {}

// Resolve maps a provider and catalog model name to its invocation settings.
// An empty model selects the provider default.
func Resolve(provider Provider, model string) (Invocation, error) {
	models, ok := providerModels(provider)
	if !ok {
		return nil, &UnsupportedProviderError{Provider: provider.String(), Valid: Providers()}
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = models.Default
	}

	spec, ok := Lookup(ModelRef{Provider: provider, Model: model})
	if !ok {
		return nil, &UnsupportedModelError{Provider: provider, Model: model, Valid: modelNames(models)}
	}

	switch provider {
	case ProviderAIStudio:
		return AIStudioInvocation{ModelSpec: spec}, nil
	case ProviderBedrock:
		if spec.Region == "" {
			spec.Region = defaultRegion
		}
		return BedrockInvocation{ModelSpec: spec}, nil
	default:
		return OpenAIInvocation{ModelSpec: spec}, nil
	}
}
