package cmd

import (
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/ai"
	"github.com/spigell/ses-matcher/internal/ai/gemini"
	"github.com/spigell/ses-matcher/internal/ai/openai"
	"github.com/spigell/ses-matcher/internal/secrets"
)

// providerFactory builds the registry entry for one provider from the config.
type providerFactory struct {
	provider ai.Provider
	factory  func(cfg *Config, logger *zap.Logger) (ai.Factory, error)
}

// providers lists the providers compiled into the binary. Optional ones
// append themselves from build-tagged files.
var providers = []providerFactory{
	{provider: ai.ProviderOpenAI, factory: openAIFactory},
	{provider: ai.ProviderAIStudio, factory: geminiFactory},
}

func openAIFactory(cfg *Config, logger *zap.Logger) (ai.Factory, error) {
	key, err := optionalSecret(secrets.Source{
		Name:  "openai api key",
		Value: cfg.OpenAI.APIKey,
		File:  cfg.OpenAI.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}
	return openai.NewFactory(openai.Config{APIKey: key, BaseURL: cfg.OpenAI.BaseURL}, logger), nil
}

func geminiFactory(cfg *Config, logger *zap.Logger) (ai.Factory, error) {
	key, err := optionalSecret(secrets.Source{
		Name:  "google api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}
	return gemini.NewFactory(key, logger), nil
}
