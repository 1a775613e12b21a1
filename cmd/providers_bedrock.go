//go:build bedrock

package cmd

import (
	"go.uber.org/zap"

	"github.com/spigell/ses-matcher/internal/ai"
	"github.com/spigell/ses-matcher/internal/ai/bedrock"
)

func init() {
	providers = append(providers, providerFactory{
		provider: ai.ProviderBedrock,
		factory: func(cfg *Config, logger *zap.Logger) (ai.Factory, error) {
			return bedrock.NewFactory(cfg.Bedrock.Region, logger), nil
		},
	})
}
