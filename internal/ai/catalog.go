package ai

import (
	"slices"
	"strings"
)

type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderAIStudio Provider = "ai_studio"
	ProviderBedrock  Provider = "bedrock"
)

const (
	defaultTemperature = 0.7
	defaultRegion      = "ap-northeast-1"
)

func (p Provider) String() string { return string(p) }

// ModelSpec is a catalog entry.
type ModelSpec struct {
	Name        string  `yaml:"name"`
	ModelID     string  `yaml:"model_id"`
	Temperature float32 `yaml:"temperature"`
	Region      string  `yaml:"region,omitempty"`
	Description string  `yaml:"description"`
}

// ProviderModels is the ordered model list of one provider.
type ProviderModels struct {
	Provider Provider    `yaml:"provider"`
	Default  string      `yaml:"default"`
	Models   []ModelSpec `yaml:"models"`
}

// ModelRef names a catalog entry.
type ModelRef struct {
	Provider Provider `yaml:"provider"`
	Model    string   `yaml:"model"`
}

var catalog = []ProviderModels{
	{
		Provider: ProviderOpenAI,
		Default:  "gpt4o_mini",
		Models: []ModelSpec{
			{Name: "gpt4o_mini", ModelID: "gpt-4o-mini", Temperature: defaultTemperature, Description: "OpenAI GPT-4o mini"},
			{Name: "gpt4o", ModelID: "gpt-4o", Temperature: defaultTemperature, Description: "OpenAI GPT-4o, highest quality"},
			{Name: "gpt35_turbo", ModelID: "gpt-3.5-turbo", Temperature: defaultTemperature, Description: "OpenAI GPT-3.5 Turbo, fast"},
		},
	},
	{
		Provider: ProviderAIStudio,
		Default:  "gemini_pro",
		Models: []ModelSpec{
			{Name: "gemini_flash", ModelID: "gemini-flash-latest", Temperature: defaultTemperature, Description: "Gemini Flash latest, fastest"},
			{Name: "gemini_pro", ModelID: "gemini-pro-latest", Temperature: defaultTemperature, Description: "Gemini Pro latest"},
			{Name: "gemini_20_flash", ModelID: "gemini-2.0-flash", Temperature: defaultTemperature, Description: "Gemini 2.0 Flash, stable"},
			{Name: "gemini_25_flash", ModelID: "gemini-2.5-flash", Temperature: defaultTemperature, Description: "Gemini 2.5 Flash"},
		},
	},
	{
		Provider: ProviderBedrock,
		Default:  "claude_haiku",
		Models: []ModelSpec{
			{Name: "claude_haiku", ModelID: "anthropic.claude-3-haiku-20240307-v1:0", Temperature: defaultTemperature, Region: defaultRegion, Description: "Bedrock Claude 3 Haiku, fastest"},
			{Name: "claude_sonnet", ModelID: "anthropic.claude-3-sonnet-20240229-v1:0", Temperature: defaultTemperature, Region: defaultRegion, Description: "Bedrock Claude 3 Sonnet, balanced"},
			{Name: "titan_text", ModelID: "amazon.titan-text-express-v1", Temperature: defaultTemperature, Region: defaultRegion, Description: "Bedrock Titan Text Express"},
			{Name: "titan_text_lite", ModelID: "amazon.titan-text-lite-v1", Temperature: defaultTemperature, Region: defaultRegion, Description: "Bedrock Titan Text Lite"},
		},
	},
}

// speedRanking is an estimate, fastest first.
var speedRanking = []ModelRef{
	{ProviderAIStudio, "gemini_flash"},
	{ProviderBedrock, "claude_haiku"},
	{ProviderAIStudio, "gemini_pro"},
	{ProviderBedrock, "titan_text_lite"},
	{ProviderBedrock, "titan_text"},
	{ProviderOpenAI, "gpt35_turbo"},
	{ProviderBedrock, "claude_sonnet"},
	{ProviderOpenAI, "gpt4o_mini"},
	{ProviderOpenAI, "gpt4o"},
}

// Catalog returns a copy of the known providers and their models.
func Catalog() []ProviderModels {
	out := make([]ProviderModels, 0, len(catalog))
	for _, p := range catalog {
		p.Models = slices.Clone(p.Models)
		out = append(out, p)
	}
	return out
}

// SpeedRanking returns the catalog entries ordered from fastest to slowest.
func SpeedRanking() []ModelRef {
	return slices.Clone(speedRanking)
}

// Providers returns the known provider names in catalog order.
func Providers() []string {
	names := make([]string, 0, len(catalog))
	for _, p := range catalog {
		names = append(names, p.Provider.String())
	}
	return names
}

// Lookup finds the catalog entry for ref.
func Lookup(ref ModelRef) (ModelSpec, bool) {
	models, ok := providerModels(ref.Provider)
	if !ok {
		return ModelSpec{}, false
	}
	for _, spec := range models.Models {
		if spec.Name == ref.Model {
			return spec, true
		}
	}
	return ModelSpec{}, false
}

func providerModels(p Provider) (ProviderModels, bool) {
	for _, models := range catalog {
		if models.Provider == p {
			return models, true
		}
	}
	return ProviderModels{}, false
}

func modelNames(models ProviderModels) []string {
	names := make([]string, 0, len(models.Models))
	for _, spec := range models.Models {
		names = append(names, spec.Name)
	}
	return names
}

// ParseProvider normalises a user-supplied provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProviderOpenAI, nil
	}
	if _, ok := providerModels(p); !ok {
		return "", &UnsupportedProviderError{Provider: s, Valid: Providers()}
	}
	return p, nil
}
