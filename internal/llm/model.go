package llm

import "strings"

var defaultModels = map[string]string{
	ProviderOpenAI:  "gpt-4o-mini",
	ProviderGemini:  "gemini-2.5-flash",
	ProviderBedrock: "anthropic.claude-3-5-haiku-20241022-v1:0",
}

var modelFamilies = map[string][]string{
	ProviderOpenAI:  {"gpt-", "o1", "o3", "o4", "chatgpt-"},
	ProviderGemini:  {"gemini-"},
	ProviderBedrock: {"anthropic.", "us.anthropic.", "eu.anthropic.", "amazon.", "meta.", "mistral.", "cohere."},
}

// DefaultModel returns the fallback model id for a provider.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// NormalizeModel strips any namespace prefix ("vendor/model") from the
// configured model and falls back to the provider default when the result is
// empty or not a model of that provider's family.
func NormalizeModel(provider, configured string) string {
	model := strings.TrimSpace(configured)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	if model == "" {
		return DefaultModel(provider)
	}
	lower := strings.ToLower(model)
	for _, prefix := range modelFamilies[provider] {
		if strings.HasPrefix(lower, prefix) {
			return model
		}
	}
	return DefaultModel(provider)
}
