package llm

import "testing"

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		provider   string
		configured string
		want       string
	}{
		{ProviderOpenAI, "openai/gpt-4o", "gpt-4o"},
		{ProviderOpenAI, "gpt-4.1-mini", "gpt-4.1-mini"},
		{ProviderOpenAI, "", "gpt-4o-mini"},
		{ProviderOpenAI, "gemini-2.5-pro", "gpt-4o-mini"},
		{ProviderGemini, "google/gemini-2.5-pro", "gemini-2.5-pro"},
		{ProviderGemini, "models/gemini-2.0-flash", "gemini-2.0-flash"},
		{ProviderGemini, "  ", "gemini-2.5-flash"},
		{ProviderGemini, "gpt-4o", "gemini-2.5-flash"},
		{ProviderBedrock, "anthropic.claude-3-5-sonnet-20240620-v1:0", "anthropic.claude-3-5-sonnet-20240620-v1:0"},
		{ProviderBedrock, "claude", "anthropic.claude-3-5-haiku-20241022-v1:0"},
		{"unknown", "anything", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.configured, func(t *testing.T) {
			if got := NormalizeModel(tt.provider, tt.configured); got != tt.want {
				t.Fatalf("NormalizeModel(%q, %q) = %q, want %q", tt.provider, tt.configured, got, tt.want)
			}
		})
	}
}
