package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type stubGeminiModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (s *stubGeminiModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.model = model
	s.contents = contents
	s.config = config
	return s.resp, s.err
}

func geminiText(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 4, TotalTokenCount: 14},
	}
}

func TestGeminiClient_MapsRolesAndSearchTool(t *testing.T) {
	stub := &stubGeminiModels{resp: geminiText("Olá! ")}
	client := newGeminiClientWithAPI(stub, "google/gemini-2.5-pro")

	resp, err := client.Complete(context.Background(), Request{
		System: "system prompt",
		History: []Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "reply"},
			{Role: RoleSystem, Content: "extra rule"},
		},
		UserMessage: "latest",
		MaxTokens:   512,
		Temperature: 0.2,
		WebSearch:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Olá!", resp.Text)
	assert.Equal(t, int32(14), resp.Usage.TotalTokens)
	assert.Equal(t, "gemini-2.5-pro", stub.model)

	require.Len(t, stub.contents, 3)
	assert.Equal(t, string(genai.RoleUser), stub.contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), stub.contents[1].Role)
	assert.Equal(t, "latest", stub.contents[2].Parts[0].Text)

	require.NotNil(t, stub.config.SystemInstruction)
	assert.Equal(t, "system prompt\n\nextra rule", stub.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(512), stub.config.MaxOutputTokens)
	require.Len(t, stub.config.Tools, 1)
	assert.NotNil(t, stub.config.Tools[0].GoogleSearch)
}

func TestGeminiClient_NoToolsWithoutSearch(t *testing.T) {
	stub := &stubGeminiModels{resp: geminiText("ok")}
	client := newGeminiClientWithAPI(stub, "")

	_, err := client.Complete(context.Background(), Request{UserMessage: "hi", Temperature: -1})
	require.NoError(t, err)
	assert.Empty(t, stub.config.Tools)
	assert.Nil(t, stub.config.Temperature)
	assert.Equal(t, "gemini-2.5-flash", stub.model)
}

func TestGeminiClient_FailureTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"quota", genai.APIError{Code: 429, Message: "Resource has been exhausted", Status: "RESOURCE_EXHAUSTED"}, ErrRateLimited},
		{"bad key", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key.", Status: "INVALID_ARGUMENT"}, ErrAuthInvalid},
		{"unauthenticated", genai.APIError{Code: 401, Message: "unauthenticated", Status: "UNAUTHENTICATED"}, ErrAuthInvalid},
		{"internal", genai.APIError{Code: 500, Message: "internal", Status: "INTERNAL"}, ErrUnavailable},
		{"network", context.DeadlineExceeded, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newGeminiClientWithAPI(&stubGeminiModels{err: tt.err}, "")
			_, err := client.Complete(context.Background(), Request{UserMessage: "hi"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	client := newGeminiClientWithAPI(&stubGeminiModels{resp: &genai.GenerateContentResponse{}}, "")
	_, err := client.Complete(context.Background(), Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), " ", "", nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestGeminiClient_StructuredReply(t *testing.T) {
	stub := &stubGeminiModels{resp: geminiText(`{"message":"ok","action":null}`)}
	client := newGeminiClientWithAPI(stub, "")
	reply := &ReplySchema{Name: "reply", Schema: []byte(`{"type":"object"}`)}

	assert.True(t, SupportsStructuredReply(client, Request{}))
	assert.False(t, SupportsStructuredReply(client, Request{WebSearch: true}))

	resp, err := client.Complete(context.Background(), Request{UserMessage: "hi", Temperature: -1, Reply: reply})
	require.NoError(t, err)
	assert.True(t, resp.Structured)
	assert.Equal(t, "application/json", stub.config.ResponseMIMEType)

	resp, err = client.Complete(context.Background(), Request{UserMessage: "hi", Temperature: -1, Reply: reply, WebSearch: true})
	require.NoError(t, err)
	assert.False(t, resp.Structured, "search turns fall back to plain text")
	assert.Empty(t, stub.config.ResponseMIMEType)
}
