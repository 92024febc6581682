package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type geminiModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements Client using the Gemini API. It is the only
// backend that supports the web search tool.
type GeminiClient struct {
	models geminiModelsAPI
	model  string
}

// NewGeminiClient creates a Gemini client for one tenant's API key.
func NewGeminiClient(ctx context.Context, apiKey, model string, httpClient *http.Client) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, configurationError(ProviderGemini, "api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, configurationError(ProviderGemini, "create client: %v", err)
	}
	return newGeminiClientWithAPI(client.Models, model), nil
}

func newGeminiClientWithAPI(models geminiModelsAPI, model string) *GeminiClient {
	return &GeminiClient{models: models, model: NormalizeModel(ProviderGemini, model)}
}

func (c *GeminiClient) Name() string {
	return ProviderGemini
}

// SupportsStructuredReply is false when web search is requested: the search
// tool cannot be combined with JSON output.
func (c *GeminiClient) SupportsStructuredReply(req Request) bool {
	return !req.WebSearch
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := c.model
	if req.Model != "" {
		model = NormalizeModel(ProviderGemini, req.Model)
	}

	systemParts := []string{}
	if s := strings.TrimSpace(req.System); s != "" {
		systemParts = append(systemParts, s)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(content, genai.RoleUser))
		}
	}
	contents = append(contents, genai.NewContentFromText(req.UserMessage, genai.RoleUser))

	config := &genai.GenerateContentConfig{}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}
	if req.Temperature >= 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	structured := false
	switch {
	case req.WebSearch:
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case req.Reply != nil:
		// JSON mode only; the reply shape is carried by the system prompt
		// because Gemini schemas cannot express a free-form payload object.
		config.ResponseMIMEType = "application/json"
		structured = true
	}

	resp, err := c.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return Response{}, classifyGeminiError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Response{}, unavailable(ProviderGemini, errors.New("response contained no candidates"))
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Response{}, unavailable(ProviderGemini, errors.New("response content was empty"))
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Response{}, unavailable(ProviderGemini, errors.New("response contained no text parts"))
	}

	result := Response{
		Text:       strings.TrimSpace(text.String()),
		Structured: structured,
		Model:      model,
		StopReason: string(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderGemini, apiErr.Code, apiErr.Message+" "+apiErr.Status, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyStatus(ProviderGemini, apiErrPtr.Code, apiErrPtr.Message+" "+apiErrPtr.Status, err)
	}
	return unavailable(ProviderGemini, fmt.Errorf("generate content: %w", err))
}
