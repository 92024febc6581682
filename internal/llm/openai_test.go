package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestServer(t *testing.T, status int, body string, capture *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if capture != nil {
			_ = json.NewDecoder(r.Body).Decode(capture)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Complete(t *testing.T) {
	var captured openai.ChatCompletionRequest
	srv := newOpenAITestServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": " Done! "}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
	}`, &captured)

	client := NewOpenAIClient("sk-test", "openai/gpt-4o-mini", srv.URL+"/v1", srv.Client())
	resp, err := client.Complete(context.Background(), Request{
		System: "be helpful",
		History: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "   "},
		},
		UserMessage: "create an expense",
		MaxTokens:   256,
		Temperature: 0.3,
		WebSearch:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Done!", resp.Text)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 256, captured.MaxTokens)
	assert.Empty(t, captured.Tools)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, captured.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, captured.Messages[2].Role)
	assert.Equal(t, "create an expense", captured.Messages[3].Content)
}

func TestOpenAIClient_FailureTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrAuthInvalid},
		{"bad request key shape", http.StatusBadRequest, `{"error":{"message":"Invalid API key format","type":"invalid_request_error"}}`, ErrAuthInvalid},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"The server had an error","type":"server_error"}}`, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOpenAITestServer(t, tt.status, tt.body, nil)
			client := NewOpenAIClient("sk-test", "", srv.URL+"/v1", srv.Client())

			_, err := client.Complete(context.Background(), Request{UserMessage: "hi", Temperature: -1})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIClient_NetworkErrorIsUnavailable(t *testing.T) {
	srv := newOpenAITestServer(t, http.StatusOK, `{}`, nil)
	url := srv.URL
	srv.Close()

	client := NewOpenAIClient("sk-test", "", url+"/v1", nil)
	_, err := client.Complete(context.Background(), Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

type stubChatAPI struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (s *stubChatAPI) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return s.resp, s.err
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	client := newOpenAIClientWithAPI(&stubChatAPI{}, "")
	_, err := client.Complete(context.Background(), Request{UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIClient_StructuredReply(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"{\"message\":\"hi\",\"action\":null}"},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewOpenAIClient("sk-test", "", srv.URL+"/v1", srv.Client())
	require.True(t, SupportsStructuredReply(WithTimeout(client, time.Second), Request{WebSearch: true}))

	resp, err := client.Complete(context.Background(), Request{
		UserMessage: "hi",
		Temperature: -1,
		Reply:       &ReplySchema{Name: "assistant_reply", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
	assert.True(t, resp.Structured)
	assert.JSONEq(t, `{"message":"hi","action":null}`, resp.Text)

	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok, "response_format sent")
	assert.Equal(t, "json_schema", format["type"])
	schema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "assistant_reply", schema["name"])
	assert.Equal(t, map[string]any{"type": "object"}, schema["schema"])
}
