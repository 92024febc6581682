// Package llm is the uniform gateway over the external language-model
// backends. Each backend is a strategy that owns its own wire translation and
// failure mapping; callers only see Client and the error sentinels.
package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// Message is one prior turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is the provider-neutral completion call.
type Request struct {
	Model       string
	System      string
	History     []Message
	UserMessage string
	MaxTokens   int32
	// Temperature is omitted from the wire request when negative.
	Temperature float32
	// WebSearch is honored only by backends with a search tool; the others
	// drop it.
	WebSearch bool
	// Reply asks the backend to constrain its output to a JSON object. Only
	// backends that report SupportsStructuredReply act on it.
	Reply *ReplySchema
}

// ReplySchema names a JSON Schema for the reply object.
type ReplySchema struct {
	Name   string
	Schema json.RawMessage
}

type Response struct {
	Text       string
	Model      string
	Usage      TokenUsage
	StopReason string
	// Structured is true when Text is a JSON object produced under
	// Request.Reply.
	Structured bool
}

// Client completes one request against a single backend. Implementations
// never retry.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// StructuredReplier is implemented by backends with a JSON output mode.
type StructuredReplier interface {
	SupportsStructuredReply(req Request) bool
}

// SupportsStructuredReply reports whether c would honor Request.Reply for a
// request shaped like req.
func SupportsStructuredReply(c Client, req Request) bool {
	sr, ok := c.(StructuredReplier)
	return ok && sr.SupportsStructuredReply(req)
}
