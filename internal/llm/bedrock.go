package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements Client over the Bedrock Converse API. Credentials
// come from the process AWS configuration rather than the tenant. Converse
// has no web search tool, so Request.WebSearch is ignored.
type BedrockClient struct {
	api   bedrockConverseAPI
	model string
}

func NewBedrockClient(api bedrockConverseAPI, model string) *BedrockClient {
	if api == nil {
		panic("llm: bedrock converse client cannot be nil")
	}
	return &BedrockClient{api: api, model: NormalizeModel(ProviderBedrock, model)}
}

func (c *BedrockClient) Name() string {
	return ProviderBedrock
}

func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := c.model
	if req.Model != "" {
		model = NormalizeModel(ProviderBedrock, req.Model)
	}

	var systemBlocks []brtypes.SystemContentBlock
	if s := strings.TrimSpace(req.System); s != "" {
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: s})
	}

	messages := make([]brtypes.Message, 0, len(req.History)+1)
	for _, msg := range req.History {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
		case RoleAssistant:
			messages = append(messages, bedrockText(brtypes.ConversationRoleAssistant, content))
		default:
			messages = append(messages, bedrockText(brtypes.ConversationRoleUser, content))
		}
	}
	messages = append(messages, bedrockText(brtypes.ConversationRoleUser, req.UserMessage))

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	})
	if err != nil {
		return Response{}, classifyBedrockError(err)
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return Response{}, unavailable(ProviderBedrock, err)
	}
	resp := Response{
		Text:       strings.TrimSpace(text),
		Model:      model,
		StopReason: string(out.StopReason),
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func bedrockText(role brtypes.ConversationRole, text string) brtypes.Message {
	return brtypes.Message{
		Role:    role,
		Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
	}
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock response did not include a message output")
	}
	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", errors.New("bedrock response contained no text content blocks")
	}
	return builder.String(), nil
}

func classifyBedrockError(err error) error {
	var throttled *brtypes.ThrottlingException
	if errors.As(err, &throttled) {
		return &ProviderError{Kind: ErrRateLimited, Provider: ProviderBedrock, StatusCode: http.StatusTooManyRequests, Err: err}
	}
	var denied *brtypes.AccessDeniedException
	if errors.As(err, &denied) {
		return &ProviderError{Kind: ErrAuthInvalid, Provider: ProviderBedrock, StatusCode: http.StatusForbidden, Err: err}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return classifyStatus(ProviderBedrock, respErr.HTTPStatusCode(), respErr.Error(), err)
	}
	return unavailable(ProviderBedrock, err)
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
