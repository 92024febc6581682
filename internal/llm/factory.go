package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Settings selects and authenticates a backend for one tenant request.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string
}

// Factory builds per-request clients. It holds only process-wide transport
// dependencies; tenant settings are passed on every call.
type Factory struct {
	bedrock    bedrockConverseAPI
	httpClient *http.Client
	timeout    time.Duration
}

type FactoryOption func(*Factory)

// WithBedrock enables the bedrock provider using a shared runtime client.
func WithBedrock(api bedrockConverseAPI) FactoryOption {
	return func(f *Factory) {
		f.bedrock = api
	}
}

func WithHTTPClient(client *http.Client) FactoryOption {
	return func(f *Factory) {
		f.httpClient = client
	}
}

// WithCallTimeout bounds every Complete call made by built clients.
func WithCallTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) {
		f.timeout = d
	}
}

func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewClient resolves the strategy for s.Provider. Unknown providers and
// missing credentials fail with ErrConfiguration without touching the network.
func (f *Factory) NewClient(ctx context.Context, s Settings) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	var client Client
	switch provider {
	case ProviderOpenAI:
		if strings.TrimSpace(s.APIKey) == "" {
			return nil, configurationError(provider, "api key is required")
		}
		client = NewOpenAIClient(s.APIKey, s.Model, s.BaseURL, f.httpClient)
	case ProviderGemini:
		gc, err := NewGeminiClient(ctx, s.APIKey, s.Model, f.httpClient)
		if err != nil {
			return nil, err
		}
		client = gc
	case ProviderBedrock:
		if f.bedrock == nil {
			return nil, configurationError(provider, "bedrock runtime is not configured")
		}
		client = NewBedrockClient(f.bedrock, s.Model)
	default:
		return nil, configurationError(provider, "unknown provider %q", s.Provider)
	}
	if f.timeout > 0 {
		client = WithTimeout(client, f.timeout)
	}
	return client, nil
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout wraps c so each call is bounded by d. A call cut short by the
// deadline is reported as ErrUnavailable.
func WithTimeout(c Client, d time.Duration) Client {
	return &timeoutClient{next: c, timeout: d}
}

func (c *timeoutClient) Name() string {
	return c.next.Name()
}

func (c *timeoutClient) SupportsStructuredReply(req Request) bool {
	return SupportsStructuredReply(c.next, req)
}

func (c *timeoutClient) Complete(ctx context.Context, req Request) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.next.Complete(callCtx, req)
	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		return Response{}, &ProviderError{Kind: ErrUnavailable, Provider: c.next.Name(), Err: err}
	}
	return resp, err
}
