package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/billing-assistant/internal/auditlog"
	"github.com/wolfman30/billing-assistant/internal/llm"
	"github.com/wolfman30/billing-assistant/internal/observability/metrics"
	"github.com/wolfman30/billing-assistant/internal/tenantconfig"
	"github.com/wolfman30/billing-assistant/pkg/logging"
)

var (
	// ErrInvalidRequest marks a request the caller must fix.
	ErrInvalidRequest = errors.New("assistant: invalid request")
	// ErrForbidden marks an endpoint the actor's tier cannot use.
	ErrForbidden = errors.New("assistant: endpoint not available for this role")
)

const (
	cancelledMessage    = "Action cancelled."
	confirmationMessage = "Please confirm: reply yes to proceed or no to cancel."
)

var tracer = otel.Tracer("billing.internal.assistant")

// ConfigSource reads the tenant's assistant settings for one request.
type ConfigSource interface {
	Get(ctx context.Context, tenantID string) (*tenantconfig.Config, error)
}

// Gateway builds a provider client from tenant settings.
type Gateway interface {
	NewClient(ctx context.Context, s llm.Settings) (llm.Client, error)
}

// ActionLog records execution attempts and returns the session's total.
type ActionLog interface {
	Record(ctx context.Context, e auditlog.Entry) (int64, error)
}

// Request is one user turn addressed to an assistant endpoint.
type Request struct {
	Endpoint            Endpoint
	TenantID            string
	SessionID           string
	Actor               Actor
	Message             string
	History             []llm.Message
	BusinessHours       string
	MenuOptions         []MenuOption
	PersonalityOverride string
}

// Response is the combined reply for one turn.
type Response struct {
	Response        string        `json:"response"`
	Action          *Directive    `json:"action,omitempty"`
	ActionResult    *ActionResult `json:"actionResult,omitempty"`
	ProactiveAlerts []string      `json:"proactiveAlerts,omitempty"`
	Provider        string        `json:"provider"`
	SessionID       string        `json:"sessionId"`
	SessionActions  int64         `json:"sessionActions,omitempty"`
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Configs          ConfigSource
	Gateway          Gateway
	Context          ContextSource
	Actions          ActionStore
	Confirmations    ConfirmationStore
	ActionLog        ActionLog
	Metrics          *metrics.AssistantMetrics
	Logger           *logging.Logger
	DefaultMaxTokens int
	Now              func() time.Time
}

// Service runs the pipeline: tenant config, pending confirmation, assemble,
// compose, provider call, parse, gate or execute, log, alerts. It keeps no
// per-request state between calls.
type Service struct {
	configs          ConfigSource
	gateway          Gateway
	assembler        *Assembler
	composer         Composer
	parser           Parser
	executor         *Executor
	confirmations    ConfirmationStore
	actionLog        ActionLog
	metrics          *metrics.AssistantMetrics
	logger           *logging.Logger
	defaultMaxTokens int
	now              func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Configs == nil:
		return nil, errors.New("assistant: config source required")
	case cfg.Gateway == nil:
		return nil, errors.New("assistant: gateway required")
	case cfg.Context == nil:
		return nil, errors.New("assistant: context source required")
	case cfg.Actions == nil:
		return nil, errors.New("assistant: action store required")
	case cfg.Confirmations == nil:
		return nil, errors.New("assistant: confirmation store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxTokens := cfg.DefaultMaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Service{
		configs:          cfg.Configs,
		gateway:          cfg.Gateway,
		assembler:        NewAssembler(cfg.Context),
		executor:         NewExecutor(cfg.Actions, logger),
		confirmations:    cfg.Confirmations,
		actionLog:        cfg.ActionLog,
		metrics:          cfg.Metrics,
		logger:           logger,
		defaultMaxTokens: maxTokens,
		now:              now,
	}, nil
}

// Handle processes one turn. Provider and configuration failures come back
// as errors classified by the llm sentinels; directive failures never do.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return Response{}, fmt.Errorf("%w: tenantId is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if req.Actor.Tier == TierCustomer && req.Endpoint == EndpointExpenses {
		return Response{}, ErrForbidden
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "assistant.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("billing.tenant_id", req.TenantID),
		attribute.String("billing.session_id", req.SessionID),
		attribute.String("billing.endpoint", string(req.Endpoint)),
		attribute.String("billing.actor_tier", string(req.Actor.Tier)),
	)

	cfg, err := s.configs.Get(ctx, req.TenantID)
	if err != nil {
		span.RecordError(err)
		return Response{}, fmt.Errorf("assistant: load tenant config: %w", err)
	}

	scope := Scope{TenantID: req.TenantID, SessionID: req.SessionID, Endpoint: req.Endpoint, Actor: req.Actor}
	logger := s.logger.With("tenant_id", req.TenantID, "session_id", req.SessionID, "endpoint", string(req.Endpoint))

	pending, err := s.confirmations.Load(ctx, req.TenantID, req.SessionID)
	if err != nil {
		logger.Warn("failed to load pending action", "error", err)
	}
	// Only the actor who proposed the action may confirm or cancel it.
	if pending != nil && pending.ActorID == req.Actor.ID {
		switch ClassifyReply(req.Message) {
		case ReplyAffirmative:
			return s.confirm(ctx, span, scope, cfg, req, *pending, logger)
		case ReplyNegative:
			return s.cancel(ctx, scope, cfg, *pending, logger), nil
		}
	}

	cc, err := s.assemble(ctx, req, cfg)
	if err != nil {
		span.RecordError(err)
		return Response{}, err
	}

	reply, provider, err := s.complete(ctx, cfg, req, cc, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return Response{Provider: provider, SessionID: req.SessionID}, err
	}

	_, parseSpan := tracer.Start(ctx, "assistant.parse", trace.WithAttributes(attribute.Bool("billing.structured", reply.Structured)))
	parsed := s.parse(reply)
	parseSpan.End()

	resp := Response{Response: parsed.VisibleMessage, Provider: provider, SessionID: req.SessionID}
	if d := parsed.Directive; d != nil {
		switch {
		case !Allowed(req.Endpoint, req.Actor.Tier, d.Type):
			logger.Warn("dropping directive not allowed for endpoint", "type", string(d.Type), "tier", string(req.Actor.Tier))
			s.metrics.ObserveDirective(string(d.Type), "rejected")
		case d.ConfirmRequired:
			d.State = StateAwaitingConfirmation
			err := s.confirmations.Save(ctx, req.TenantID, req.SessionID, PendingAction{
				Directive:  *d,
				Endpoint:   req.Endpoint,
				ActorID:    req.Actor.ID,
				ProposedAt: s.now().UTC(),
			})
			if err != nil {
				logger.Error("failed to store pending action", "type", string(d.Type), "error", err)
				resp.ActionResult = &ActionResult{Success: false, Message: genericFailure}
			} else if resp.Response == "" {
				resp.Response = confirmationMessage
			}
			resp.Action = d
			s.metrics.ObserveDirective(string(d.Type), "awaiting_confirmation")
		default:
			result, count := s.execute(ctx, scope, d, logger)
			resp.Action = d
			resp.ActionResult = &result
			resp.SessionActions = count
		}
	}

	resp.ProactiveAlerts = ComputeAlerts(cc.Snapshot, s.now())
	s.metrics.ObserveAlerts(len(resp.ProactiveAlerts))
	return resp, nil
}

func (s *Service) assemble(ctx context.Context, req Request, cfg *tenantconfig.Config) (ConversationContext, error) {
	ctx, span := tracer.Start(ctx, "assistant.assemble")
	defer span.End()

	hours := req.BusinessHours
	if hours == "" {
		hours = cfg.BusinessHours
	}
	cc, err := s.assembler.Assemble(ctx, req.TenantID, req.Actor, Profile{
		Personality:         cfg.Personality,
		BusinessDescription: cfg.BusinessDescription,
		BusinessHours:       hours,
		MenuOptions:         req.MenuOptions,
	})
	if err != nil {
		span.RecordError(err)
		return ConversationContext{}, err
	}
	return cc, nil
}

// complete composes the system prompt for the backend's reply mode and calls
// it. Backends with a JSON output mode get the reply schema; the rest get the
// tag grammar.
func (s *Service) complete(ctx context.Context, cfg *tenantconfig.Config, req Request, cc ConversationContext, logger *logging.Logger) (llm.Response, string, error) {
	settings := cfg.LLMSettings()
	provider := strings.ToLower(strings.TrimSpace(settings.Provider))

	ctx, span := tracer.Start(ctx, "assistant.provider", trace.WithAttributes(attribute.String("billing.provider", provider)))
	defer span.End()

	client, err := s.gateway.NewClient(ctx, settings)
	if err != nil {
		logger.Warn("assistant provider not configured", "provider", provider, "error", err)
		return llm.Response{}, provider, err
	}

	llmReq := llm.Request{
		History:     req.History,
		UserMessage: req.Message,
		MaxTokens:   cfg.MaxTokens(s.defaultMaxTokens),
		Temperature: cfg.TemperatureOrOmit(),
		WebSearch:   cfg.WebSearch,
	}
	if llm.SupportsStructuredReply(client, llmReq) {
		llmReq.System = s.composer.ComposeStructured(cc, req.Endpoint, req.PersonalityOverride)
		llmReq.Reply = ReplySchema(AllowedDirectives(req.Endpoint, req.Actor.Tier))
	} else {
		llmReq.System = s.composer.Compose(cc, req.Endpoint, req.PersonalityOverride)
	}

	started := s.now()
	resp, err := client.Complete(ctx, llmReq)
	elapsed := s.now().Sub(started).Seconds()
	if err != nil {
		s.metrics.ObserveProviderLatency(client.Name(), outcomeLabel(err), elapsed)
		span.RecordError(err)
		if errors.Is(err, llm.ErrUnavailable) {
			logger.Error("assistant provider unavailable", "provider", client.Name(), "error", err)
		} else {
			logger.Warn("assistant provider call failed", "provider", client.Name(), "error", err)
		}
		return llm.Response{}, client.Name(), err
	}
	s.metrics.ObserveProviderLatency(client.Name(), "ok", elapsed)
	span.SetAttributes(attribute.String("billing.model", resp.Model))
	return resp, client.Name(), nil
}

// parse reads a structured reply when the backend produced one and falls
// back to the tag grammar otherwise.
func (s *Service) parse(resp llm.Response) Parsed {
	if resp.Structured {
		if parsed, ok := s.parser.ParseStructured(resp.Text); ok {
			return parsed
		}
	}
	return s.parser.Parse(resp.Text)
}

func outcomeLabel(err error) string {
	switch llm.Kind(err) {
	case llm.ErrRateLimited:
		return "rate_limited"
	case llm.ErrAuthInvalid:
		return "auth_invalid"
	case llm.ErrConfiguration:
		return "configuration"
	default:
		return "unavailable"
	}
}

// execute runs a directive, logs the attempt and returns the result with the
// session's running action count.
func (s *Service) execute(ctx context.Context, scope Scope, d *Directive, logger *logging.Logger) (ActionResult, int64) {
	ctx, span := tracer.Start(ctx, "assistant.execute", trace.WithAttributes(attribute.String("billing.directive", string(d.Type))))
	defer span.End()

	result := s.executor.Execute(ctx, scope, *d)
	d.State = StateExecuted
	outcome := "executed"
	if !result.Success {
		outcome = "failed"
	}
	s.metrics.ObserveDirective(string(d.Type), outcome)
	return result, s.record(ctx, scope, *d, result, logger)
}

func (s *Service) record(ctx context.Context, scope Scope, d Directive, result ActionResult, logger *logging.Logger) int64 {
	if s.actionLog == nil {
		return 0
	}
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		payload = []byte(`{}`)
	}
	count, err := s.actionLog.Record(ctx, auditlog.Entry{
		SessionID:     scope.SessionID,
		TenantID:      scope.TenantID,
		ActorID:       scope.Actor.ID,
		DirectiveType: string(d.Type),
		Payload:       payload,
		Success:       result.Success,
		ResultMessage: result.Message,
		ExecutedAt:    s.now().UTC(),
	})
	if err != nil {
		logger.Error("failed to record session action", "type", string(d.Type), "error", err)
	}
	return count
}

func (s *Service) confirm(ctx context.Context, span trace.Span, scope Scope, cfg *tenantconfig.Config, req Request, pending PendingAction, logger *logging.Logger) (Response, error) {
	d := pending.Directive
	d.State = StateConfirmed
	if pending.Endpoint != "" {
		scope.Endpoint = pending.Endpoint
	}
	if err := s.confirmations.Delete(ctx, scope.TenantID, scope.SessionID); err != nil {
		logger.Warn("failed to clear pending action", "error", err)
	}

	result, count := s.execute(ctx, scope, &d, logger)
	resp := Response{
		Response:       result.Message,
		Action:         &d,
		ActionResult:   &result,
		Provider:       cfg.Provider,
		SessionID:      scope.SessionID,
		SessionActions: count,
	}

	cc, err := s.assemble(ctx, req, cfg)
	if err != nil {
		span.RecordError(err)
		logger.Warn("skipping alerts after confirmation", "error", err)
		return resp, nil
	}
	resp.ProactiveAlerts = ComputeAlerts(cc.Snapshot, s.now())
	s.metrics.ObserveAlerts(len(resp.ProactiveAlerts))
	return resp, nil
}

func (s *Service) cancel(ctx context.Context, scope Scope, cfg *tenantconfig.Config, pending PendingAction, logger *logging.Logger) Response {
	d := pending.Directive
	d.State = StateCancelled
	if err := s.confirmations.Delete(ctx, scope.TenantID, scope.SessionID); err != nil {
		logger.Warn("failed to clear pending action", "error", err)
	}
	s.metrics.ObserveDirective(string(d.Type), "cancelled")
	return Response{
		Response:     cancelledMessage,
		Action:       &d,
		ActionResult: &ActionResult{Success: false, Message: cancelledMessage},
		Provider:     cfg.Provider,
		SessionID:    scope.SessionID,
	}
}
