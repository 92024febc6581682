package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/billing-assistant/internal/auditlog"
	"github.com/wolfman30/billing-assistant/internal/llm"
	"github.com/wolfman30/billing-assistant/internal/observability/metrics"
	"github.com/wolfman30/billing-assistant/internal/tenancy"
	"github.com/wolfman30/billing-assistant/pkg/logging"
)

const maxBodyBytes = 1 << 20

// Turner is the pipeline behind the assistant endpoints.
type Turner interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// SessionActions lists the audit trail of one session.
type SessionActions interface {
	ListBySession(ctx context.Context, tenantID, sessionID string, limit int) ([]auditlog.Entry, error)
}

// Handler wires HTTP requests to the assistant service.
type Handler struct {
	service Turner
	actions SessionActions
	metrics *metrics.AssistantMetrics
	logger  *logging.Logger
}

func NewHandler(service Turner, actions SessionActions, m *metrics.AssistantMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, actions: actions, metrics: m, logger: logger}
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is the JSON body shared by the three assistant endpoints.
type TurnRequest struct {
	Message          string           `json:"message"`
	PreviousMessages []historyMessage `json:"previousMessages"`
	TenantID         string           `json:"tenantId"`
	ActorID          string           `json:"actorId,omitempty"`
	ActorName        string           `json:"actorName,omitempty"`
	ActorTier        string           `json:"actorTier,omitempty"`
	CustomerID       string           `json:"customerId,omitempty"`
	SessionID        string           `json:"sessionId,omitempty"`
	BusinessHours    string           `json:"businessHours,omitempty"`
	MenuOptions      []MenuOption     `json:"menuOptions,omitempty"`
	Personality      string           `json:"personality,omitempty"`
}

// Chat handles POST /api/assistant/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	h.turn(w, r, EndpointChat)
}

// Contextual handles POST /api/assistant/contextual.
func (h *Handler) Contextual(w http.ResponseWriter, r *http.Request) {
	h.turn(w, r, EndpointContextual)
}

// Expenses handles POST /api/assistant/expenses.
func (h *Handler) Expenses(w http.ResponseWriter, r *http.Request) {
	h.turn(w, r, EndpointExpenses)
}

func (h *Handler) turn(w http.ResponseWriter, r *http.Request, endpoint Endpoint) {
	var body TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		h.logger.Warn("failed to decode assistant request", "endpoint", string(endpoint), "error", err)
		h.fail(w, endpoint, http.StatusBadRequest, "invalid request body")
		return
	}

	tenantID := strings.TrimSpace(body.TenantID)
	if tenantID == "" {
		tenantID, _ = tenancy.TenantIDFromContext(r.Context())
	}
	actorID := strings.TrimSpace(body.ActorID)
	if actorID == "" {
		actorID, _ = tenancy.ActorIDFromContext(r.Context())
	}

	tier := defaultTier(endpoint)
	if body.ActorTier != "" {
		parsed, ok := ParseTier(body.ActorTier)
		if !ok {
			h.fail(w, endpoint, http.StatusBadRequest, "unknown actorTier")
			return
		}
		tier = parsed
	}

	history := make([]llm.Message, 0, len(body.PreviousMessages))
	for _, m := range body.PreviousMessages {
		role := llm.RoleUser
		if strings.EqualFold(m.Role, llm.RoleAssistant) {
			role = llm.RoleAssistant
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}

	resp, err := h.service.Handle(r.Context(), Request{
		Endpoint:  endpoint,
		TenantID:  tenantID,
		SessionID: strings.TrimSpace(body.SessionID),
		Actor: Actor{
			ID:         actorID,
			Name:       body.ActorName,
			Tier:       tier,
			CustomerID: body.CustomerID,
		},
		Message:             body.Message,
		History:             history,
		BusinessHours:       body.BusinessHours,
		MenuOptions:         body.MenuOptions,
		PersonalityOverride: body.Personality,
	})
	if err != nil {
		status, msg := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("assistant request failed", "endpoint", string(endpoint), "tenant_id", tenantID, "error", err)
		}
		h.fail(w, endpoint, status, msg)
		return
	}

	h.metrics.ObserveRequest(string(endpoint), http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

// ListSessionActions handles GET /api/assistant/sessions/{sessionID}/actions.
func (h *Handler) ListSessionActions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		tenantID, _ = tenancy.TenantIDFromContext(r.Context())
	}
	if sessionID == "" || tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantId and sessionID are required")
		return
	}
	if h.actions == nil {
		writeError(w, http.StatusNotFound, "session actions are not available")
		return
	}

	entries, err := h.actions.ListBySession(r.Context(), tenantID, sessionID, 0)
	if err != nil {
		h.logger.Error("failed to list session actions", "tenant_id", tenantID, "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entries == nil {
		entries = []auditlog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": sessionID, "actions": entries})
}

func defaultTier(endpoint Endpoint) RoleTier {
	if endpoint == EndpointChat {
		return TierCustomer
	}
	return TierAdmin
}

// errorResponse maps pipeline failures onto HTTP statuses. Provider detail
// stays in the server log.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": ")
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "this assistant is not available for your role"
	case errors.Is(err, llm.ErrConfiguration):
		return http.StatusBadRequest, "the assistant is not configured: check the provider and API key in the assistant settings"
	case errors.Is(err, llm.ErrAuthInvalid):
		return http.StatusUnauthorized, "the AI provider rejected the configured API key"
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, "the AI provider is rate limiting requests, please try again shortly"
	default:
		return http.StatusInternalServerError, "the assistant is temporarily unavailable"
	}
}

func (h *Handler) fail(w http.ResponseWriter, endpoint Endpoint, status int, msg string) {
	h.metrics.ObserveRequest(string(endpoint), status)
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
