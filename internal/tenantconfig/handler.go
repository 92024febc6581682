package tenantconfig

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/billing-assistant/internal/llm"
	"github.com/wolfman30/billing-assistant/pkg/logging"
)

// Handler exposes read/update of a tenant's assistant settings.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetConfig returns the redacted configuration.
// GET /api/tenants/{tenantID}/assistant-config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id required")
		return
	}

	cfg, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to get tenant config", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, cfg.Redacted())
}

// UpdateConfigRequest carries a partial update; nil fields are unchanged.
type UpdateConfigRequest struct {
	Provider            *string  `json:"provider,omitempty"`
	Model               *string  `json:"model,omitempty"`
	APIKey              *string  `json:"api_key,omitempty"`
	BaseURL             *string  `json:"base_url,omitempty"`
	Personality         *string  `json:"personality,omitempty"`
	BusinessDescription *string  `json:"business_description,omitempty"`
	BusinessHours       *string  `json:"business_hours,omitempty"`
	MaxOutputTokens     *int     `json:"max_output_tokens,omitempty"`
	Temperature         *float32 `json:"temperature,omitempty"`
	WebSearch           *bool    `json:"web_search,omitempty"`
}

// UpdateConfig applies a partial update.
// PUT /api/tenants/{tenantID}/assistant-config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id required")
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg, err := h.store.Get(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to get tenant config", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.Provider != nil {
		provider := strings.ToLower(strings.TrimSpace(*req.Provider))
		switch provider {
		case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderBedrock:
			cfg.Provider = provider
		default:
			writeError(w, http.StatusBadRequest, "unsupported provider")
			return
		}
	}
	if req.Model != nil {
		cfg.Model = strings.TrimSpace(*req.Model)
	}
	if req.APIKey != nil {
		cfg.APIKey = strings.TrimSpace(*req.APIKey)
	}
	if req.BaseURL != nil {
		cfg.BaseURL = strings.TrimSpace(*req.BaseURL)
	}
	if req.Personality != nil {
		cfg.Personality = *req.Personality
	}
	if req.BusinessDescription != nil {
		cfg.BusinessDescription = *req.BusinessDescription
	}
	if req.BusinessHours != nil {
		cfg.BusinessHours = *req.BusinessHours
	}
	if req.MaxOutputTokens != nil {
		if *req.MaxOutputTokens < 0 {
			writeError(w, http.StatusBadRequest, "max_output_tokens must be positive")
			return
		}
		cfg.MaxOutputTokens = *req.MaxOutputTokens
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			writeError(w, http.StatusBadRequest, "temperature must be between 0 and 2")
			return
		}
		cfg.Temperature = req.Temperature
	}
	if req.WebSearch != nil {
		cfg.WebSearch = *req.WebSearch
	}

	if err := h.store.Set(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save tenant config", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}

	h.logger.Info("tenant assistant config updated", "tenant_id", tenantID, "provider", cfg.Provider)
	writeJSON(w, http.StatusOK, cfg.Redacted())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
