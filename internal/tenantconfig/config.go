// Package tenantconfig stores each tenant's assistant settings. The settings
// are read fresh on every assistant request and passed down explicitly.
package tenantconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/billing-assistant/internal/llm"
)

// Config holds the per-tenant assistant configuration.
type Config struct {
	TenantID string `json:"tenant_id"`
	// Provider is one of the llm.Provider* names.
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`

	Personality         string `json:"personality,omitempty"`
	BusinessDescription string `json:"business_description,omitempty"`
	BusinessHours       string `json:"business_hours,omitempty"`

	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
	// Temperature nil leaves the provider default.
	Temperature *float32  `json:"temperature,omitempty"`
	WebSearch   bool      `json:"web_search"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// DefaultConfig is returned for tenants that never saved settings. It has no
// credential, so the gateway rejects it until an API key is configured.
func DefaultConfig(tenantID string) *Config {
	return &Config{
		TenantID: tenantID,
		Provider: llm.ProviderOpenAI,
	}
}

// LLMSettings extracts the gateway selection from the config.
func (c *Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
	}
}

// TemperatureOrOmit returns the configured temperature, or -1 to omit it.
func (c *Config) TemperatureOrOmit() float32 {
	if c.Temperature == nil {
		return -1
	}
	return *c.Temperature
}

// MaxTokens returns the configured output bound or fallback.
func (c *Config) MaxTokens(fallback int) int32 {
	if c.MaxOutputTokens > 0 {
		return int32(c.MaxOutputTokens)
	}
	return int32(fallback)
}

// Redacted returns a copy safe to send to clients.
func (c *Config) Redacted() *Config {
	out := *c
	if out.APIKey != "" {
		out.APIKey = maskKey(out.APIKey)
	}
	return &out
}

func maskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// Store persists tenant configuration in Redis.
type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("tenantconfig: redis client cannot be nil")
	}
	return &Store{redis: redisClient}
}

func (s *Store) key(tenantID string) string {
	return fmt.Sprintf("assistant:config:%s", tenantID)
}

// Get returns the stored config, or DefaultConfig when none exists.
func (s *Store) Get(ctx context.Context, tenantID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultConfig(tenantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenantconfig: get: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("tenantconfig: unmarshal: %w", err)
	}
	cfg.TenantID = tenantID
	return &cfg, nil
}

// Set writes the config, stamping UpdatedAt.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	if strings.TrimSpace(cfg.TenantID) == "" {
		return errors.New("tenantconfig: tenant id is required")
	}
	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("tenantconfig: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(cfg.TenantID), data, 0).Err(); err != nil {
		return fmt.Errorf("tenantconfig: set: %w", err)
	}
	return nil
}
