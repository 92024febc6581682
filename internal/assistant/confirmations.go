package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingAction is a destructive directive waiting for the actor's answer.
type PendingAction struct {
	Directive  Directive `json:"directive"`
	Endpoint   Endpoint  `json:"endpoint"`
	ActorID    string    `json:"actorId,omitempty"`
	ProposedAt time.Time `json:"proposedAt"`
}

// ConfirmationStore holds at most one pending action per (tenant, session).
type ConfirmationStore interface {
	Save(ctx context.Context, tenantID, sessionID string, p PendingAction) error
	// Load returns nil without error when nothing is pending.
	Load(ctx context.Context, tenantID, sessionID string) (*PendingAction, error)
	Delete(ctx context.Context, tenantID, sessionID string) error
}

// RedisConfirmations keeps pending actions in Redis with a TTL so abandoned
// proposals expire on their own.
type RedisConfirmations struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisConfirmations(client *redis.Client, ttl time.Duration) *RedisConfirmations {
	if client == nil {
		panic("assistant: redis client required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisConfirmations{redis: client, ttl: ttl}
}

func confirmationKey(tenantID, sessionID string) string {
	return fmt.Sprintf("assistant:confirm:%s:%s", tenantID, sessionID)
}

// Save replaces any action already pending for the session.
func (c *RedisConfirmations) Save(ctx context.Context, tenantID, sessionID string, p PendingAction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("assistant: marshal pending action: %w", err)
	}
	if err := c.redis.Set(ctx, confirmationKey(tenantID, sessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("assistant: save pending action: %w", err)
	}
	return nil
}

func (c *RedisConfirmations) Load(ctx context.Context, tenantID, sessionID string) (*PendingAction, error) {
	data, err := c.redis.Get(ctx, confirmationKey(tenantID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("assistant: load pending action: %w", err)
	}
	var p PendingAction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("assistant: decode pending action: %w", err)
	}
	return &p, nil
}

func (c *RedisConfirmations) Delete(ctx context.Context, tenantID, sessionID string) error {
	if err := c.redis.Del(ctx, confirmationKey(tenantID, sessionID)).Err(); err != nil {
		return fmt.Errorf("assistant: delete pending action: %w", err)
	}
	return nil
}

// Reply classifies a message sent while an action is pending.
type Reply int

const (
	ReplyOther Reply = iota
	ReplyAffirmative
	ReplyNegative
)

var (
	affirmativeWords = map[string]bool{
		"yes": true, "y": true, "confirm": true, "confirmed": true, "sure": true,
		"ok": true, "sim": true, "confirmo": true, "pode": true,
	}
	negativeWords = map[string]bool{
		"no": true, "n": true, "cancel": true, "nao": true, "não": true,
	}
)

// ClassifyReply matches the whole message, ignoring case, surrounding
// whitespace and trailing punctuation.
func ClassifyReply(message string) Reply {
	word := strings.ToLower(strings.TrimSpace(message))
	word = strings.TrimRight(word, ".!?, ")
	switch {
	case affirmativeWords[word]:
		return ReplyAffirmative
	case negativeWords[word]:
		return ReplyNegative
	}
	return ReplyOther
}
