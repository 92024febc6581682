// Package auditlog is the append-only trail of directive execution attempts,
// one row per attempt, plus a per-session running counter.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Entry is one executed (or attempted) directive.
type Entry struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	TenantID      string          `json:"tenant_id"`
	ActorID       string          `json:"actor_id,omitempty"`
	DirectiveType string          `json:"directive_type"`
	Payload       json.RawMessage `json:"payload"`
	Success       bool            `json:"success"`
	ResultMessage string          `json:"result_message"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// PostgresLog writes entries to the session_action_log table.
type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

// Insert appends an entry, filling in the id and timestamp when empty.
func (l *PostgresLog) Insert(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}
	if len(e.Payload) == 0 {
		e.Payload = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO session_action_log (
			id, session_id, tenant_id, actor_id, directive_type,
			payload, success, result_message, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := l.db.ExecContext(ctx, query,
		e.ID,
		e.SessionID,
		e.TenantID,
		nullString(e.ActorID),
		e.DirectiveType,
		string(e.Payload),
		e.Success,
		e.ResultMessage,
		e.ExecutedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("auditlog: insert entry: %w", err)
	}
	return e, nil
}

// ListBySession returns a session's entries oldest first, scoped to tenantID.
func (l *PostgresLog) ListBySession(ctx context.Context, tenantID, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, tenant_id, COALESCE(actor_id, ''), directive_type,
			payload, success, result_message, executed_at
		FROM session_action_log
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY executed_at ASC
		LIMIT $3
	`, tenantID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("auditlog: list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TenantID, &e.ActorID, &e.DirectiveType,
			&payload, &e.Success, &e.ResultMessage, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("auditlog: scan entry: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// RedisCounter tracks the number of attempts per session.
type RedisCounter struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCounter(client *redis.Client, ttl time.Duration) *RedisCounter {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCounter{redis: client, ttl: ttl}
}

// Session ids come from clients, so the key is scoped by tenant.
func counterKey(tenantID, sessionID string) string {
	return fmt.Sprintf("assistant:session:%s:%s:actions", tenantID, sessionID)
}

// Incr bumps the session counter, refreshes its TTL and returns the total.
func (c *RedisCounter) Incr(ctx context.Context, tenantID, sessionID string) (int64, error) {
	key := counterKey(tenantID, sessionID)
	pipe := c.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("auditlog: increment session counter: %w", err)
	}
	return incr.Val(), nil
}

func (c *RedisCounter) Count(ctx context.Context, tenantID, sessionID string) (int64, error) {
	n, err := c.redis.Get(ctx, counterKey(tenantID, sessionID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("auditlog: read session counter: %w", err)
	}
	return n, nil
}

// SessionLog combines the durable row and the running counter.
type SessionLog struct {
	rows    *PostgresLog
	counter *RedisCounter
}

func NewSessionLog(rows *PostgresLog, counter *RedisCounter) *SessionLog {
	return &SessionLog{rows: rows, counter: counter}
}

// Record persists the attempt and returns the session's running total. The
// row is written first; a counter failure is reported after the row exists.
func (l *SessionLog) Record(ctx context.Context, e Entry) (int64, error) {
	if e.TenantID == "" || e.SessionID == "" {
		return 0, fmt.Errorf("auditlog: tenant and session are required")
	}
	if _, err := l.rows.Insert(ctx, e); err != nil {
		return 0, err
	}
	if l.counter == nil {
		return 0, nil
	}
	return l.counter.Incr(ctx, e.TenantID, e.SessionID)
}

func (l *SessionLog) ListBySession(ctx context.Context, tenantID, sessionID string, limit int) ([]Entry, error) {
	return l.rows.ListBySession(ctx, tenantID, sessionID, limit)
}

func (l *SessionLog) Count(ctx context.Context, tenantID, sessionID string) (int64, error) {
	if l.counter == nil {
		return 0, nil
	}
	return l.counter.Count(ctx, tenantID, sessionID)
}
