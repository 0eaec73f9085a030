package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/translive/internal/core/domain"
)

// Client wraps Redis for snapshot persistence and the realtime channel.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Snapshot keys survive reloads; a restart resumes from the last persisted
// queue, workflow, and session pointer state.
const snapshotTTL = 24 * time.Hour

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping probes backend connectivity. Used by connection recovery.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return &domain.NetworkError{Op: "redis ping", Err: err}
	}
	return nil
}

// Key helpers
func queueKey(sessionID string) string {
	return fmt.Sprintf("translive:queue:%s", sessionID)
}

func workflowKey(userID string) string {
	return fmt.Sprintf("translive:workflows:%s", userID)
}

func activeSessionKey(userID string) string {
	return fmt.Sprintf("translive:active_session:%s", userID)
}

// SaveQueueSnapshot persists the full queue state for a session.
func (c *Client) SaveQueueSnapshot(
	ctx context.Context,
	sessionID string,
	messages []domain.Message,
) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal queue snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, queueKey(sessionID), data, snapshotTTL).Err(); err != nil {
		return &domain.NetworkError{Op: "save queue snapshot", Err: err}
	}
	return nil
}

// LoadQueueSnapshot restores the queue state for a session. A missing key
// yields an empty queue, not an error.
func (c *Client) LoadQueueSnapshot(
	ctx context.Context,
	sessionID string,
) ([]domain.Message, error) {
	val, err := c.rdb.Get(ctx, queueKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.NetworkError{Op: "load queue snapshot", Err: err}
	}

	var messages []domain.Message
	if err := json.Unmarshal([]byte(val), &messages); err != nil {
		return nil, fmt.Errorf("decode queue snapshot: %w", err)
	}
	return messages, nil
}

// DeleteQueueSnapshot discards the persisted queue for a session.
func (c *Client) DeleteQueueSnapshot(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, queueKey(sessionID)).Err()
}

// SaveWorkflowSnapshots persists all tracked workflows for a user.
func (c *Client) SaveWorkflowSnapshots(
	ctx context.Context,
	userID string,
	workflows []domain.WorkflowProgress,
) error {
	data, err := json.Marshal(workflows)
	if err != nil {
		return fmt.Errorf("marshal workflow snapshots: %w", err)
	}
	if err := c.rdb.Set(ctx, workflowKey(userID), data, snapshotTTL).Err(); err != nil {
		return &domain.NetworkError{Op: "save workflow snapshots", Err: err}
	}
	return nil
}

// LoadWorkflowSnapshots restores tracked workflows for a user.
func (c *Client) LoadWorkflowSnapshots(
	ctx context.Context,
	userID string,
) ([]domain.WorkflowProgress, error) {
	val, err := c.rdb.Get(ctx, workflowKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.NetworkError{Op: "load workflow snapshots", Err: err}
	}

	var workflows []domain.WorkflowProgress
	if err := json.Unmarshal([]byte(val), &workflows); err != nil {
		return nil, fmt.Errorf("decode workflow snapshots: %w", err)
	}
	return workflows, nil
}

// SaveActiveSession records which session the user was last attached to.
func (c *Client) SaveActiveSession(ctx context.Context, userID, sessionID string) error {
	if err := c.rdb.Set(ctx, activeSessionKey(userID), sessionID, snapshotTTL).Err(); err != nil {
		return &domain.NetworkError{Op: "save active session", Err: err}
	}
	return nil
}

// LoadActiveSession returns the last attached session id, or empty.
func (c *Client) LoadActiveSession(ctx context.Context, userID string) (string, error) {
	val, err := c.rdb.Get(ctx, activeSessionKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", &domain.NetworkError{Op: "load active session", Err: err}
	}
	return val, nil
}

// ClearActiveSession removes the active session pointer.
func (c *Client) ClearActiveSession(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, activeSessionKey(userID)).Err()
}
