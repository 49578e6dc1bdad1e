package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/PabloGalante/insighter/internal/domain"
)

const keyPrefix = "insighter:checkpoint:"

// StateStore keeps one JSON checkpoint per session, expiring after ttl.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore connects to addr and pings it once.
func NewStateStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*StateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewStateStoreWithClient(client, ttl), nil
}

func NewStateStoreWithClient(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) SaveCheckpoint(ctx context.Context, cp *domain.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+string(cp.SessionID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SaveCheckpoint: %w", err)
	}
	return nil
}

func (s *StateStore) LoadCheckpoint(ctx context.Context, sessionID domain.SessionID) (*domain.Checkpoint, error) {
	b, err := s.client.Get(ctx, keyPrefix+string(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis LoadCheckpoint: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *StateStore) Close() error {
	return s.client.Close()
}
