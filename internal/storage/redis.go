package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storyweaver/server/internal/config"
	"storyweaver/server/internal/session"
)

const sessionKeyPrefix = "storyweaver:session:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

// Sessions returns a session.Store kept in this redis database.
func (s *RedisStore) Sessions(ttl time.Duration) *SessionStore {
	return &SessionStore{client: s.client, ttl: ttl}
}

// SessionStore keeps each session as one JSON value whose expiry is
// refreshed on every save.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *SessionStore) Create(ctx context.Context) (*session.State, error) {
	state := session.New()
	if err := s.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.State, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state session.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &state, nil
}

func (s *SessionStore) Save(ctx context.Context, state *session.State) error {
	state.UpdatedAt = time.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(state.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}
