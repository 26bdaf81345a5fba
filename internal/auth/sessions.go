package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"faceattend/internal/store"
)

// ErrSessionNotFound is returned by stores for unknown or expired tokens.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore holds issued sessions keyed by token. Implementations must
// treat expiry as deletion: a Get after expiry returns ErrSessionNotFound.
type SessionStore interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// RedisSessionStore keeps sessions in Redis with a TTL matching the
// session lifetime, so expiry is enforced by the store itself.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a store over the given client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Put(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	return s.client.Set(ctx, store.Key("session", sess.Token), data, ttl).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (Session, error) {
	data, err := s.client.Get(ctx, store.Key("session", token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, store.Key("session", token)).Err()
}

// MemorySessionStore is a map-backed store for dev and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	nowFunc  func() time.Time
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
		nowFunc:  time.Now,
	}
}

func (s *MemorySessionStore) Put(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if sess.Expired(s.nowFunc()) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
