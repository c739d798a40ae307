package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"myride/internal/util"
)

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(memberID string) (string, error)
	GetMemberIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// RedisSessionStore keeps sessions in Redis with TTL.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(addr, password string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: "myride:session:",
		ttl:    ttl,
	}
}

// NewSession writes a token -> memberID mapping with TTL.
func (s *RedisSessionStore) NewSession(memberID string) (string, error) {
	token := util.NewID()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+token, memberID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// GetMemberIDByToken resolves a token to a member ID.
func (s *RedisSessionStore) GetMemberIDByToken(token string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	val, err := s.client.Get(ctx, s.prefix+token).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// DeleteSession removes a token mapping.
func (s *RedisSessionStore) DeleteSession(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// MemorySessionStore keeps sessions in-process (tests, local dev).
type MemorySessionStore struct {
	mu   sync.Mutex
	sess map[string]string
}

// NewMemorySessionStore initializes an empty session map.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sess: make(map[string]string)}
}

func (s *MemorySessionStore) NewSession(memberID string) (string, error) {
	token := util.NewID()
	s.mu.Lock()
	s.sess[token] = memberID
	s.mu.Unlock()
	return token, nil
}

func (s *MemorySessionStore) GetMemberIDByToken(token string) (string, bool, error) {
	s.mu.Lock()
	memberID, ok := s.sess[token]
	s.mu.Unlock()
	return memberID, ok, nil
}

func (s *MemorySessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	delete(s.sess, token)
	s.mu.Unlock()
	return nil
}
