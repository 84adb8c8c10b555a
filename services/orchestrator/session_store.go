package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"clinicvoice/models"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "call:sess:"

// ErrSessionNotFound means no live session exists for the call id.
var ErrSessionNotFound = fmt.Errorf("call session not found")

// SessionStore persists call sessions between intents.
type SessionStore interface {
	Get(ctx context.Context, callID string) (*models.CallSession, error)
	Save(ctx context.Context, sess *models.CallSession) error
	Delete(ctx context.Context, callID string) error
	// Lock serializes intent handling for one call. Intents for the same
	// call are processed one at a time; the returned func releases the lock.
	Lock(callID string) func()
}

// RedisSessionStore keeps sessions as JSON under a TTL so an abandoned call
// cleans itself up.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	locks map[string]*callLock
}

type callLock struct {
	mu   sync.Mutex
	refs int
}

// NewRedisSessionStore creates a session store with the given TTL.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl, locks: make(map[string]*callLock)}
}

// Get loads a session. ErrSessionNotFound when the key is gone or expired.
func (s *RedisSessionStore) Get(ctx context.Context, callID string) (*models.CallSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+callID).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", callID, err)
	}

	var sess models.CallSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", callID, err)
	}
	return &sess, nil
}

// Save writes the session back and refreshes its TTL.
func (s *RedisSessionStore) Save(ctx context.Context, sess *models.CallSession) error {
	sess.UpdatedAt = time.Now()
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.CallID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.CallID, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.CallID, err)
	}
	return nil
}

// Delete removes the session.
func (s *RedisSessionStore) Delete(ctx context.Context, callID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+callID).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", callID, err)
	}
	return nil
}

// Lock serializes intent handling per call within this process.
func (s *RedisSessionStore) Lock(callID string) func() {
	s.mu.Lock()
	l, ok := s.locks[callID]
	if !ok {
		l = &callLock{}
		s.locks[callID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, callID)
		}
		s.mu.Unlock()
	}
}
