package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// maxMergeRetries bounds the optimistic-concurrency retry loop for context
// writes. Contention on a single customer's session is rare (duplicate
// webhook delivery, double-tap), so a small bound is plenty.
const maxMergeRetries = 5

// RedisSessionStore keeps sessions as JSON blobs in Redis. Creation uses
// SETNX so concurrent first messages resolve to one session; context writes
// use WATCH/MULTI so concurrent merges never lose keys.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionStore wraps a connected Redis client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client required")
	}
	return &RedisSessionStore{client: client, now: time.Now}
}

func sessionKey(customerPhone string) string {
	return sessionKeyPrefix + customerPhone
}

func (s *RedisSessionStore) Get(ctx context.Context, customerPhone string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(customerPhone)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) CreateIfAbsent(ctx context.Context, customerPhone string, initialState State, initialContext Context) (*Session, bool, error) {
	if initialContext == nil {
		initialContext = Context{}
	}
	now := s.now().UTC()
	sess := &Session{
		CustomerPhone: customerPhone,
		State:         initialState,
		Context:       initialContext,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, false, fmt.Errorf("conversation: encode session: %w", err)
	}

	created, err := s.client.SetNX(ctx, sessionKey(customerPhone), data, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("conversation: create session: %w", err)
	}
	if created {
		return sess, true, nil
	}
	// Lost the race: another message created the session first. Re-read and
	// proceed with the winner's session.
	existing, err := s.Get(ctx, customerPhone)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *RedisSessionStore) UpdateState(ctx context.Context, customerPhone string, newState State) error {
	_, err := s.mutate(ctx, customerPhone, func(sess *Session) {
		sess.State = newState
	})
	return err
}

func (s *RedisSessionStore) MergeContext(ctx context.Context, customerPhone string, delta Context) (*Session, error) {
	if len(delta) == 0 {
		return s.Get(ctx, customerPhone)
	}
	return s.mutate(ctx, customerPhone, func(sess *Session) {
		if sess.Context == nil {
			sess.Context = Context{}
		}
		for k, v := range delta {
			sess.Context[k] = v
		}
	})
}

func (s *RedisSessionStore) ReplaceContext(ctx context.Context, customerPhone string, newContext Context) (*Session, error) {
	if newContext == nil {
		newContext = Context{}
	}
	return s.mutate(ctx, customerPhone, func(sess *Session) {
		sess.Context = newContext
	})
}

// mutate applies fn under WATCH so a concurrent writer forces a re-read
// instead of a lost update.
func (s *RedisSessionStore) mutate(ctx context.Context, customerPhone string, fn func(*Session)) (*Session, error) {
	key := sessionKey(customerPhone)
	var result *Session

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return fmt.Errorf("conversation: decode session: %w", err)
		}
		fn(&sess)
		sess.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("conversation: encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &sess
		return nil
	}

	for i := 0; i < maxMergeRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("conversation: update session: %w", err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("conversation: update session: too much contention on %s", customerPhone)
}
