// Package redis stores rules in Redis. Each record lives under its own key;
// a sorted set scored by update time indexes all keys for listing.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/serialization"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ruleeditor"

// Store implements store.Store on a Redis client
type Store struct {
	client     redis.UniversalClient
	serializer *serialization.Serializer
	prefix     string
}

// New creates a Redis rule store
func New(client redis.UniversalClient, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Store{client: client, serializer: serializer, prefix: defaultPrefix}
}

// Connect creates a client for addr and checks the connection.
func Connect(ctx context.Context, addr string, serializer *serialization.Serializer) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return New(client, serializer), nil
}

// WithPrefix changes the key prefix
func (s *Store) WithPrefix(prefix string) *Store {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

func (s *Store) recordKey(key string) string  { return fmt.Sprintf("%s:rule:%s", s.prefix, key) }
func (s *Store) versionKey(key string) string { return fmt.Sprintf("%s:version:%s", s.prefix, key) }
func (s *Store) indexKey() string             { return s.prefix + ":rules" }

// Save stores the record under the next version of its key
func (s *Store) Save(ctx context.Context, record *store.RuleRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	key := record.Key()
	version, err := s.client.Incr(ctx, s.versionKey(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate version for %s: %w", key, err)
	}

	saved := *record
	saved.Version = version
	saved.UpdatedAt = time.Now().UTC()
	data, err := s.serializer.Serialize(&saved)
	if err != nil {
		return fmt.Errorf("failed to serialize rule: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(key), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(saved.UpdatedAt.UnixMicro()), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", key, err)
	}

	record.Version, record.UpdatedAt = saved.Version, saved.UpdatedAt
	return nil
}

// Load retrieves the rule of a task
func (s *Store) Load(ctx context.Context, projectID, taskID string) (*store.RuleRecord, error) {
	if err := store.CheckKey(projectID, taskID); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.recordKey(store.Key(projectID, taskID))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	return s.decode(data)
}

// List returns matching records, most recently updated first
func (s *Store) List(ctx context.Context, filter store.Filter) ([]*store.RuleRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	keys, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rule index: %w", err)
	}
	records := []*store.RuleRecord{}
	if len(keys) == 0 {
		return records, nil
	}

	recordKeys := make([]string, len(keys))
	for i, k := range keys {
		recordKeys[i] = s.recordKey(k)
	}
	values, err := s.client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// removed between ZREVRANGE and MGET
			continue
		}
		r, err := s.decode([]byte(str))
		if err != nil {
			return nil, err
		}
		if filter.Matches(r) {
			records = append(records, r)
		}
	}
	return filter.Page(records), nil
}

// Delete removes the rule of a task and its version counter
func (s *Store) Delete(ctx context.Context, projectID, taskID string) error {
	if err := store.CheckKey(projectID, taskID); err != nil {
		return err
	}

	key := store.Key(projectID, taskID)
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.recordKey(key))
		pipe.Del(ctx, s.versionKey(key))
		pipe.ZRem(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", key, err)
	}
	if deleted.Val() == 0 {
		return store.ErrRuleNotFound
	}
	return nil
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) decode(data []byte) (*store.RuleRecord, error) {
	var r store.RuleRecord
	if err := s.serializer.Deserialize(data, &r); err != nil {
		return nil, fmt.Errorf("failed to deserialize rule: %w", err)
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}
