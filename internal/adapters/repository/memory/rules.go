// Package memory provides an in-process rule store for tests, the CLI and
// single-node servers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/pkg/serialization"
)

// Store implements store.Store on a map. Records are kept serialized so
// callers never share memory with the store.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	serializer *serialization.Serializer
	ttl        time.Duration
	now        func() time.Time

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// Config holds configuration for Store
type Config struct {
	TTL             time.Duration // zero keeps records forever
	CleanupInterval time.Duration // only used with a TTL
	Serializer      *serialization.Serializer
}

type entry struct {
	data      []byte
	updatedAt time.Time
	expiresAt time.Time
}

// New creates a memory store. With a TTL a background goroutine drops
// expired records until Close is called.
func New(config Config) *Store {
	if config.Serializer == nil {
		config.Serializer = serialization.Default()
	}
	s := &Store{
		entries:     make(map[string]*entry),
		serializer:  config.Serializer,
		ttl:         config.TTL,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if config.TTL > 0 {
		if config.CleanupInterval == 0 {
			config.CleanupInterval = 5 * time.Minute
		}
		go s.cleanup(config.CleanupInterval)
	}
	return s
}

// Save stores a copy of the record and bumps its version.
func (s *Store) Save(_ context.Context, record *store.RuleRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("rule record validation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Key()
	version := int64(1)
	if prev, ok := s.live(key); ok {
		var old store.RuleRecord
		if err := s.serializer.Deserialize(prev.data, &old); err != nil {
			return fmt.Errorf("rule record deserialization failed: %w", err)
		}
		version = old.Version + 1
	}

	saved := *record
	saved.Version = version
	saved.UpdatedAt = s.now().UTC()
	data, err := s.serializer.Serialize(&saved)
	if err != nil {
		return fmt.Errorf("rule record serialization failed: %w", err)
	}

	e := &entry{data: data, updatedAt: saved.UpdatedAt}
	if s.ttl > 0 {
		e.expiresAt = saved.UpdatedAt.Add(s.ttl)
	}
	s.entries[key] = e
	record.Version, record.UpdatedAt = saved.Version, saved.UpdatedAt
	return nil
}

// Load returns the record of a task.
func (s *Store) Load(_ context.Context, projectID, taskID string) (*store.RuleRecord, error) {
	if err := store.CheckKey(projectID, taskID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.live(store.Key(projectID, taskID))
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrRuleNotFound
	}
	return s.decode(e)
}

// List returns matching records, most recently updated first.
func (s *Store) List(_ context.Context, filter store.Filter) ([]*store.RuleRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	s.mu.RLock()
	records := make([]*store.RuleRecord, 0, len(s.entries))
	for key := range s.entries {
		e, ok := s.live(key)
		if !ok {
			continue
		}
		r, err := s.decode(e)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if filter.Matches(r) {
			records = append(records, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].Key() < records[j].Key()
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return filter.Page(records), nil
}

// Delete removes the record of a task.
func (s *Store) Delete(_ context.Context, projectID, taskID string) error {
	if err := store.CheckKey(projectID, taskID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := store.Key(projectID, taskID)
	if _, ok := s.live(key); !ok {
		return store.ErrRuleNotFound
	}
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored records, expired ones included until
// the next cleanup.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine.
func (s *Store) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

// live returns a non-expired entry. Callers hold the lock.
func (s *Store) live(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		return nil, false
	}
	return e, true
}

func (s *Store) decode(e *entry) (*store.RuleRecord, error) {
	var r store.RuleRecord
	if err := s.serializer.Deserialize(e.data, &r); err != nil {
		return nil, fmt.Errorf("rule record deserialization failed: %w", err)
	}
	return &r, nil
}

func (s *Store) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if _, ok := s.live(key); !ok {
			delete(s.entries, key)
		}
	}
}
