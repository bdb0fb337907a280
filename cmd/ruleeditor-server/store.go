package main

import (
	"context"
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/adapters/repository/memory"
	"github.com/flowgraph/ruleeditor/internal/adapters/repository/postgres"
	"github.com/flowgraph/ruleeditor/internal/adapters/repository/redis"
	"github.com/flowgraph/ruleeditor/internal/adapters/repository/sqlite"
	"github.com/flowgraph/ruleeditor/internal/core/store"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/config"
	"github.com/flowgraph/ruleeditor/pkg/serialization"
)

// openStore creates the configured rule store and its tables. The returned
// func releases it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	key, err := cfg.Serialization.Key()
	if err != nil {
		return nil, nil, err
	}
	ser, err := serialization.New(cfg.Serialization.Codec, cfg.Serialization.Compression, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure serializer: %w", err)
	}

	switch cfg.Store.Backend {
	case "memory":
		s := memory.New(memory.Config{TTL: cfg.Store.TTL, Serializer: ser})
		return s, func() { _ = s.Close() }, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.Store.DSN, ser)
		if err != nil {
			return nil, nil, err
		}
		if err := s.WithTableName(cfg.Store.Table).CreateTables(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := postgres.Connect(ctx, cfg.Store.DSN, ser)
		if err != nil {
			return nil, nil, err
		}
		if err := s.WithTableName(cfg.Store.Table).CreateTables(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		s, err := redis.Connect(ctx, cfg.Store.RedisAddr, ser)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
