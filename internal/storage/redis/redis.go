// Package redis implements storage.Store on top of a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"ft-ledger/internal/storage"
)

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Store is a Redis implementation of storage.Store. Every key is namespaced by prefix.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// NewStore creates a new Redis key-value store. An empty prefix stores keys verbatim.
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Get returns the value stored under key. Returns ErrNotFound if not exists.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if key == "" || value == nil {
		return storage.ErrInvalidInput
	}

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Apply writes all entries inside a MULTI/EXEC block.
func (s *Store) Apply(ctx context.Context, writes []storage.Write) error {
	if err := storage.ValidateWrites(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, w := range writes {
			pipe.Set(ctx, s.prefix+w.Key, w.Value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply: %w", err)
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
