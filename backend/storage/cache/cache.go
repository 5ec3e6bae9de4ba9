package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("key does not exist")

// CacheInterface defines the set of methods that need to be implemented to
// be used as a cache storage. Values are stored as JSON.
type CacheInterface interface {
	Connect(url string) error
	Disconnect() error
	// Set stores value under key for the default TTL.
	Set(ctx context.Context, key string, value interface{}) error
	// SetTTL stores value under key for ttl.
	SetTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get decodes the value under key into dest, or returns ErrMiss.
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Clear(ctx context.Context) error
}

// NewCache creates a new CacheInterface with a Redis backend.
// It connects to the provided address, and returns the cache instance or
// an error if the connection failed.
func NewCache(url string, ttl time.Duration) (CacheInterface, error) {
	cache := NewRedisCache(ttl)
	if err := cache.Connect(url); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return cache, nil
}

// NopCache stores nothing; every Get misses. It stands in when Redis is not configured.
type NopCache struct{}

func (NopCache) Connect(string) error { return nil }

func (NopCache) Disconnect() error { return nil }

func (NopCache) Set(context.Context, string, interface{}) error { return nil }

func (NopCache) SetTTL(context.Context, string, interface{}, time.Duration) error { return nil }

func (NopCache) Get(context.Context, string, interface{}) error { return ErrMiss }

func (NopCache) Delete(context.Context, ...string) error { return nil }

func (NopCache) DeletePrefix(context.Context, string) (int, error) { return 0, nil }

func (NopCache) Clear(context.Context) error { return nil }
