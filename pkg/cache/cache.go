package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service stores JSON-encoded values under string keys.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes every key matching a glob pattern ("predict:*").
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Key joins parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// HashKey builds namespace:sha256(json(v)). Equal requests hash equally
// because encoding/json emits struct fields in declaration order and sorts
// map keys.
func HashKey(namespace string, v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cache: hash key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return Key(namespace, hex.EncodeToString(sum[:])), nil
}

// Remember returns the cached value under key or computes, stores and
// returns it. hit reports whether the value came from the cache. Cache
// failures never fail the call; load errors are returned as-is.
func Remember[T any](ctx context.Context, c Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	if c == nil {
		v, err = load(ctx)
		return v, false, err
	}
	if err := c.Get(ctx, key, &v); err == nil {
		return v, true, nil
	}
	v, err = load(ctx)
	if err != nil {
		return v, false, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, false, nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return json.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	case *string:
		*d = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}
