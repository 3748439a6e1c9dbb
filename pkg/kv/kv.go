// Package kv 带 TTL 的键值存储，用于验证码与分析结果缓存
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound key 不存在或已过期
var ErrNotFound = errors.New("kv: key not found")

// Store 键值存储
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set ttl<=0 表示永不过期
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix 删除所有以 prefix 开头的 key
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}
