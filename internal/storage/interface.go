package storage

import (
	"context"
	"time"
)

// Cache 数据飞轮缓存与专名词表的读写抽象。
// Redis 不可用时可退化到进程内实现。
type Cache interface {
	// 飞轮缓存
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// 专名词表哈希，字段是 id，值是条目 JSON
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Close() error
}
