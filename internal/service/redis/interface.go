package redis

import (
	"context"
	"time"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type ServiceInterface interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetExpire(ctx context.Context, key string, ttl time.Duration) error
	GetTTL(ctx context.Context, key string) (time.Duration, error)

	// Mark sets key once; false means someone already marked it. Used to
	// dedupe the weekly digest across instances.
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)

	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Health(ctx context.Context) error
	Close() error
}
