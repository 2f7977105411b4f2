package blob

import (
	"fmt"
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendLocal  BackendType = "local"
	BackendS3     BackendType = "s3"
	BackendRedis  BackendType = "redis"
)

// Config selects and configures a backend for New.
type Config struct {
	Backend BackendType

	// BaseDir is required for BackendLocal.
	BaseDir string

	// Bucket and Client are required for BackendS3.
	Bucket string
	Prefix string
	Client S3API

	// Redis is required for BackendRedis.
	Redis     RedisAPI
	RedisOpts []RedisOption
}

// New builds the configured provider.
func New(cfg Config) (Provider, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendLocal:
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		return NewLocal(cfg.BaseDir), nil
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		if cfg.Client == nil {
			return nil, fmt.Errorf("s3 client is required for s3 backend")
		}
		return NewS3(cfg.Client, cfg.Bucket, cfg.Prefix), nil
	case BackendRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis client is required for redis backend")
		}
		return NewRedis(cfg.Redis, cfg.RedisOpts...), nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %q", cfg.Backend)
	}
}
