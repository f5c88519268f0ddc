package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Cache stores opaque response payloads. It never holds run state.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// KeyPrefix namespaces every key written by claimcheck
const KeyPrefix = "claimcheck:v1:"

// Key derives a cache key from a namespace and the request parts.
// Parts are joined with a NUL separator before hashing so ("ab","c") != ("a","bc").
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return KeyPrefix + namespace + ":" + hex.EncodeToString(hash[:])
}

// New builds the cache selected by configuration. It returns nil for backend "none".
func New(cfg model.CacheConfig) (Cache, error) {
	ttl := cfg.TTLDuration()

	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryCache(ttl, 10*time.Minute), nil
	case "disk":
		return NewDiskCache(cacheDir(cfg.Dir), ttl), nil
	case "layered":
		return NewLayeredCache(ttl, cacheDir(cfg.Dir), ttl), nil
	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl), nil
	default:
		return nil, goerr.New("unknown cache backend", goerr.V("backend", cfg.Backend))
	}
}

func cacheDir(dir string) string {
	if dir != "" {
		return dir
	}
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "claimcheck")
	}
	return filepath.Join(os.TempDir(), "claimcheck-cache")
}
