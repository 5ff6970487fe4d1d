package cache

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Settings select and configure a backend.
type Settings struct {
	Backend  string // none, file, memory or redis
	Dir      string // file backend; empty means DefaultDir()
	Entries  int    // memory backend
	RedisURL string // redis backend
	Prefix   string // redis backend
}

// Open creates the backend named by s.Backend. An empty name means none.
func Open(ctx context.Context, s Settings) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		dir := s.Dir
		if dir == "" {
			dir = DefaultDir()
		}
		return wrap(NewFileCache(dir))
	case BackendMemory:
		return wrap(NewMemoryCache(s.Entries))
	case BackendRedis:
		return wrap(NewRedisCache(ctx, RedisOptions{URL: s.RedisURL, Prefix: s.Prefix}))
	}
	return nil, fmt.Errorf("unknown cache backend %q", s.Backend)
}

// wrap keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func wrap[C Cache](c C, err error) (Cache, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
