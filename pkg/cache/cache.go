// Package cache stores conversion results and rendered artifacts.
//
// The [Cache] interface is a byte store with per-entry TTLs. Backends:
//
//   - [NullCache]: stores nothing, for disabled caching and tests
//   - [FileCache]: one file per entry, for the CLI
//   - [MemoryCache]: bounded in-process LRU, for the server
//   - [RedisCache]: shared store for several server instances
//
// Keys are built by a [Keyer] so that every component agrees on the layout.
// Wrap a keyer with [NewScopedKeyer] to give a workspace its own namespace.
package cache

import (
	"context"
	"time"
)

// Entry lifetimes. Results are keyed by content, so a long TTL only costs
// space.
const (
	TTLResult   = 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is a key/value byte store. Get reports a miss as (nil, false, nil);
// errors are reserved for backend failures. A zero ttl never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ResultKeyOpts are the inputs besides the document text that change a
// conversion result.
type ResultKeyOpts struct {
	GraphType string `json:"graph_type"` // id@vN
	Source    string `json:"source,omitempty"`
	Digest    string `json:"digest,omitempty"` // mapping, schema and style sheet contents
}

// ArtifactKeyOpts describe a rendered artifact of a result.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// ResultKey is the key of the conversion result for a document with
	// the given content hash.
	ResultKey(contentHash string, opts ResultKeyOpts) string

	// ArtifactKey is the key of an artifact rendered from a result.
	ArtifactKey(resultHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes key components into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(contentHash string, opts ResultKeyOpts) string {
	return hashKey("result", contentHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(resultHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", resultHash, opts)
}
