package cache

// ScopedKeyer wraps a Keyer with a prefix so several workspaces can share
// one backend without seeing each other's entries.
//
//	wsKeyer := NewScopedKeyer(NewDefaultKeyer(), "ws:"+Hash([]byte(root))[:12]+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// the default one.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ResultKey implements Keyer.
func (k *ScopedKeyer) ResultKey(contentHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(contentHash, opts)
}

// ArtifactKey implements Keyer.
func (k *ScopedKeyer) ArtifactKey(resultHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(resultHash, opts)
}
