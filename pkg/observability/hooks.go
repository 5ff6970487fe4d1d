// Package observability provides hooks for metrics and tracing.
//
// Libraries emit events through hook interfaces with no-op defaults, so
// nothing below cmd/ depends on a metrics backend. Binaries register real
// implementations at startup:
//
//	func main() {
//	    p := observability.NewPrometheus(prometheus.NewRegistry())
//	    observability.SetPipelineHooks(p)
//	    observability.SetCacheHooks(p)
//	    observability.SetSessionHooks(p)
//	    // ...
//	}
//
// and libraries call them around the work they do:
//
//	observability.Pipeline().OnConvertStart(ctx, gt.Key())
//	// ... convert ...
//	observability.Pipeline().OnConvertComplete(ctx, gt.Key(), len(res.Nodes), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from graph type loading and conversion.
type PipelineHooks interface {
	OnLoadComplete(ctx context.Context, types int, duration time.Duration, err error)

	OnConvertStart(ctx context.Context, graphType string)
	OnConvertComplete(ctx context.Context, graphType string, nodes int, duration time.Duration, err error)

	// OnTransformFailure fires once per failed snippet invocation.
	OnTransformFailure(ctx context.Context, graphType string)

	OnRenderComplete(ctx context.Context, format string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache lookups. keyType is "result" or
// "artifact".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Session Hooks
// =============================================================================

// SessionHooks receives events from editing sessions.
type SessionHooks interface {
	// OnMessage records one inbound surface message by type.
	OnMessage(ctx context.Context, msgType string, err error)

	// OnStaleResult records a conversion discarded because a newer edit
	// arrived while it ran.
	OnStaleResult(ctx context.Context)

	OnConnect(ctx context.Context)
	OnDisconnect(ctx context.Context, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLoadComplete(context.Context, int, time.Duration, error) {}
func (NoopPipelineHooks) OnConvertStart(context.Context, string)                    {}
func (NoopPipelineHooks) OnConvertComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnTransformFailure(context.Context, string)                     {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopSessionHooks is a no-op implementation of SessionHooks.
type NoopSessionHooks struct{}

func (NoopSessionHooks) OnMessage(context.Context, string, error)    {}
func (NoopSessionHooks) OnStaleResult(context.Context)               {}
func (NoopSessionHooks) OnConnect(context.Context)                   {}
func (NoopSessionHooks) OnDisconnect(context.Context, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	sessionHooks  SessionHooks  = NoopSessionHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers pipeline hooks. Call it once at startup.
// A nil argument is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers cache hooks. A nil argument is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetSessionHooks registers session hooks. A nil argument is ignored.
func SetSessionHooks(h SessionHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		sessionHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Session returns the registered session hooks.
func Session() SessionHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return sessionHooks
}

// Reset restores the no-op defaults. Tests use it.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	sessionHooks = NoopSessionHooks{}
}
