package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnLoadComplete(ctx, 4, time.Second, nil)
	p.OnConvertStart(ctx, "flowchart@v1")
	p.OnConvertComplete(ctx, "flowchart@v1", 10, time.Millisecond, nil)
	p.OnTransformFailure(ctx, "flowchart@v1")
	p.OnRenderComplete(ctx, "svg", time.Millisecond, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "result")
	c.OnCacheMiss(ctx, "result")
	c.OnCacheSet(ctx, "artifact", 1024)

	s := NoopSessionHooks{}
	s.OnConnect(ctx)
	s.OnMessage(ctx, "applyEdit", nil)
	s.OnStaleResult(ctx)
	s.OnDisconnect(ctx, time.Minute)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert.IsType(t, NoopPipelineHooks{}, Pipeline())
	assert.IsType(t, NoopCacheHooks{}, Cache())
	assert.IsType(t, NoopSessionHooks{}, Session())

	p := NewPrometheus(prometheus.NewRegistry())
	SetPipelineHooks(p)
	SetCacheHooks(p)
	SetSessionHooks(p)
	assert.Same(t, p, Pipeline())
	assert.Same(t, p, Cache())
	assert.Same(t, p, Session())

	SetPipelineHooks(nil)
	assert.Same(t, p, Pipeline(), "nil hooks are ignored")

	Reset()
	assert.IsType(t, NoopPipelineHooks{}, Pipeline())
}

func TestPrometheus(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.OnLoadComplete(ctx, 4, time.Millisecond, nil)
	p.OnConvertComplete(ctx, "flowchart@v1", 3, time.Millisecond, nil)
	p.OnConvertComplete(ctx, "flowchart@v1", 0, time.Millisecond, errors.New("cancelled"))
	p.OnTransformFailure(ctx, "state-machine@v1")
	p.OnCacheHit(ctx, "result")
	p.OnCacheMiss(ctx, "result")
	p.OnCacheMiss(ctx, "result")
	p.OnConnect(ctx)
	p.OnConnect(ctx)
	p.OnDisconnect(ctx, time.Second)
	p.OnMessage(ctx, "applyEdit", nil)
	p.OnStaleResult(ctx)

	assert.Equal(t, 4.0, testutil.ToFloat64(p.graphTypes))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.conversions.WithLabelValues("flowchart@v1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.conversions.WithLabelValues("flowchart@v1", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.transformErrors.WithLabelValues("state-machine@v1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.cacheLookups.WithLabelValues("result", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.staleResults))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
