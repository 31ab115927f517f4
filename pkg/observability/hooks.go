// Package observability provides hooks for metrics, tracing, and logging.
//
// Library packages emit events through the registered hooks without
// depending on a particular backend. The CLI registers a logging
// implementation at startup; tests register recorders.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnGenerateStart(ctx, requests)
//	// ... encode, lay out, commit ...
//	observability.Pipeline().OnGenerateComplete(ctx, instances, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the generation pipeline.
type PipelineHooks interface {
	OnGenerateStart(ctx context.Context, requests int)
	OnGenerateComplete(ctx context.Context, instances int, duration time.Duration, err error)
}

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the render backend.
type RenderHooks interface {
	// OnInterpreterStart records a (re)start of the rasterizer instance.
	OnInterpreterStart(ctx context.Context, err error)

	// OnInterpreterStop records teardown; fatal is true when an
	// interpreter error forced it.
	OnInterpreterStop(ctx context.Context, fatal bool)

	OnRenderStart(ctx context.Context, path string)
	OnRenderComplete(ctx context.Context, path string, duration time.Duration, err error)
}

// =============================================================================
// Dispatch Hooks
// =============================================================================

// DispatchHooks receives events from printer enumeration and dispatch.
type DispatchHooks interface {
	OnListPrinters(ctx context.Context, count int, duration time.Duration, err error)
	OnPrint(ctx context.Context, printer string, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from the preview cache.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, key string)
	OnCacheMiss(ctx context.Context, key string)
	OnCacheSet(ctx context.Context, key string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnGenerateStart(context.Context, int)                          {}
func (NoopPipelineHooks) OnGenerateComplete(context.Context, int, time.Duration, error) {}

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnInterpreterStart(context.Context, error)                      {}
func (NoopRenderHooks) OnInterpreterStop(context.Context, bool)                        {}
func (NoopRenderHooks) OnRenderStart(context.Context, string)                          {}
func (NoopRenderHooks) OnRenderComplete(context.Context, string, time.Duration, error) {}

// NoopDispatchHooks is a no-op implementation of DispatchHooks.
type NoopDispatchHooks struct{}

func (NoopDispatchHooks) OnListPrinters(context.Context, int, time.Duration, error) {}
func (NoopDispatchHooks) OnPrint(context.Context, string, error)                    {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	renderHooks   RenderHooks   = NoopRenderHooks{}
	dispatchHooks DispatchHooks = NoopDispatchHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetRenderHooks registers custom render hooks. Nil is ignored.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetDispatchHooks registers custom dispatch hooks. Nil is ignored.
func SetDispatchHooks(h DispatchHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		dispatchHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Dispatch returns the registered dispatch hooks.
func Dispatch() DispatchHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return dispatchHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	renderHooks = NoopRenderHooks{}
	dispatchHooks = NoopDispatchHooks{}
	cacheHooks = NoopCacheHooks{}
}
