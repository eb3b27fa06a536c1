// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about module graph scans, renders, cache operations and
// preview channel traffic.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, never by libraries, so library packages only
// depend on this package and not on any metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPreviewHooks(&myPreviewHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Preview().OnScanStart(ctx, dir)
//	// ... run go mod graph ...
//	observability.Preview().OnScanComplete(ctx, dir, edgeCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Preview Hooks
// =============================================================================

// PreviewHooks receives events from the scan and render stages of a preview.
type PreviewHooks interface {
	// Scan events
	OnScanStart(ctx context.Context, dir string)
	OnScanComplete(ctx context.Context, dir string, edgeCount int, duration time.Duration, err error)

	// Render events. OnRenderComplete is not called for cancelled renders;
	// OnRenderCancelled is.
	OnRenderStart(ctx context.Context, sourceSize int)
	OnRenderComplete(ctx context.Context, imageSize int, duration time.Duration, err error)
	OnRenderCancelled(ctx context.Context, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Channel Hooks
// =============================================================================

// ChannelHooks receives events from the host/preview message channel.
type ChannelHooks interface {
	// OnSend records an outgoing request.
	OnSend(ctx context.Context, msgType string)

	// OnReceive records an inbound request.
	OnReceive(ctx context.Context, msgType string)

	// OnResponse records a correlated response and how long the caller waited.
	OnResponse(ctx context.Context, msgType string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPreviewHooks is a no-op implementation of PreviewHooks.
type NoopPreviewHooks struct{}

func (NoopPreviewHooks) OnScanStart(context.Context, string)                               {}
func (NoopPreviewHooks) OnScanComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPreviewHooks) OnRenderStart(context.Context, int)                                {}
func (NoopPreviewHooks) OnRenderComplete(context.Context, int, time.Duration, error)       {}
func (NoopPreviewHooks) OnRenderCancelled(context.Context, time.Duration)                  {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopChannelHooks is a no-op implementation of ChannelHooks.
type NoopChannelHooks struct{}

func (NoopChannelHooks) OnSend(context.Context, string)                           {}
func (NoopChannelHooks) OnReceive(context.Context, string)                        {}
func (NoopChannelHooks) OnResponse(context.Context, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	previewHooks PreviewHooks = NoopPreviewHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	channelHooks ChannelHooks = NoopChannelHooks{}
	hooksMu      sync.RWMutex
)

// SetPreviewHooks registers custom preview hooks.
// This should be called once at application startup before any scan or render.
func SetPreviewHooks(h PreviewHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		previewHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetChannelHooks registers custom channel hooks.
// This should be called once at application startup before any preview opens.
func SetChannelHooks(h ChannelHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		channelHooks = h
	}
}

// Preview returns the registered preview hooks.
func Preview() PreviewHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return previewHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Channel returns the registered channel hooks.
func Channel() ChannelHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return channelHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	previewHooks = NoopPreviewHooks{}
	cacheHooks = NoopCacheHooks{}
	channelHooks = NoopChannelHooks{}
}
