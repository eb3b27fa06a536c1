package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/modgraph/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Scanned 42 edges (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Observability
// =============================================================================

// logHooks reports scan, render and cache events at debug level.
type logHooks struct {
	logger *log.Logger
}

// registerLogHooks routes observability events to l.
func registerLogHooks(l *log.Logger) {
	h := &logHooks{logger: l}
	observability.SetPreviewHooks(h)
	observability.SetCacheHooks(h)
	observability.SetChannelHooks(h)
}

func (h *logHooks) OnScanStart(_ context.Context, dir string) {
	h.logger.Debug("scan started", "dir", dir)
}

func (h *logHooks) OnScanComplete(_ context.Context, dir string, edges int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("scan failed", "dir", dir, "elapsed", d.Round(time.Millisecond), "error", err)
		return
	}
	h.logger.Debug("scan finished", "dir", dir, "edges", edges, "elapsed", d.Round(time.Millisecond))
}

func (h *logHooks) OnRenderStart(_ context.Context, size int) {
	h.logger.Debug("render started", "source", size)
}

func (h *logHooks) OnRenderComplete(_ context.Context, size int, d time.Duration, err error) {
	h.logger.Debug("render finished", "image", size, "elapsed", d.Round(time.Millisecond), "error", err)
}

func (h *logHooks) OnRenderCancelled(_ context.Context, d time.Duration) {
	h.logger.Debug("render cancelled", "elapsed", d.Round(time.Millisecond))
}

func (h *logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *logHooks) OnSend(_ context.Context, msgType string) {
	h.logger.Debug("send", "type", msgType)
}

func (h *logHooks) OnReceive(_ context.Context, msgType string) {
	h.logger.Debug("receive", "type", msgType)
}

func (h *logHooks) OnResponse(_ context.Context, msgType string, d time.Duration, err error) {
	h.logger.Debug("response", "type", msgType, "elapsed", d.Round(time.Millisecond), "error", err)
}

var (
	_ observability.PreviewHooks = (*logHooks)(nil)
	_ observability.CacheHooks   = (*logHooks)(nil)
	_ observability.ChannelHooks = (*logHooks)(nil)
)
