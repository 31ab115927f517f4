package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/barsheet/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
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
// Example output: "Rendered preview (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default() if none is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Observability Hooks
// =============================================================================

// registerLogHooks routes the library hooks to debug-level log lines.
func registerLogHooks(l *log.Logger) {
	h := logHooks{l}
	observability.SetPipelineHooks(h)
	observability.SetRenderHooks(h)
	observability.SetDispatchHooks(h)
	observability.SetCacheHooks(h)
}

type logHooks struct {
	l *log.Logger
}

func (h logHooks) OnGenerateStart(_ context.Context, n int) {
	h.l.Debug("generate start", "requests", n)
}

func (h logHooks) OnGenerateComplete(_ context.Context, n int, d time.Duration, err error) {
	h.l.Debug("generate complete", "instances", n, "elapsed", d, "err", err)
}

func (h logHooks) OnInterpreterStart(_ context.Context, err error) {
	h.l.Debug("interpreter start", "err", err)
}

func (h logHooks) OnInterpreterStop(_ context.Context, fatal bool) {
	h.l.Debug("interpreter stop", "fatal", fatal)
}

func (h logHooks) OnRenderStart(_ context.Context, path string) {
	h.l.Debug("render start", "document", path)
}

func (h logHooks) OnRenderComplete(_ context.Context, path string, d time.Duration, err error) {
	h.l.Debug("render complete", "document", path, "elapsed", d, "err", err)
}

func (h logHooks) OnListPrinters(_ context.Context, count int, d time.Duration, err error) {
	h.l.Debug("list printers", "count", count, "elapsed", d, "err", err)
}

func (h logHooks) OnPrint(_ context.Context, printer string, err error) {
	h.l.Debug("print", "printer", printer, "err", err)
}

func (h logHooks) OnCacheHit(_ context.Context, key string) {
	h.l.Debug("cache hit", "key", key)
}

func (h logHooks) OnCacheMiss(_ context.Context, key string) {
	h.l.Debug("cache miss", "key", key)
}

func (h logHooks) OnCacheSet(_ context.Context, key string, size int) {
	h.l.Debug("cache set", "key", key, "bytes", size)
}
