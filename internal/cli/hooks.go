package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pypifeed/pkg/errors"
	"github.com/matzehuels/pypifeed/pkg/observability"
)

var (
	_ observability.HTTPHooks  = (*logHooks)(nil)
	_ observability.FetchHooks = (*logHooks)(nil)
)

// logHooks reports client activity through the CLI logger.
// Requests and responses go to debug; failed fetches go to warn.
// A logger attached to the request context wins over the fallback.
type logHooks struct {
	logger *log.Logger
}

func (h *logHooks) loggerFor(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return h.logger
}

func (h *logHooks) OnRequest(ctx context.Context, method, host, path string) {
	h.loggerFor(ctx).Debug("http request", "method", method, "host", host, "path", path)
}

func (h *logHooks) OnResponse(ctx context.Context, method, host, path string, status int, size int64, dur time.Duration) {
	h.loggerFor(ctx).Debug("http response", "method", method, "host", host, "path", path,
		"status", status, "bytes", size, "duration", dur.Round(time.Millisecond))
}

func (h *logHooks) OnError(ctx context.Context, method, host, path string, err error) {
	h.loggerFor(ctx).Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

func (h *logHooks) OnFetchStart(ctx context.Context, op, target string) {
	h.loggerFor(ctx).Debug("fetch", "op", op, "url", target)
}

func (h *logHooks) OnFetchComplete(ctx context.Context, op, target string, dur time.Duration, err error) {
	logger := h.loggerFor(ctx)
	if err != nil {
		logger.Warn("fetch failed", "op", op, "url", target, "code", errors.GetCode(err))
		return
	}
	logger.Debug("fetch done", "op", op, "url", target, "duration", dur.Round(time.Millisecond))
}
