// Package cli implements the pypifeed command-line interface.
//
// This package provides commands for reading the PyPI RSS feeds, showing
// package metadata, and downloading release files. The CLI is built using
// cobra and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - feed: List the newest packages or latest releases (optionally interactive)
//   - package: Show metadata and dependencies of a package
//   - fetch: Download a URL or a verified release file
//   - config: Show the config file location and effective settings
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which includes
// every HTTP request made by the client. Loggers are passed through
// context.Context to allow structured progress tracking.
//
// # Example
//
//	import "github.com/matzehuels/pypifeed/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates the CLI logger. Timestamps read "15:04:05.00".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a context carrying l.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// withCommandLogger attaches base prefixed with the running command, so
// "pypifeed feed" logs as "feed: Fetched feed items=40". commandPath is
// cobra's CommandPath; the root command logs unprefixed.
func withCommandLogger(ctx context.Context, base *log.Logger, commandPath string) context.Context {
	name := strings.TrimSpace(strings.TrimPrefix(commandPath, appName))
	if name == "" {
		return withLogger(ctx, base)
	}
	return withLogger(ctx, base.WithPrefix(name))
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// progress times one step of a command and logs its outcome at info.
// Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress starts timing with the logger attached to ctx.
func newProgress(ctx context.Context) *progress {
	return &progress{logger: loggerFromContext(ctx), start: time.Now()}
}

// done logs msg with keyvals and the elapsed time rounded to the millisecond:
//
//	Downloaded file=flask-3.0.0.tar.gz bytes=1234 elapsed=212ms
func (p *progress) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}
