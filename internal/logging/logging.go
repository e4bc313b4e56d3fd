// Package logging sets up the diagnostics log: an append-only, size-rotated
// file that records command detail and one line per finished run, with an
// optional console echo for --verbose.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultFileName is the diagnostics log name inside the config directory.
const DefaultFileName = "gco.log"

// RunFinished is the message of the per-run summary record. The console only
// shows it with Verbose, since the command prints the outcome itself.
const RunFinished = "run finished"

type Options struct {
	// FilePath is the log file. Empty disables file output.
	FilePath string
	// Console receives warnings, or everything when Verbose is set. Nil disables it.
	Console io.Writer
	Verbose bool
}

// New returns a logger and a closer that releases the log file.
func New(opts Options) (*slog.Logger, io.Closer) {
	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if opts.FilePath != "" {
		file := newRotatingFile(opts.FilePath)
		closer = file
		handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000"))}
				}
				return a
			},
		}))
	}

	if opts.Console != nil {
		level := slog.LevelWarn
		if opts.Verbose {
			level = slog.LevelDebug
		}
		var console slog.Handler = slog.NewTextHandler(opts.Console, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 && a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		})
		if !opts.Verbose {
			console = &skipHandler{Handler: console, message: RunFinished}
		}
		handlers = append(handlers, console)
	}

	if len(handlers) == 0 {
		return Discard(), closer
	}
	return slog.New(&multiHandler{handlers: handlers}), closer
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newRotatingFile(path string) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    1,
		MaxBackups: 2,
		MaxAge:     30,
	}
	if v, err := strconv.Atoi(os.Getenv("GCO_LOG_MAX_SIZE")); err == nil && v > 0 {
		l.MaxSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("GCO_LOG_MAX_BACKUPS")); err == nil && v >= 0 {
		l.MaxBackups = v
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// multiHandler fans records out to every handler that accepts the level.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// skipHandler drops records with the given message.
type skipHandler struct {
	slog.Handler
	message string
}

func (h *skipHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Message == h.message {
		return nil
	}
	return h.Handler.Handle(ctx, record)
}

func (h *skipHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &skipHandler{Handler: h.Handler.WithAttrs(attrs), message: h.message}
}

func (h *skipHandler) WithGroup(name string) slog.Handler {
	return &skipHandler{Handler: h.Handler.WithGroup(name), message: h.message}
}
