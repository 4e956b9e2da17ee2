package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

const (
	logFileName      = "relay.log"
	errorLogFileName = "relay-error.log"
)

// Options controls how Setup builds the process-wide logger.
type Options struct {
	Production  bool
	Level       string // debug, info, warn, error
	Dir         string // when set, logs are also written to files in this directory
	OTelEnabled bool
	ServiceName string
}

// Setup builds the process logger, installs it as the slog default and
// returns it together with a closer for any log files it opened.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	switch {
	case opts.Production && opts.OTelEnabled:
		handler = otelslog.NewHandler(
			opts.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		)
	case opts.Production:
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	default:
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	closer := io.Closer(nopCloser{})
	if opts.Dir != "" {
		files, err := openLogFiles(opts.Dir)
		if err != nil {
			return nil, nil, err
		}
		closer = files
		handler = &fanoutHandler{handlers: []slog.Handler{
			handler,
			slog.NewJSONHandler(files.all, handlerOpts),
			slog.NewJSONHandler(files.errors, &slog.HandlerOptions{Level: slog.LevelError}),
		}}
	}

	l := slog.New(NewTraceHandler(handler))
	slog.SetDefault(l)
	return l, closer, nil
}

// ParseLevel maps a LOG_LEVEL string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type logFiles struct {
	all    *os.File
	errors *os.File
}

func openLogFiles(dir string) (*logFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	all, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", logFileName, err)
	}
	errs, err := os.OpenFile(filepath.Join(dir, errorLogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = all.Close()
		return nil, fmt.Errorf("opening %s: %w", errorLogFileName, err)
	}
	return &logFiles{all: all, errors: errs}, nil
}

func (f *logFiles) Close() error {
	return errors.Join(f.all.Close(), f.errors.Close())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanoutHandler sends every record to each handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// TraceHandler decorates records with OTel trace ids and context LogFields.
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	fields := GetLogFields(ctx)
	if fields.RequestID != "" {
		r.AddAttrs(slog.String("request_id", fields.RequestID))
	}
	if fields.CallID != "" {
		r.AddAttrs(slog.String("call_id", fields.CallID))
	}
	if fields.ContactID != "" {
		r.AddAttrs(slog.String("contact_id", fields.ContactID))
	}
	if fields.Component != "" {
		r.AddAttrs(slog.String("component", fields.Component))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}
