package logger

import (
	"context"
	"io"
	"maps"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var (
	mu      sync.Mutex
	loki    *LokiWriter
	output  = newSwitchWriter(os.Stdout)
	install sync.Once
)

// switchWriter forwards to a replaceable writer. The global logger and every
// copy taken from it write through the same switchWriter, so retargeting
// output reaches all of them.
type switchWriter struct {
	current atomic.Pointer[io.Writer]
}

func newSwitchWriter(w io.Writer) *switchWriter {
	s := &switchWriter{}
	s.set(w)
	return s
}

func (s *switchWriter) set(w io.Writer) {
	s.current.Store(&w)
}

func (s *switchWriter) Write(p []byte) (int, error) {
	return (*s.current.Load()).Write(p)
}

// Init configures JSON logging to stdout and installs it as the zerolog
// global logger, so packages using zerolog/log share the same sink.
func Init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	installGlobal()

	log.Info().Str("level", "info").Msg("Logger initialized")
}

// installGlobal points log.Logger at output. It runs once; later sink
// changes only swap what output forwards to.
func installGlobal() {
	install.Do(func() {
		log.Logger = zerolog.New(output).With().
			Timestamp().
			Str("service", "demo-webserver").
			Logger()
	})
}

func Get() *zerolog.Logger {
	return &log.Logger
}

// WithContext returns the global logger with trace context if available.
func WithContext(ctx context.Context) *zerolog.Logger {
	l := AttachTrace(ctx, log.Logger)
	return &l
}

// Ctx returns a logger with trace information from context
func Ctx(ctx context.Context) *zerolog.Logger {
	return WithContext(ctx)
}

// AttachTrace adds trace_id and span_id to l when ctx carries a valid span.
func AttachTrace(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	return l.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
}

func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("Unknown log level, defaulting to INFO")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Info().Str("level", lvl.String()).Msg("Log level updated")
}

func SetDebugLevel() {
	SetLogLevel("debug")
}

// EnableLoki tees log output to a Loki push endpoint. The writer is only
// rebuilt when url or labels change; a new minLevel is applied in place.
func EnableLoki(url string, labels map[string]string, minLevel string) {
	mu.Lock()
	defer mu.Unlock()
	installGlobal()

	if loki != nil && loki.url == url && maps.Equal(loki.labels, labels) {
		loki.SetMinLevel(lokiLevel(minLevel))
		return
	}

	previous := loki
	loki = NewLokiWriter(url, labels)
	loki.SetMinLevel(lokiLevel(minLevel))
	output.set(NewMultiWriter(os.Stdout, loki))
	if previous != nil {
		previous.Close()
	}
	log.Info().Str("url", url).Msg("Loki logging enabled")
}

// DisableLoki stops log shipping and flushes what is buffered.
func DisableLoki() error {
	mu.Lock()
	defer mu.Unlock()
	return disableLokiLocked()
}

func disableLokiLocked() error {
	if loki == nil {
		return nil
	}
	output.set(os.Stdout)
	err := loki.Close()
	loki = nil
	log.Info().Msg("Loki logging disabled")
	return err
}

func lokiLevel(minLevel string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(minLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Shutdown flushes buffered log shipping.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	return disableLokiLocked()
}
