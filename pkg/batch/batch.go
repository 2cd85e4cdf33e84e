// Package batch fires a fixed-size batch of concurrent POSTs at an echo
// service and reports which echoed values occurred more than once.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/trace"

	"github.com/target-san/demo-webserver/pkg/logger"
	"github.com/target-san/demo-webserver/pkg/metrics"
	"github.com/target-san/demo-webserver/pkg/tracing"
)

const (
	// DestinationURL is the echo endpoint every query is posted to.
	DestinationURL = "https://httpbin.org/post"
	// QueriesPerRun is the number of requests issued per batch.
	QueriesPerRun = 30
	// MinValue and MaxValue bound the random query value, inclusive.
	MinValue uint32 = 0
	MaxValue uint32 = 10
	// RequestTimeout bounds a single exchange, body included.
	RequestTimeout = 10 * time.Second
)

// Requester runs batches against a single echo endpoint. The HTTP client is
// shared by all requests of all batches; a Requester is safe for concurrent use.
type Requester struct {
	destination string
	size        int
	client      *http.Client
	logger      *zerolog.Logger
}

type Option func(*Requester)

// WithDestination overrides the echo endpoint.
func WithDestination(url string) Option {
	return func(r *Requester) {
		r.destination = url
	}
}

// WithBatchSize overrides the number of requests per batch.
func WithBatchSize(n int) Option {
	return func(r *Requester) {
		r.size = n
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(r *Requester) {
		r.client = client
	}
}

// WithLogger pins the batch logger. Without it every batch logs through the
// current global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Requester) {
		r.logger = &l
	}
}

// NewRequester creates a Requester with the build-time defaults.
func NewRequester(opts ...Option) *Requester {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	r := &Requester{
		destination: DestinationURL,
		size:        QueriesPerRun,
		client: &http.Client{
			Transport: transport,
			Timeout:   RequestTimeout,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunBatch issues one batch and renders its DuplicateSet. It never fails:
// failed requests are logged and left out of the tally.
func (r *Requester) RunBatch(ctx context.Context) string {
	batchID := uuid.NewString()
	ctx, span := tracing.StartSpanWithAttributes(ctx, "batch.run", tracing.BatchAttributes(batchID, r.destination, r.size))
	defer span.End()

	base := logger.Get()
	if r.logger != nil {
		base = r.logger
	}
	log := logger.AttachTrace(ctx, base.With().
		Str("component", "batch").
		Str("batch_id", batchID).
		Logger())
	log.Debug().
		Int("size", r.size).
		Str("destination", r.destination).
		Msg("Starting batch")

	start := time.Now()
	outcomes := r.dispatch(ctx)

	for _, o := range outcomes {
		if !o.OK() {
			log.Error().
				Err(o.Err).
				Uint32("value", o.Query.Value).
				Msg("Request failed")
		}
	}

	values := Successes(outcomes)
	dups := NewTally(values).Duplicates()
	duration := time.Since(start)

	metrics.BatchRuns.Inc()
	metrics.BatchDuration.Observe(duration.Seconds())
	metrics.BatchDuplicates.Observe(float64(len(dups)))
	tracing.SetSpanAttributes(span, tracing.BatchResultAttributes(len(values), len(outcomes)-len(values), len(dups))...)

	log.Info().
		Int("launched", len(outcomes)).
		Int("succeeded", len(values)).
		Int("failed", len(outcomes)-len(values)).
		Int("duplicates", len(dups)).
		Dur("duration", duration).
		Msg("Batch completed")

	return Render(dups)
}

// dispatch launches every request at once and returns after all of them
// have finished.
func (r *Requester) dispatch(ctx context.Context) []Outcome {
	p := pool.NewWithResults[Outcome]()
	for i := 0; i < r.size; i++ {
		q := newQuery()
		body := encodeQuery(q)
		p.Go(func() Outcome {
			return r.send(ctx, q, body)
		})
	}
	return p.Wait()
}

func (r *Requester) send(ctx context.Context, q Query, body []byte) Outcome {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "batch.request",
		tracing.QueryAttributes(r.destination, q.Value),
		tracing.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	metrics.OutboundRequestsInFlight.Inc()
	defer metrics.OutboundRequestsInFlight.Dec()

	start := time.Now()
	var o Outcome
	if value, err := r.exchange(ctx, body); err != nil {
		tracing.RecordError(span, err, "echo request failed")
		o = failure(q, err)
	} else {
		o = success(q, value)
	}

	metrics.OutboundRequests.WithLabelValues(o.kind()).Inc()
	metrics.OutboundRequestDuration.WithLabelValues(o.kind()).Observe(time.Since(start).Seconds())
	return o
}

func (r *Requester) exchange(ctx context.Context, body []byte) (uint32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.destination, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHTTPHeaders(ctx, req.Header)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	tracing.SetSpanAttributes(trace.SpanFromContext(ctx), tracing.HTTPStatusAttributes(resp.StatusCode)...)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: reading response body: %w", ErrTransport, err)
	}
	return parseReply(data)
}
