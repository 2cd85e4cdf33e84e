package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	lokiBufferSize    = 100
	lokiFlushInterval = 2 * time.Second
)

// LokiWriter is an io.Writer that batches JSON log lines and pushes them to
// a Loki push endpoint.
type LokiWriter struct {
	url      string
	labels   map[string]string
	client   *http.Client
	minLevel atomic.Int32

	mu      sync.Mutex
	buffer  [][]string
	stopped bool
	sends   sync.WaitGroup

	ticker *time.Ticker
	done   chan struct{}
	closed sync.Once
}

type lokiPushStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiPushRequest struct {
	Streams []lokiPushStream `json:"streams"`
}

// NewLokiWriter starts a writer pushing to url, e.g.
// http://loki:3100/loki/api/v1/push.
func NewLokiWriter(url string, labels map[string]string) *LokiWriter {
	w := &LokiWriter{
		url:    url,
		labels: labels,
		client: &http.Client{Timeout: 5 * time.Second},
		buffer: make([][]string, 0, lokiBufferSize),
		ticker: time.NewTicker(lokiFlushInterval),
		done:   make(chan struct{}),
	}
	w.minLevel.Store(int32(zerolog.InfoLevel))

	go w.flusher()
	return w
}

// SetMinLevel sets the minimum level shipped to Loki.
func (w *LokiWriter) SetMinLevel(level zerolog.Level) {
	w.minLevel.Store(int32(level))
}

func (w *LokiWriter) Write(p []byte) (int, error) {
	var line struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(p, &line); err != nil {
		return len(p), nil
	}
	if level, err := zerolog.ParseLevel(line.Level); err == nil && int32(level) < w.minLevel.Load() {
		return len(p), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	w.buffer = append(w.buffer, []string{ts, string(bytes.TrimSpace(p))})
	// a closed writer has no flusher left, so late lines go out immediately
	if w.stopped || len(w.buffer) >= lokiBufferSize {
		w.flushLocked()
	}
	return len(p), nil
}

func (w *LokiWriter) flusher() {
	for {
		select {
		case <-w.ticker.C:
			w.mu.Lock()
			w.flushLocked()
			w.mu.Unlock()
		case <-w.done:
			return
		}
	}
}

// flushLocked hands the buffered lines to a background push. w.mu must be held.
func (w *LokiWriter) flushLocked() {
	if len(w.buffer) == 0 {
		return
	}
	req := lokiPushRequest{
		Streams: []lokiPushStream{{Stream: w.labels, Values: w.buffer}},
	}
	w.buffer = make([][]string, 0, lokiBufferSize)

	w.sends.Add(1)
	go func() {
		defer w.sends.Done()
		_ = w.push(req)
	}()
}

func (w *LokiWriter) push(req lokiPushRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling loki push: %w", err)
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("pushing to loki: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki responded with status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the background flusher, pushes what is left and waits for all
// pushes to finish. Lines written after Close are pushed one by one.
func (w *LokiWriter) Close() error {
	w.closed.Do(func() {
		w.ticker.Stop()
		close(w.done)
		w.mu.Lock()
		w.stopped = true
		w.flushLocked()
		w.mu.Unlock()
	})
	w.sends.Wait()
	return nil
}

// MultiWriter combines console and Loki writers
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, err = w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
