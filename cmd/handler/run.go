package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/target-san/demo-webserver/pkg/logger"
)

// BatchRunner runs one echo batch and renders its result.
type BatchRunner interface {
	RunBatch(ctx context.Context) string
}

var runner BatchRunner

func SetBatchRunner(br BatchRunner) {
	runner = br
}

// Run answers with the rendered duplicate set of a fresh batch. Failed echo
// requests never turn into an error status.
func Run(w http.ResponseWriter, r *http.Request) {
	if runner == nil {
		http.Error(w, "Batch runner not initialized", http.StatusInternalServerError)
		return
	}

	body := runner.RunBatch(r.Context())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, body); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("Failed to write batch result")
	}
}
