package handler

import (
	"encoding/json"
	"net/http"

	"github.com/target-san/demo-webserver/pkg/logger"
)

type Response struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
