package handler

import (
	"net/http"
)

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, Response{Message: "healthy"})
}
