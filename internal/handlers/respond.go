package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cloudgate/cloudgate/internal/errs"
)

// writeError maps err to its HTTP status per spec.md §7 and writes a
// generic HTML body, or a {error, status, message} JSON body for
// endpoints that answer in JSON.
func writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	w.WriteHeader(status)
	w.Write([]byte("<html><body><h1>" + http.StatusText(status) + "</h1></body></html>"))
}

func writeJSONError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   http.StatusText(status),
		"status":  status,
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
