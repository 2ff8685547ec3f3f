package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// fallbackErrorBody is served when a response value fails to marshal. Kept
// as a literal so the failure path cannot itself fail; the shape matches
// models.Error("Internal server error").
const fallbackErrorBody = `{"status":"error","message":"Internal server error"}`

// writeJSONResponse marshals before touching the ResponseWriter, so a bad
// payload never produces a half-written success response.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		statusCode = http.StatusInternalServerError
		body = []byte(fallbackErrorBody)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", err)
	}
}
