package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// marshalFailureBody is pre-marshaled so a failing json.Marshal can never
// leave the client with an empty body.
var marshalFailureBody = []byte(`{"error":"Internal server error."}`)

type errorBody struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("api.writeJSON: failed to marshal response", "error", err)
		statusCode = http.StatusInternalServerError
		body = marshalFailureBody
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("api.writeJSON: failed to write response", "error", err)
	}
}

// writeError writes the {"error": ...} failure shape used by every endpoint.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorBody{Error: message})
}
