package handlers

import (
	"encoding/json"
	"net/http"
)

// errorBody is the error envelope every handler returns: a stable machine
// code plus a human-readable message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes the standard error envelope.
func ErrorResponse(w http.ResponseWriter, status int, code, message string) error {
	return WriteJSON(w, status, errorBody{Error: code, Message: message})
}
