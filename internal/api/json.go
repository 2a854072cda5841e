package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// validationResponse carries the full list of rejected-field reasons.
type validationResponse struct {
	Error  string   `json:"error" validate:"required"`
	Errors []string `json:"errors" validate:"required"`
}

func validationBody(reasons []string) validationResponse {
	return validationResponse{Error: "validation failed", Errors: reasons}
}
