package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/scene-tracker/internal/generation"
	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	var (
		schemaErr    *tracker.SchemaError
		parseErr     *tracker.ParseError
		transportErr *generation.TransportError
	)
	switch {
	case errors.Is(err, storage.ErrNoChat), errors.Is(err, chat.ErrMessageIndex):
		return http.StatusNotFound
	case errors.As(err, &schemaErr):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generation.ErrNoAnchor), errors.Is(err, generation.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeOpError reports a failed operation. Server-side failures are logged
// and their detail is kept from the client.
func writeOpError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		writeError(w, logger, status, msg)
		return
	}
	logger.Warn(msg, "error", err, "status", status)
	writeError(w, logger, status, err.Error())
}
