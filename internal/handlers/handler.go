package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/HarshPratapSingh1/ChatVerse/internal/store"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	verifier *identity.Verifier
	logger   *slog.Logger
}

func NewHandler(dataStore store.DataStore, verifier *identity.Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		store:    dataStore,
		verifier: verifier,
		logger:   logger.With(slog.String("component", "http_handlers")),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"msg": message})
}
