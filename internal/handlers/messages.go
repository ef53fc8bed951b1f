package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/HarshPratapSingh1/ChatVerse/internal/server/middleware"
	"github.com/HarshPratapSingh1/ChatVerse/internal/store"
)

type historyMessage struct {
	ID        string  `json:"_id"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Text      string  `json:"text,omitempty"`
	File      *string `json:"file"`
	CreatedAt string  `json:"createdAt"`
}

// Messages returns the full conversation between the caller and the user
// in the path, ascending by creation.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok || reqMeta.Identity.IsAnonymous() {
		h.Error(w, http.StatusUnauthorized, "No token")
		return
	}
	otherID := chi.URLParam(r, "userId")

	messages, err := h.store.Conversation(r.Context(), reqMeta.Identity.UserID, otherID)
	if err != nil {
		h.logger.Error("Failed to load conversation", "error", err)
		h.Error(w, http.StatusInternalServerError, "Error Found")
		return
	}

	h.JSON(w, http.StatusOK, lo.Map(messages, func(m store.Message, _ int) historyMessage {
		var file *string
		if m.File != "" {
			f := m.File
			file = &f
		}
		return historyMessage{
			ID:        m.ID,
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Text:      m.Text,
			File:      file,
			CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		}
	}))
}

// People lists every registered user as {_id, username}.
func (h *Handler) People(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		h.Error(w, http.StatusInternalServerError, "Error Found")
		return
	}
	h.JSON(w, http.StatusOK, lo.Map(users, func(u store.User, _ int) map[string]string {
		return map[string]string{"_id": u.ID, "username": u.Username}
	}))
}
