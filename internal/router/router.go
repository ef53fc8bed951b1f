package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/HarshPratapSingh1/ChatVerse/internal/metrics"
	"github.com/HarshPratapSingh1/ChatVerse/internal/store"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/state"
)

// MessageStore is the slice of the record store the router persists through.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg store.Message) (store.Message, error)
}

// Stager turns an inline file payload into a durable attachment reference.
type Stager interface {
	Stage(name, payload string) (string, error)
}

// MessageRouter validates inbound messages, persists them, and fans each
// out to the recipient's live connections. The sender is never echoed
// back; the originating client renders its own message optimistically.
type MessageRouter struct {
	logger   *slog.Logger
	registry state.Manager
	store    MessageStore
	stager   Stager
}

func NewMessageRouter(logger *slog.Logger, registry state.Manager, messageStore MessageStore, attachmentStager Stager) *MessageRouter {
	return &MessageRouter{
		logger:   logger.With(slog.String("component", "message_router")),
		registry: registry,
		store:    messageStore,
		stager:   attachmentStager,
	}
}

// HandleInbound processes one raw payload from connID. All failures are
// contained to this one message: malformed or incomplete payloads are
// discarded silently and the originating connection stays open.
func (r *MessageRouter) HandleInbound(ctx context.Context, connID uuid.UUID, raw []byte) {
	if !gjson.ValidBytes(raw) {
		r.discard(connID, "malformed", nil)
		return
	}
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.discard(connID, "malformed", err)
		return
	}

	hasText := msg.Text != ""
	hasFile := msg.File != nil && msg.File.Data != ""
	if msg.Recipient == "" || (!hasText && !hasFile) {
		r.discard(connID, "invalid", nil)
		return
	}

	conn, ok := r.registry.Get(connID)
	if !ok {
		// The connection raced its own removal; nothing to attribute the
		// message to.
		r.discard(connID, "invalid", nil)
		return
	}
	sender := conn.Identity
	if sender.IsAnonymous() {
		r.discard(connID, "anonymous", nil)
		return
	}

	var fileRef string
	if hasFile {
		ref, err := r.stager.Stage(msg.File.Name, msg.File.Data)
		if err != nil {
			// No text-only fallback: an unstageable attachment fails the
			// whole message.
			r.logger.Warn("Attachment staging failed, dropping message",
				slog.String("connID", connID.String()),
				slog.Any("error", err),
			)
			metrics.MessagesDiscarded.WithLabelValues("stage_failed").Inc()
			return
		}
		fileRef = ref
		metrics.AttachmentsStaged.Inc()
	}

	persisted, err := r.store.AppendMessage(ctx, store.Message{
		Sender:    sender.UserID,
		Recipient: msg.Recipient,
		Text:      msg.Text,
		File:      fileRef,
	})
	if err != nil {
		// Delivery must not outrun durability.
		r.logger.Error("Message persistence failed, dropping message",
			slog.String("connID", connID.String()),
			slog.String("recipient", msg.Recipient),
			slog.Any("error", err),
		)
		metrics.MessagesDiscarded.WithLabelValues("persist_failed").Inc()
		return
	}

	var filePtr *string
	if fileRef != "" {
		filePtr = &fileRef
	}
	payload, err := json.Marshal(ServerMessage{
		Text:      msg.Text,
		Sender:    sender.UserID,
		Recipient: msg.Recipient,
		File:      filePtr,
		ID:        persisted.ID,
	})
	if err != nil {
		r.logger.Error("Failed to marshal outbound message", slog.Any("error", err))
		return
	}

	for _, rc := range r.registry.FindByRecipient(msg.Recipient) {
		if err := rc.Transport.Send(payload); err != nil {
			r.logger.Warn("Delivery failed, evicting recipient connection",
				slog.String("connID", rc.ID.String()),
				slog.Any("error", err),
			)
			rc.Transport.Close(err)
		}
	}
	metrics.MessagesRouted.Inc()
	r.logger.Debug("Message routed",
		slog.String("messageID", persisted.ID),
		slog.String("sender", sender.UserID),
		slog.String("recipient", msg.Recipient),
	)
}

func (r *MessageRouter) discard(connID uuid.UUID, reason string, err error) {
	metrics.MessagesDiscarded.WithLabelValues(reason).Inc()
	r.logger.Debug("Discarding inbound message",
		slog.String("connID", connID.String()),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
}
