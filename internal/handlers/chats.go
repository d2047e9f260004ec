package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-tracker/internal/generation"
	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/queue"
	"github.com/jwebster45206/scene-tracker/pkg/storage"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// RequestEnqueuer queues generation requests for the worker.
type RequestEnqueuer interface {
	Enqueue(ctx context.Context, req *queue.Request) error
}

// QueueNotifier announces queued requests to event subscribers.
type QueueNotifier interface {
	PublishRequestQueued(ctx context.Context, chatID uuid.UUID, requestID string, index int, requestType string) error
}

// ChatListResponse lists stored chats.
type ChatListResponse struct {
	Chats []uuid.UUID `json:"chats"`
}

// AppendResponse reports the index of an appended message and, when
// generation was queued, the request that will produce its tracker.
type AppendResponse struct {
	MessageIndex int    `json:"message_index"`
	RequestID    string `json:"request_id,omitempty"`
}

type ChatHandler struct {
	storage   storage.Storage
	generator *generation.Generator
	requests  RequestEnqueuer
	notifier  QueueNotifier
	logger    *slog.Logger
}

// NewChatHandler creates a chat handler. notifier may be nil.
func NewChatHandler(store storage.Storage, generator *generation.Generator, requests RequestEnqueuer, notifier QueueNotifier, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		storage:   store,
		generator: generator,
		requests:  requests,
		notifier:  notifier,
		logger:    logger,
	}
}

// ServeHTTP handles chat, message and tracker requests
// Routes:
// GET    /v1/chats                                 - List chat ids
// GET    /v1/chats/{id}                            - Read a chat
// PUT    /v1/chats/{id}                            - Create or replace a chat
// DELETE /v1/chats/{id}                            - Delete a chat
// POST   /v1/chats/{id}/messages                   - Append a message
// GET    /v1/chats/{id}/trackers/{index}           - Read a tracker
// PUT    /v1/chats/{id}/trackers/{index}           - Override a tracker
// DELETE /v1/chats/{id}/trackers/{index}           - Clear a tracker
// POST   /v1/chats/{id}/trackers/{index}/generate  - Queue or run generation
// GET    /v1/chats/{id}/trackers/{index}/inject    - Tracker block for the roleplay prompt
// GET    /v1/chats/{id}/trackers/{index}/render    - Render through a display template
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/chats"), "/")
	if path == "" {
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.handleList(w, r)
		return
	}

	parts := strings.Split(path, "/")
	chatID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid chat ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid chat ID format")
		return
	}

	switch {
	case len(parts) == 1:
		h.serveChat(w, r, chatID)
	case len(parts) == 2 && parts[1] == "messages":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleAppend(w, r, chatID)
	case (len(parts) == 3 || len(parts) == 4) && parts[1] == "trackers":
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid message index")
			return
		}
		action := ""
		if len(parts) == 4 {
			action = parts[3]
		}
		h.serveTracker(w, r, chatID, index, action)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *ChatHandler) serveChat(w http.ResponseWriter, r *http.Request, chatID uuid.UUID) {
	switch r.Method {
	case http.MethodGet:
		h.handleRead(w, r, chatID)
	case http.MethodPut:
		h.handlePut(w, r, chatID)
	case http.MethodDelete:
		h.handleDelete(w, r, chatID)
	default:
		h.methodNotAllowed(w, r, "GET, PUT, DELETE")
	}
}

func (h *ChatHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

func (h *ChatHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.storage.ListChats(r.Context())
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to list chats")
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, h.logger, http.StatusOK, ChatListResponse{Chats: ids})
}

func (h *ChatHandler) loadChat(ctx context.Context, chatID uuid.UUID) (*chat.Chat, error) {
	c, err := h.storage.LoadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoChat, chatID)
	}
	return c, nil
}

func (h *ChatHandler) handleRead(w http.ResponseWriter, r *http.Request, chatID uuid.UUID) {
	c, err := h.loadChat(r.Context(), chatID)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to load chat")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, c)
}

func (h *ChatHandler) handlePut(w http.ResponseWriter, r *http.Request, chatID uuid.UUID) {
	var c chat.Chat
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
		h.logger.Warn("Invalid chat body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if c.ID == uuid.Nil {
		c.ID = chatID
	}
	if c.ID != chatID {
		writeError(w, h.logger, http.StatusBadRequest, "Chat ID does not match the path")
		return
	}
	if c.Messages == nil {
		c.Messages = []chat.Message{}
	}
	if err := c.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := h.storage.SaveChat(r.Context(), &c); err != nil {
		writeOpError(w, h.logger, err, "Failed to save chat")
		return
	}
	h.logger.Info("Chat saved", "chat_id", chatID.String(), "messages", len(c.Messages))
	writeJSON(w, h.logger, http.StatusOK, &c)
}

func (h *ChatHandler) handleDelete(w http.ResponseWriter, r *http.Request, chatID uuid.UUID) {
	if _, err := h.loadChat(r.Context(), chatID); err != nil {
		writeOpError(w, h.logger, err, "Failed to load chat")
		return
	}
	if err := h.storage.DeleteChat(r.Context(), chatID); err != nil {
		writeOpError(w, h.logger, err, "Failed to delete chat")
		return
	}
	h.logger.Info("Chat deleted", "chat_id", chatID.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) handleAppend(w http.ResponseWriter, r *http.Request, chatID uuid.UUID) {
	var req chat.AppendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("Invalid message body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	msg := req.Message()
	index, err := h.storage.AppendMessage(r.Context(), chatID, msg)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to append message")
		return
	}
	resp := AppendResponse{MessageIndex: index}

	settings := h.generator.Settings()
	if req.Generate && index >= settings.GenerateFromMessage && chat.ShouldGenerate(msg, settings.GenerationTarget) {
		qr := queue.NewRequest(queue.RequestTypeAuto, chatID, index)
		if err := h.enqueue(r.Context(), qr); err != nil {
			h.logger.Error("Failed to queue automatic generation", "error", err, "chat_id", chatID.String())
			writeError(w, h.logger, http.StatusInternalServerError, "Message stored but generation could not be queued")
			return
		}
		resp.RequestID = qr.RequestID
	}
	writeJSON(w, h.logger, http.StatusCreated, resp)
}

func (h *ChatHandler) enqueue(ctx context.Context, req *queue.Request) error {
	if err := h.requests.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	h.logger.Info("Tracker request queued",
		"request_id", req.RequestID,
		"type", req.Type,
		"chat_id", req.ChatID.String(),
		"message_index", req.MessageIndex)
	if h.notifier != nil {
		if err := h.notifier.PublishRequestQueued(ctx, req.ChatID, req.RequestID, req.MessageIndex, string(req.Type)); err != nil {
			h.logger.Warn("Failed to publish queued event", "error", err, "request_id", req.RequestID)
		}
	}
	return nil
}
