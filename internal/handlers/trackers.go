package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-tracker/internal/generation"
	"github.com/jwebster45206/scene-tracker/pkg/display"
	"github.com/jwebster45206/scene-tracker/pkg/queue"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// TrackerResponse carries one message's tracker as an object and as text.
type TrackerResponse struct {
	ChatID       uuid.UUID       `json:"chat_id"`
	MessageIndex int             `json:"message_index"`
	Tracker      *tracker.Object `json:"tracker"`
	Text         string          `json:"text"`
}

// OverrideRequest is a manually authored tracker. Tracker may be wrapped in
// <tracker> tags.
type OverrideRequest struct {
	Tracker string `json:"tracker"`
	Format  string `json:"format,omitempty"`
}

// GenerateResponse reports a queued or completed generation.
type GenerateResponse struct {
	RequestID    string             `json:"request_id"`
	MessageIndex int                `json:"message_index"`
	Status       string             `json:"status"`
	Tracker      *tracker.Object    `json:"tracker,omitempty"`
	ShapeErrors  []string           `json:"shape_errors,omitempty"`
	Trace        []generation.State `json:"trace,omitempty"`
}

// RenderResponse is a tracker rendered through a display template.
type RenderResponse struct {
	Template string `json:"template"`
	Text     string `json:"text"`
}

func (h *ChatHandler) serveTracker(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int, action string) {
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleTrackerRead(w, r, chatID, index)
		case http.MethodPut:
			h.handleOverride(w, r, chatID, index)
		case http.MethodDelete:
			h.handleTrackerClear(w, r, chatID, index)
		default:
			h.methodNotAllowed(w, r, "GET, PUT, DELETE")
		}
	case "generate":
		if r.Method != http.MethodPost {
			h.methodNotAllowed(w, r, "POST")
			return
		}
		h.handleGenerate(w, r, chatID, index)
	case "inject":
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.handleInject(w, r, chatID, index)
	case "render":
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.handleRender(w, r, chatID, index)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

// queryOptions reads the format and include query parameters. include
// defaults to all fields.
func (h *ChatHandler) queryOptions(r *http.Request) (tracker.Format, tracker.Include, error) {
	format := h.generator.Settings().Format
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := tracker.ParseFormat(q)
		if err != nil {
			return "", "", err
		}
		format = f
	}
	include := tracker.IncludeAll
	if q := r.URL.Query().Get("include"); q != "" {
		i, err := tracker.ParseInclude(q)
		if err != nil {
			return "", "", err
		}
		include = i
	}
	return format, include, nil
}

// loadTracker returns the tracker stored on a message and the active schema.
func (h *ChatHandler) loadTracker(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int) (*tracker.Object, *tracker.Schema, bool) {
	c, err := h.loadChat(r.Context(), chatID)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to load chat")
		return nil, nil, false
	}
	msg, err := c.Message(index)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to load message")
		return nil, nil, false
	}
	if msg.Tracker.Len() == 0 {
		writeError(w, h.logger, http.StatusNotFound, "Message has no tracker")
		return nil, nil, false
	}
	schema, err := h.generator.Schema(r.Context())
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to load schema")
		return nil, nil, false
	}
	return msg.Tracker, schema, true
}

func (h *ChatHandler) handleTrackerRead(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int) {
	format, include, err := h.queryOptions(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	inst, schema, ok := h.loadTracker(w, r, chatID, index)
	if !ok {
		return
	}

	resp := TrackerResponse{
		ChatID:       chatID,
		MessageIndex: index,
		Tracker:      tracker.Project(inst, schema, include, false),
	}
	if r.URL.Query().Get("view") == "clean" {
		resp.Text = tracker.Clean(inst, schema, tracker.CleanOptions{
			Include: include,
			Format:  format,
			Flatten: r.URL.Query().Get("flatten") == "true",
		})
	} else {
		text, err := tracker.Encode(resp.Tracker, format)
		if err != nil {
			writeOpError(w, h.logger, err, "Failed to encode tracker")
			return
		}
		resp.Text = text
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *ChatHandler) handleOverride(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int) {
	var req OverrideRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("Invalid override body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	format := h.generator.Settings().Format
	if req.Format != "" {
		f, err := tracker.ParseFormat(req.Format)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	inst, err := h.generator.Override(r.Context(), chatID, index, req.Tracker, format)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to override tracker")
		return
	}
	text, err := tracker.Encode(inst, format)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to encode tracker")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, TrackerResponse{
		ChatID:       chatID,
		MessageIndex: index,
		Tracker:      inst,
		Text:         text,
	})
}

func (h *ChatHandler) handleTrackerClear(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int) {
	if err := h.generator.Clear(r.Context(), chatID, index); err != nil {
		writeOpError(w, h.logger, err, "Failed to clear tracker")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerate queues generation for a message, or runs it inline when
// wait=true. anchor picks the last message the model reads.
func (h *ChatHandler) handleGenerate(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int) {
	query := r.URL.Query()
	include, err := tracker.ParseInclude(query.Get("include"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	anchor := -1
	if q := query.Get("anchor"); q != "" {
		anchor, err = strconv.Atoi(q)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid anchor index")
			return
		}
	}

	c, err := h.loadChat(r.Context(), chatID)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to load chat")
		return
	}
	if _, err := c.Message(index); err != nil {
		writeOpError(w, h.logger, err, "Failed to load message")
		return
	}

	if query.Get("wait") == "true" {
		h.generateInline(w, r, generation.Request{
			RequestID: uuid.New().String(),
			ChatID:    chatID,
			Target:    index,
			Anchor:    anchor,
			Include:   include,
		})
		return
	}

	req := queue.NewRequest(queue.RequestTypeGenerate, chatID, index)
	req.Anchor = anchor
	req.Include = string(include)
	if err := h.enqueue(r.Context(), req); err != nil {
		writeOpError(w, h.logger, err, "Failed to queue generation")
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, GenerateResponse{
		RequestID:    req.RequestID,
		MessageIndex: index,
		Status:       "queued",
	})
}

func (h *ChatHandler) generateInline(w http.ResponseWriter, r *http.Request, req generation.Request) {
	res, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to generate tracker")
		return
	}
	resp := GenerateResponse{
		RequestID:    res.RequestID,
		MessageIndex: res.Target,
		Status:       string(res.State()),
		Tracker:      res.Tracker,
		Trace:        res.Trace,
	}
	for _, e := range res.ShapeErrors {
		resp.ShapeErrors = append(resp.ShapeErrors, e.Error())
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *ChatHandler) handleInject(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int) {
	inj, err := h.generator.Inject(r.Context(), chatID, index)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to build injection")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, inj)
}

// handleRender renders a tracker through the template query parameter, or a
// template generated from the schema.
func (h *ChatHandler) handleRender(w http.ResponseWriter, r *http.Request, chatID uuid.UUID, index int) {
	inst, schema, ok := h.loadTracker(w, r, chatID, index)
	if !ok {
		return
	}
	tmpl := r.URL.Query().Get("template")
	if tmpl == "" {
		tmpl = display.TemplateFor(schema)
	}
	writeJSON(w, h.logger, http.StatusOK, RenderResponse{
		Template: tmpl,
		Text:     display.Render(tmpl, display.FilterGender(inst, schema)),
	})
}
