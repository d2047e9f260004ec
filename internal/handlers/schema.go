package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jwebster45206/scene-tracker/pkg/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// InstanceResponse is a synthesized tracker.
type InstanceResponse struct {
	Tracker *tracker.Object `json:"tracker"`
	Text    string          `json:"text"`
}

// PromptResponse is the field description block sent to the model.
type PromptResponse struct {
	Include tracker.Include `json:"include"`
	Prompt  string          `json:"prompt"`
}

type SchemaHandler struct {
	schema  *tracker.SchemaRef
	storage storage.Storage
	format  tracker.Format
	logger  *slog.Logger
}

// NewSchemaHandler serves the schema held by ref. Replacements are written
// to store so workers pick them up.
func NewSchemaHandler(ref *tracker.SchemaRef, store storage.Storage, format tracker.Format, logger *slog.Logger) *SchemaHandler {
	return &SchemaHandler{
		schema:  ref,
		storage: store,
		format:  format,
		logger:  logger,
	}
}

// ServeHTTP handles schema requests
// Routes:
// GET /v1/schema          - Read the active schema
// PUT /v1/schema          - Replace the schema (JSON, or YAML by content type)
// GET /v1/schema/default  - Tracker built from default values
// GET /v1/schema/example  - Tracker built from example values (?index=i)
// GET /v1/schema/prompt   - Field prompt (?include=dynamic|static|all)
func (h *SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/schema"), "/")

	if sub == "" {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, h.logger, http.StatusOK, h.schema.Load())
		case http.MethodPut:
			h.handleReplace(w, r)
		default:
			h.logger.Warn("Method not allowed for schema endpoint", "method", r.Method)
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PUT")
		}
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	switch sub {
	case "default":
		h.handleInstance(w, r, tracker.Defaults())
	case "example":
		index := 0
		if q := r.URL.Query().Get("index"); q != "" {
			i, err := strconv.Atoi(q)
			if err != nil || i < 0 {
				writeError(w, h.logger, http.StatusBadRequest, "Invalid example index")
				return
			}
			index = i
		}
		h.handleInstance(w, r, tracker.Example(index))
	case "prompt":
		include, err := tracker.ParseInclude(r.URL.Query().Get("include"))
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, h.logger, http.StatusOK, PromptResponse{
			Include: include,
			Prompt:  tracker.BuildFieldPrompt(h.schema.Load(), include),
		})
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SchemaHandler) handleReplace(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	var s *tracker.Schema
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		s, err = tracker.ParseSchemaYAML(body)
	} else {
		s, err = tracker.ParseSchema(body)
	}
	if err == nil && r.URL.Query().Get("strict") == "true" {
		err = s.ValidateStrict()
	}
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to parse schema")
		return
	}
	if paths := s.ImplicitPresence(); len(paths) > 0 {
		h.logger.Warn("Schema fields declare no presence, read as DYNAMIC", "fields", paths)
	}

	prev, err := h.schema.Swap(s)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to apply schema")
		return
	}
	if err := h.storage.SaveSchema(r.Context(), s); err != nil {
		if _, restoreErr := h.schema.Swap(prev); restoreErr != nil {
			h.logger.Error("Failed to restore previous schema", "error", restoreErr)
		}
		writeOpError(w, h.logger, err, "Failed to save schema")
		return
	}
	h.logger.Info("Schema replaced", "fields", len(s.Fields))
	writeJSON(w, h.logger, http.StatusOK, h.schema.Load())
}

func (h *SchemaHandler) handleInstance(w http.ResponseWriter, r *http.Request, mode tracker.Mode) {
	format := h.format
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := tracker.ParseFormat(q)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	include := tracker.IncludeAll
	if q := r.URL.Query().Get("include"); q != "" {
		i, err := tracker.ParseInclude(q)
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		include = i
	}

	inst, err := tracker.BuildInstance(h.schema.Load(), include, mode)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to build tracker")
		return
	}
	text, err := tracker.Encode(inst, format)
	if err != nil {
		writeOpError(w, h.logger, err, "Failed to encode tracker")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, InstanceResponse{Tracker: inst, Text: text})
}
