// Package api serves the entity management surface: listing definitions and
// accepting publish, update and delete mutations.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/domain/model"
	"github.com/schemasmith/schemasmith/ports"
	"github.com/schemasmith/schemasmith/publish"
	"github.com/schemasmith/schemasmith/schemadoc"
)

// ModelHandler serves the /models endpoints.
type ModelHandler struct {
	store      ports.ModelStore
	schema     *schemadoc.Editor
	coord      *publish.Coordinator
	logger     zerolog.Logger
	production bool
}

// NewModelHandler creates the management API handler.
func NewModelHandler(
	store ports.ModelStore,
	schema *schemadoc.Editor,
	coord *publish.Coordinator,
	logger zerolog.Logger,
	production bool,
) *ModelHandler {
	return &ModelHandler{
		store:      store,
		schema:     schema,
		coord:      coord,
		logger:     logger.With().Str("component", "api").Logger(),
		production: production,
	}
}

// Routes returns the router for the /models subtree.
func (h *ModelHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/publish", h.publishModel)
	r.Get("/{name}", h.getOne)
	r.Put("/{name}", h.updateModel)
	r.Delete("/{name}", h.deleteModel)
	return r
}

func (h *ModelHandler) list(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to retrieve models.")
		return
	}
	if defs == nil {
		defs = []model.Definition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (h *ModelHandler) getOne(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, err := h.store.Get(r.Context(), name)
	if errors.Is(err, ports.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("Model '%s' not found.", model.Normalize(name)))
		return
	}
	if err != nil {
		h.fail(w, err, "Failed to retrieve model.")
		return
	}

	block, _ := h.schema.Block(def.Name)
	writeJSON(w, http.StatusOK, map[string]any{
		"json":        def,
		"schemaBlock": block,
	})
}

func (h *ModelHandler) publishModel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.Name == "" || len(req.Fields) == 0 {
		writeMessage(w, http.StatusBadRequest, "Model name and fields are required.")
		return
	}

	if err := h.coord.Publish(r.Context(), req); err != nil {
		h.mutationError(w, err)
		return
	}
	writeMessage(w, http.StatusAccepted, fmt.Sprintf("Publishing '%s' started.", model.Normalize(req.Name)))
}

func (h *ModelHandler) updateModel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	req.Name = chi.URLParam(r, "name")

	if err := h.coord.Update(r.Context(), req); err != nil {
		h.mutationError(w, err)
		return
	}
	writeMessage(w, http.StatusAccepted, fmt.Sprintf("Updating '%s' started.", model.Normalize(req.Name)))
}

func (h *ModelHandler) deleteModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.coord.Delete(r.Context(), name); err != nil {
		h.mutationError(w, err)
		return
	}
	writeMessage(w, http.StatusAccepted, fmt.Sprintf("Deleting '%s' started.", model.Normalize(name)))
}

func (h *ModelHandler) decode(w http.ResponseWriter, r *http.Request) (publish.Request, bool) {
	var req publish.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return publish.Request{}, false
	}
	return req, true
}

// mutationError maps coordinator errors onto the response taxonomy:
// validation 400, conflicts 409, unknown entity 404, the rest opaque 500s.
func (h *ModelHandler) mutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, publish.ErrInvalid):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, publish.ErrInProgress):
		writeMessage(w, http.StatusConflict, "Another model publish is in progress. Please try again shortly.")
	case errors.Is(err, publish.ErrExists):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Model not found.")
	default:
		h.fail(w, err, "Error starting publish.")
	}
}

func (h *ModelHandler) fail(w http.ResponseWriter, err error, msg string) {
	h.logger.Error().Err(err).Msg("management request failed")
	if !h.production {
		msg = fmt.Sprintf("%s %v", msg, err)
	}
	writeMessage(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
