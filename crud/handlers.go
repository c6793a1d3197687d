package crud

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/auth"
	"github.com/schemasmith/schemasmith/dataaccess"
	"github.com/schemasmith/schemasmith/domain/model"
	"github.com/schemasmith/schemasmith/ports"
)

// resource serves the five CRUD handlers for one mounted entity. The table
// name was resolved at mount time; the accessor itself is looked up on the
// current handle per request so a handle swap takes effect immediately.
type resource struct {
	def        model.Definition
	table      string
	handles    *dataaccess.Manager
	recorder   Recorder
	logger     zerolog.Logger
	production bool
}

func (res *resource) accessor(w http.ResponseWriter, action string) (*dataaccess.Accessor, bool) {
	if h := res.handles.Current(); h != nil {
		if acc, ok := h.Accessor(res.table); ok {
			return acc, true
		}
	}
	res.logger.Error().Str("entity", res.def.Name).Str("table", res.table).
		Msg("table missing from live handle")
	res.record(action, http.StatusServiceUnavailable)
	respondError(w, http.StatusServiceUnavailable, "data access unavailable")
	return nil, false
}

func (res *resource) record(action string, status int) {
	if res.recorder != nil {
		res.recorder.RecordEntityRequest(res.def.Name, action, status)
	}
}

func (res *resource) list(w http.ResponseWriter, r *http.Request) {
	acc, ok := res.accessor(w, "read")
	if !ok {
		return
	}
	records, err := acc.FindMany(r.Context())
	if err != nil {
		res.fail(w, "read", err)
		return
	}
	if records == nil {
		records = []dataaccess.Record{}
	}
	res.record("read", http.StatusOK)
	respondJSON(w, http.StatusOK, records)
}

func (res *resource) getOne(w http.ResponseWriter, r *http.Request) {
	acc, ok := res.accessor(w, "read")
	if !ok {
		return
	}
	record, err := acc.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		res.fail(w, "read", err)
		return
	}
	// A missing row passes through as a 200 null body, not a 404.
	res.record("read", http.StatusOK)
	respondJSON(w, http.StatusOK, record)
}

func (res *resource) create(w http.ResponseWriter, r *http.Request) {
	acc, ok := res.accessor(w, "create")
	if !ok {
		return
	}
	data, ok := res.decodeBody(w, r, "create")
	if !ok {
		return
	}

	if res.def.OwnerField != "" {
		if principal, ok := auth.FromContext(r.Context()); ok {
			data[res.def.OwnerField] = principal.ID
		}
	}

	record, err := acc.Create(r.Context(), data)
	if err != nil {
		res.fail(w, "create", err)
		return
	}
	res.record("create", http.StatusCreated)
	respondJSON(w, http.StatusCreated, record)
}

func (res *resource) update(w http.ResponseWriter, r *http.Request) {
	acc, ok := res.accessor(w, "update")
	if !ok {
		return
	}
	data, ok := res.decodeBody(w, r, "update")
	if !ok {
		return
	}

	record, err := acc.Update(r.Context(), chi.URLParam(r, "id"), data)
	if errors.Is(err, ports.ErrNotFound) {
		res.record("update", http.StatusNotFound)
		respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		res.fail(w, "update", err)
		return
	}
	res.record("update", http.StatusOK)
	respondJSON(w, http.StatusOK, record)
}

func (res *resource) deleteOne(w http.ResponseWriter, r *http.Request) {
	acc, ok := res.accessor(w, "delete")
	if !ok {
		return
	}
	err := acc.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ports.ErrNotFound) {
		res.record("delete", http.StatusNotFound)
		respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		res.fail(w, "delete", err)
		return
	}
	res.record("delete", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (res *resource) decodeBody(w http.ResponseWriter, r *http.Request, action string) (dataaccess.Record, bool) {
	var data dataaccess.Record
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		res.record(action, http.StatusBadRequest)
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return data, true
}

// fail logs the error and answers with an opaque 500. Detail is exposed to
// the caller only outside production mode.
func (res *resource) fail(w http.ResponseWriter, action string, err error) {
	res.logger.Error().Err(err).
		Str("entity", res.def.Name).
		Str("action", action).
		Msg("entity request failed")
	res.record(action, http.StatusInternalServerError)

	msg := "internal server error"
	if !res.production {
		msg = err.Error()
	}
	respondError(w, http.StatusInternalServerError, msg)
}
