package crud

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/auth"
	"github.com/schemasmith/schemasmith/dataaccess"
	"github.com/schemasmith/schemasmith/domain/model"
	"github.com/schemasmith/schemasmith/ports"
)

// Recorder observes served entity requests. Implemented by the metrics
// collector; nil disables recording.
type Recorder interface {
	RecordEntityRequest(entity, action string, status int)
	SetMountedEntities(n int)
}

// Synthesizer builds route groups from entity definitions and installs them
// into the dispatcher. It implements ports.RouteMounter.
type Synthesizer struct {
	store      ports.ModelStore
	handles    *dataaccess.Manager
	dispatcher *Dispatcher
	tokens     *auth.TokenService
	recorder   Recorder
	logger     zerolog.Logger
	production bool
}

// NewSynthesizer creates a route synthesizer. recorder may be nil.
func NewSynthesizer(
	store ports.ModelStore,
	handles *dataaccess.Manager,
	dispatcher *Dispatcher,
	tokens *auth.TokenService,
	recorder Recorder,
	logger zerolog.Logger,
	production bool,
) *Synthesizer {
	return &Synthesizer{
		store:      store,
		handles:    handles,
		dispatcher: dispatcher,
		tokens:     tokens,
		recorder:   recorder,
		logger:     logger.With().Str("component", "crud").Logger(),
		production: production,
	}
}

// Mount builds and installs the route group for a definition. Mounting an
// already-mounted base path is a no-op. A definition whose table cannot be
// resolved against the live catalog is logged and left inert, not an error:
// the next reconcile after a successful build picks it up.
func (s *Synthesizer) Mount(def model.Definition) error {
	base := def.BasePath()
	if s.dispatcher.Has(base) {
		return nil
	}

	handle := s.handles.Current()
	if handle == nil {
		s.logger.Warn().Str("entity", def.Name).Msg("no live data-access handle, entity left inert")
		return nil
	}

	table, ok := resolveTable(handle, def)
	if !ok {
		s.logger.Warn().
			Str("entity", def.Name).
			Strs("tried", def.AccessorCandidates()).
			Msg("no table matches entity, entity left inert")
		return nil
	}

	res := &resource{
		def:        def,
		table:      table,
		handles:    s.handles,
		recorder:   s.recorder,
		logger:     s.logger,
		production: s.production,
	}

	r := chi.NewRouter()
	r.Use(auth.Authenticate(s.tokens))
	r.Use(Permissions(def))
	r.Get("/", res.list)
	r.Post("/", res.create)
	r.Get("/{id:[0-9]+}", res.getOne)
	r.Put("/{id:[0-9]+}", res.update)
	r.Patch("/{id:[0-9]+}", res.update)
	r.Delete("/{id:[0-9]+}", res.deleteOne)

	s.dispatcher.Set(base, r)
	s.updateMountedGauge()
	s.logger.Info().
		Str("entity", def.Name).
		Str("path", "/"+base).
		Str("table", table).
		Msg("routes mounted")
	return nil
}

// Unmount removes the entity's route group; no-op when absent.
func (s *Synthesizer) Unmount(name string) {
	base := strings.ToLower(model.Normalize(name))
	if !s.dispatcher.Has(base) {
		return
	}
	s.dispatcher.Remove(base)
	s.updateMountedGauge()
	s.logger.Info().Str("entity", name).Str("path", "/"+base).Msg("routes unmounted")
}

// Reconcile mounts every registered definition not yet mounted. It never
// unmounts; removal is the deletion flow's explicit responsibility.
func (s *Synthesizer) Reconcile(ctx context.Context) {
	defs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing definitions for reconcile failed")
		return
	}
	for _, def := range defs {
		if err := s.Mount(def); err != nil {
			s.logger.Error().Err(err).Str("entity", def.Name).Msg("mounting entity failed")
		}
	}
}

func (s *Synthesizer) updateMountedGauge() {
	if s.recorder != nil {
		s.recorder.SetMountedEntities(len(s.dispatcher.Bases()))
	}
}

// resolveTable tries the definition's naming strategies in order against the
// handle's catalog.
func resolveTable(h *dataaccess.Handle, def model.Definition) (string, bool) {
	for _, candidate := range def.AccessorCandidates() {
		if _, ok := h.Accessor(candidate); ok {
			return candidate, true
		}
	}
	return "", false
}

var _ ports.RouteMounter = (*Synthesizer)(nil)
var _ http.Handler = (*Dispatcher)(nil)
