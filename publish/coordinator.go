// Package publish coordinates schema mutations: registering a definition,
// editing the schema document, running the build pipeline, swapping the
// data-access handle and reconciling routes.
//
// Mutations are single-flight. A process-wide guard admits one mutation at a
// time; concurrent requests are rejected with ErrInProgress and must retry.
// The guard is released on every exit path, so one failure never wedges
// future mutations.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/domain/model"
	"github.com/schemasmith/schemasmith/ports"
	"github.com/schemasmith/schemasmith/schemadoc"
)

var (
	// ErrInProgress rejects a mutation while another is still running.
	ErrInProgress = errors.New("another schema mutation is in progress")

	// ErrExists rejects a publish whose name is already registered.
	ErrExists = errors.New("entity already exists")

	// ErrInvalid wraps definition validation failures.
	ErrInvalid = errors.New("invalid definition")
)

// Recorder observes mutation outcomes. Implemented by the metrics collector;
// nil disables recording.
type Recorder interface {
	RecordMutation(operation, outcome string)
	RecordMutationRejected()
	RecordPipelineRun(outcome string, seconds float64)
}

// Request is the caller-supplied shape of a publish or update.
type Request struct {
	Name       string              `json:"name"`
	Fields     []model.Field       `json:"fields"`
	OwnerField string              `json:"ownerField,omitempty"`
	RBAC       map[string][]string `json:"rbac,omitempty"`
}

// Coordinator owns the mutation sequence end to end.
type Coordinator struct {
	store    ports.ModelStore
	schema   *schemadoc.Editor
	pipeline ports.PipelineRunner
	handles  ports.HandleSwapper
	routes   ports.RouteMounter
	recorder Recorder
	logger   zerolog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

// New creates a coordinator. recorder may be nil.
func New(
	store ports.ModelStore,
	schema *schemadoc.Editor,
	pipeline ports.PipelineRunner,
	handles ports.HandleSwapper,
	routes ports.RouteMounter,
	recorder Recorder,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		store:    store,
		schema:   schema,
		pipeline: pipeline,
		handles:  handles,
		routes:   routes,
		recorder: recorder,
		logger:   logger.With().Str("component", "publish").Logger(),
	}
}

// Busy reports whether a mutation is currently in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Wait blocks until any in-flight background work finishes. Used on
// shutdown so a running pipeline is not orphaned mid-swap.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// acquire takes the single-flight guard or reports rejection.
func (c *Coordinator) acquire() bool {
	if !c.busy.CompareAndSwap(false, true) {
		if c.recorder != nil {
			c.recorder.RecordMutationRejected()
		}
		return false
	}
	return true
}

// Publish registers a new entity and kicks off the build. The returned error
// reflects only the synchronous phase; pipeline failures after acceptance
// are logged and compensated, never surfaced to the original caller.
func (c *Coordinator) Publish(ctx context.Context, req Request) error {
	if !c.acquire() {
		return ErrInProgress
	}

	def := model.New(req.Name, req.Fields, req.OwnerField, req.RBAC)
	if err := model.Validate(def); err != nil {
		c.busy.Store(false)
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	// Duplicate names are detected before any file mutation.
	if _, err := c.store.Get(ctx, def.Name); err == nil {
		c.busy.Store(false)
		return fmt.Errorf("%w: %s", ErrExists, def.Name)
	} else if !errors.Is(err, ports.ErrNotFound) {
		c.busy.Store(false)
		return fmt.Errorf("check existing definition: %w", err)
	}

	if err := c.store.Put(ctx, def); err != nil {
		c.busy.Store(false)
		return fmt.Errorf("persist definition: %w", err)
	}
	if err := c.schema.Upsert(def.Name, schemadoc.Render(def)); err != nil {
		// Compensate so the registry does not name an entity the schema
		// document never saw.
		if derr := c.store.Delete(ctx, def.Name); derr != nil {
			c.logger.Warn().Err(derr).Str("entity", def.Name).Msg("compensating delete failed")
		}
		c.busy.Store(false)
		return fmt.Errorf("update schema document: %w", err)
	}

	c.background("publish", def.Name, false, func(runLogger zerolog.Logger, ok bool) {
		if ok {
			return
		}
		// A failed publish must not leave a phantom entity in the registry.
		// The schema block is left as-is and corrected on the next
		// successful operation for this name.
		if err := c.store.Delete(context.Background(), def.Name); err != nil {
			runLogger.Warn().Err(err).Msg("removing definition after failed publish")
		}
	})
	return nil
}

// Update merges new attributes into an existing entity and kicks off the
// build. Attributes absent from the request keep their prior values.
func (c *Coordinator) Update(ctx context.Context, req Request) error {
	if !c.acquire() {
		return ErrInProgress
	}

	existing, err := c.store.Get(ctx, req.Name)
	if err != nil {
		c.busy.Store(false)
		if errors.Is(err, ports.ErrNotFound) {
			return err
		}
		return fmt.Errorf("load definition: %w", err)
	}

	merged := model.Merge(existing, req.Fields, req.OwnerField, req.RBAC)
	if err := model.Validate(merged); err != nil {
		c.busy.Store(false)
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := c.store.Put(ctx, merged); err != nil {
		c.busy.Store(false)
		return fmt.Errorf("persist definition: %w", err)
	}
	if err := c.schema.Upsert(merged.Name, schemadoc.Render(merged)); err != nil {
		if perr := c.store.Put(ctx, existing); perr != nil {
			c.logger.Warn().Err(perr).Str("entity", existing.Name).Msg("restoring definition failed")
		}
		c.busy.Store(false)
		return fmt.Errorf("update schema document: %w", err)
	}

	c.background("update", merged.Name, false, func(runLogger zerolog.Logger, ok bool) {
		if ok {
			return
		}
		// Best-effort restore of the pre-update definition.
		if err := c.store.Put(context.Background(), existing); err != nil {
			runLogger.Warn().Err(err).Msg("restoring definition after failed update")
		}
	})
	return nil
}

// Delete removes an entity. The registry record and schema block go
// synchronously, best-effort; the destructive schema apply, handle swap and
// route unmount happen in the background. Deleting an unknown entity is
// accepted and leaves state unchanged.
func (c *Coordinator) Delete(ctx context.Context, name string) error {
	if !c.acquire() {
		return ErrInProgress
	}

	canonical := model.Normalize(name)
	if err := c.store.Delete(ctx, canonical); err != nil {
		c.logger.Warn().Err(err).Str("entity", canonical).Msg("removing definition record")
	}
	if _, err := c.schema.Remove(canonical); err != nil {
		c.logger.Warn().Err(err).Str("entity", canonical).Msg("removing schema block")
	}

	c.background("delete", canonical, true, func(runLogger zerolog.Logger, ok bool) {
		if ok {
			c.routes.Unmount(canonical)
		}
	})
	return nil
}

// background runs the pipeline, swap and reconcile on a fresh goroutine,
// releasing the single-flight guard when done. after runs with the outcome
// before reconcile, for per-operation compensation or unmounting.
func (c *Coordinator) background(operation, entity string, destructive bool, after func(zerolog.Logger, bool)) {
	runLogger := c.logger.With().
		Str("operation", operation).
		Str("entity", entity).
		Str("run_id", uuid.NewString()).
		Logger()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.busy.Store(false)

		ok := c.runPipeline(runLogger, destructive)
		after(runLogger, ok)
		if ok {
			c.routes.Reconcile(context.Background())
		}

		outcome := "success"
		if !ok {
			outcome = "failure"
		}
		if c.recorder != nil {
			c.recorder.RecordMutation(operation, outcome)
		}
		runLogger.Info().Str("outcome", outcome).Msg("schema mutation finished")
	}()
}

// runPipeline executes the build and swaps the handle on success.
func (c *Coordinator) runPipeline(runLogger zerolog.Logger, destructive bool) bool {
	start := time.Now()
	buildDir, err := c.pipeline.Run(context.Background(), destructive)
	if c.recorder != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.recorder.RecordPipelineRun(outcome, time.Since(start).Seconds())
	}
	if err != nil {
		runLogger.Error().Err(err).Msg("build pipeline failed")
		return false
	}

	if err := c.handles.Swap(buildDir); err != nil {
		runLogger.Error().Err(err).Str("build_dir", buildDir).Msg("handle swap failed")
		return false
	}
	return true
}
